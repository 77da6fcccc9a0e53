package inbox

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/httpapi"
	"github.com/chirino/taskmate/internal/model"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "inbox",
		Order: 50,
		Loader: func(r *gin.Engine, d registryroute.Deps) error {
			MountRoutes(r, d.Store, d.Auth)
			return nil
		},
	})
}

// MountRoutes mounts the direct message routes.
func MountRoutes(r *gin.Engine, store registrystore.TaskStore, auth gin.HandlerFunc) {
	g := r.Group("/api/inbox", auth)

	g.GET("/chat/:id", func(c *gin.Context) {
		conversation(c, store)
	})
	g.GET("/senders", func(c *gin.Context) {
		senders(c, store)
	})
	g.GET("/user/:id", func(c *gin.Context) {
		userInbox(c, store)
	})
	g.GET("/unread", func(c *gin.Context) {
		unread(c, store)
	})
	g.GET("/chat-users", func(c *gin.Context) {
		chatUsers(c, store)
	})
	g.POST("/:id", func(c *gin.Context) {
		send(c, store)
	})
	g.DELETE("", func(c *gin.Context) {
		deleteMessages(c, store)
	})
	g.DELETE("/all/:id", func(c *gin.Context) {
		clearConversation(c, store)
	})
}

func conversation(c *gin.Context, store registrystore.TaskStore) {
	otherID, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	conv, err := store.Conversation(c.Request.Context(), security.GetUserID(c), otherID)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	messages := conv.Messages
	if messages == nil {
		messages = []model.InboxMessageView{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "messages": messages, "hasUnread": conv.HasUnread})
}

func senders(c *gin.Context, store registrystore.TaskStore) {
	list, err := store.Senders(c.Request.Context(), security.GetUserID(c))
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if list == nil {
		list = []model.InboxSender{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "senders": list})
}

func userInbox(c *gin.Context, store registrystore.TaskStore) {
	userID, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	if !security.IsSelfOrAdmin(c, userID) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "You can only view your own inbox")
		return
	}
	list, err := store.ListReceived(c.Request.Context(), userID)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if list == nil {
		list = []model.InboxMessageView{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "userInbox": list})
}

func unread(c *gin.Context, store registrystore.TaskStore) {
	has, err := store.HasUnread(c.Request.Context(), security.GetUserID(c))
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "hasUnread": has})
}

func chatUsers(c *gin.Context, store registrystore.TaskStore) {
	peers, err := store.ChatPeers(c.Request.Context(), security.GetUserID(c))
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if peers == nil {
		peers = []model.ChatPeer{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "users": peers})
}

type sendRequest struct {
	Body string `json:"body"`
}

func send(c *gin.Context, store registrystore.TaskStore) {
	receiverID, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	var req sendRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	if req.Body == "" {
		httpapi.Fail(c, http.StatusBadRequest, "validation_error", "message content is required")
		return
	}
	ctx := c.Request.Context()
	sender := security.CurrentUser(c)
	msg, err := store.SendMessage(ctx, sender.ID, receiverID, req.Body)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	notice := fmt.Sprintf("%s sent you a message", sender.Name)
	if err := store.UpsertMessageNotification(ctx, sender.ID, receiverID, notice); err != nil {
		log.Warn("Failed to notify message receiver", "sender", sender.ID, "receiver", receiverID, "err", err)
	}
	c.JSON(http.StatusCreated, gin.H{"message": "success", "inbox": msg})
}

type deleteRequest struct {
	Inboxes []string `json:"inboxes" binding:"required,min=1,dive,len=24,hexadecimal"`
}

func deleteMessages(c *gin.Context, store registrystore.TaskStore) {
	var req deleteRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	messages, err := store.GetMessages(ctx, req.Inboxes)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	userID := security.GetUserID(c)
	if !security.IsAdmin(c) {
		for _, m := range messages {
			if m.Sender != userID {
				httpapi.Fail(c, http.StatusForbidden, "forbidden", "You can only delete messages you sent")
				return
			}
		}
	}
	deleted, err := store.DeleteMessages(ctx, req.Inboxes)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted successfully", "deletedInboxes": deleted})
}

func clearConversation(c *gin.Context, store registrystore.TaskStore) {
	otherID, ok := httpapi.IDParam(c, "id")
	if !ok {
		return
	}
	if err := store.ClearConversation(c.Request.Context(), security.GetUserID(c), otherID); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "chat history has been cleared"})
}
