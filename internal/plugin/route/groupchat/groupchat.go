package groupchat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/config"
	"github.com/chirino/taskmate/internal/httpapi"
	"github.com/chirino/taskmate/internal/model"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "groupchat",
		Order: 60,
		Loader: func(r *gin.Engine, d registryroute.Deps) error {
			MountRoutes(r, d.Store, d.Files, d.Config, d.Auth)
			return nil
		},
	})
}

// MountRoutes mounts the group chat routes.
func MountRoutes(r *gin.Engine, store registrystore.TaskStore, files registryupload.FileStore, cfg *config.Config, auth gin.HandlerFunc) {
	g := r.Group("/api/groupChat", auth)
	admin := security.RequireRole(model.RoleAdmin)

	g.GET("", func(c *gin.Context) {
		getGroupChat(c, store)
	})
	g.POST("/messages", func(c *gin.Context) {
		sendMessage(c, store, files, cfg.UploadMaxSize)
	})
	g.PATCH("/messages/:messageId", func(c *gin.Context) {
		updateMessage(c, store)
	})
	g.DELETE("/messages/:messageId", func(c *gin.Context) {
		deleteMessage(c, store, files)
	})
	g.PATCH("/messages/:messageId/pin", admin, func(c *gin.Context) {
		togglePin(c, store)
	})
	g.PATCH("/toggle-messages", admin, func(c *gin.Context) {
		toggleMessaging(c, store)
	})
	g.POST("/read", func(c *gin.Context) {
		markRead(c, store)
	})
}

func getGroupChat(c *gin.Context, store registrystore.TaskStore) {
	chat, err := store.GetGroupChat(c.Request.Context())
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if chat.Messages == nil {
		chat.Messages = []model.GroupMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": chat})
}

type messageRequest struct {
	Content string `json:"content" form:"content"`
}

func checkContent(c *gin.Context, content string) bool {
	if utf8.RuneCountInString(content) > model.MaxGroupMessage {
		httpapi.Fail(c, http.StatusBadRequest, "validation_error",
			fmt.Sprintf("Message content cannot exceed %d characters", model.MaxGroupMessage))
		return false
	}
	return true
}

func sendMessage(c *gin.Context, store registrystore.TaskStore, files registryupload.FileStore, maxSize int64) {
	ctx := c.Request.Context()
	chat, err := store.GetGroupChat(ctx)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if !chat.IsMessageAllowed && !security.IsAdmin(c) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "Messaging is currently disabled in this group chat")
		return
	}

	var req messageRequest
	var attachment *model.Attachment
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.Content = c.PostForm("content")
		if !checkContent(c, req.Content) {
			return
		}
		fh, ok := httpapi.OptionalFile(c, "attachment")
		if !ok {
			return
		}
		if fh != nil {
			saved, err := registryupload.SaveMultipart(ctx, files, fh, maxSize)
			if err != nil {
				httpapi.HandleError(c, err)
				return
			}
			attachment = saved
		}
	} else {
		if !httpapi.BindJSON(c, &req) {
			return
		}
		if !checkContent(c, req.Content) {
			return
		}
	}
	if strings.TrimSpace(req.Content) == "" && attachment == nil {
		httpapi.Fail(c, http.StatusBadRequest, "validation_error", "Message must have either content or file attachment")
		return
	}

	msg, err := store.AppendGroupMessage(ctx, security.GetUserID(c), registrystore.GroupMessageRequest{
		Content:    req.Content,
		Attachment: attachment,
	})
	if err != nil {
		removeAttachment(ctx, files, attachment)
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": gin.H{"message": msg}})
}

// loadOwned returns the message when the caller sent it or is an admin.
func loadOwned(c *gin.Context, store registrystore.TaskStore, action string) (*model.GroupMessage, bool) {
	id, ok := httpapi.IDParam(c, "messageId")
	if !ok {
		return nil, false
	}
	msg, err := store.GetGroupMessage(c.Request.Context(), id)
	if err != nil {
		httpapi.HandleError(c, err)
		return nil, false
	}
	if !security.IsAdmin(c) && (msg.Sender == nil || msg.Sender.ID != security.GetUserID(c)) {
		httpapi.Fail(c, http.StatusForbidden, "forbidden", "You can only "+action+" your own messages")
		return nil, false
	}
	return msg, true
}

func updateMessage(c *gin.Context, store registrystore.TaskStore) {
	msg, ok := loadOwned(c, store, "update")
	if !ok {
		return
	}
	var req messageRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		httpapi.Fail(c, http.StatusBadRequest, "validation_error", "Message content is required for update")
		return
	}
	if !checkContent(c, req.Content) {
		return
	}
	updated, err := store.UpdateGroupMessage(c.Request.Context(), msg.ID, req.Content)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": updated})
}

func deleteMessage(c *gin.Context, store registrystore.TaskStore, files registryupload.FileStore) {
	msg, ok := loadOwned(c, store, "delete")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := store.DeleteGroupMessage(ctx, msg.ID); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	removeAttachment(ctx, files, msg.Attachment)
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Message deleted successfully"})
}

func removeAttachment(ctx context.Context, files registryupload.FileStore, att *model.Attachment) {
	if att == nil {
		return
	}
	name := registryupload.NameFromURL(att.URL)
	if name == "" {
		return
	}
	if err := files.Delete(ctx, name); err != nil {
		log.Warn("Failed to delete attachment", "name", name, "err", err)
	}
}

func togglePin(c *gin.Context, store registrystore.TaskStore) {
	id, ok := httpapi.IDParam(c, "messageId")
	if !ok {
		return
	}
	msg, err := store.ToggleGroupMessagePin(c.Request.Context(), id)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	state := "unpinned"
	if msg.IsPinned {
		state = "pinned"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Message " + state + " successfully",
		"data":    gin.H{"message": msg},
	})
}

func toggleMessaging(c *gin.Context, store registrystore.TaskStore) {
	allowed, err := store.ToggleGroupMessaging(c.Request.Context())
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	state := "disabled"
	if allowed {
		state = "allowed"
	}
	log.Info("Group messaging toggled", "allowed", allowed, "by", security.GetUserID(c))
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Messaging is now " + state,
		"data":    gin.H{"isMessageAllowed": allowed},
	})
}

func markRead(c *gin.Context, store registrystore.TaskStore) {
	n, err := store.MarkGroupChatRead(c.Request.Context(), security.GetUserID(c))
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"marked": n}})
}
