package chatbot

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/httpapi"
	"github.com/chirino/taskmate/internal/model"
	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "chatbot",
		Order: 70,
		Loader: func(r *gin.Engine, d registryroute.Deps) error {
			MountRoutes(r, d.Store, d.Assistant, d.Auth)
			return nil
		},
	})
}

// MountRoutes mounts the assistant chat routes.
func MountRoutes(r *gin.Engine, store registrystore.TaskStore, assistant registryassistant.Assistant, auth gin.HandlerFunc) {
	g := r.Group("/api/chatbot", auth)

	g.GET("", func(c *gin.Context) {
		listChats(c, store)
	})
	g.POST("", func(c *gin.Context) {
		createChat(c, store)
	})
	g.PATCH("/:chatId", func(c *gin.Context) {
		renameChat(c, store)
	})
	g.DELETE("/:chatId", func(c *gin.Context) {
		deleteChat(c, store)
	})
	g.POST("/:chatId/message", func(c *gin.Context) {
		sendMessage(c, store, assistant)
	})
	g.GET("/:chatId/history", func(c *gin.Context) {
		getHistory(c, store)
	})
	g.DELETE("/:chatId/history", func(c *gin.Context) {
		clearHistory(c, store)
	})
}

func listChats(c *gin.Context, store registrystore.TaskStore) {
	chats, err := store.ListChats(c.Request.Context(), security.GetUserID(c))
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	if chats == nil {
		chats = []model.Chatbot{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "chats": chats})
}

type nameRequest struct {
	Name string `json:"name"`
}

func createChat(c *gin.Context, store registrystore.TaskStore) {
	var req nameRequest
	if c.Request.ContentLength != 0 && !httpapi.BindJSON(c, &req) {
		return
	}
	chat, err := store.CreateChat(c.Request.Context(), security.GetUserID(c), req.Name)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "success", "chatbot": chat})
}

func renameChat(c *gin.Context, store registrystore.TaskStore) {
	chatID, ok := httpapi.IDParam(c, "chatId")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !httpapi.BindJSON(c, &req) {
		return
	}
	chat, err := store.RenameChat(c.Request.Context(), security.GetUserID(c), chatID, req.Name)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "chatbot": chat})
}

func deleteChat(c *gin.Context, store registrystore.TaskStore) {
	chatID, ok := httpapi.IDParam(c, "chatId")
	if !ok {
		return
	}
	if err := store.DeleteChat(c.Request.Context(), security.GetUserID(c), chatID); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted successfully"})
}

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

// sendMessage asks the assistant for a reply and stores both turns. Nothing
// is stored when the assistant fails.
func sendMessage(c *gin.Context, store registrystore.TaskStore, assistant registryassistant.Assistant) {
	chatID, ok := httpapi.IDParam(c, "chatId")
	if !ok {
		return
	}
	var req messageRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	userID := security.GetUserID(c)
	chat, err := store.GetChat(ctx, userID, chatID)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	tasks, err := store.OpenTasks(ctx, userID)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}

	userTurn := model.ChatTurn{Role: model.ChatRoleUser, Content: req.Message, Timestamp: time.Now()}
	messages := registryassistant.BuildMessages(registryassistant.SystemPrompt(tasks), chat.ChatHistory, req.Message)
	reply, err := assistant.Complete(ctx, messages)
	if err != nil {
		if errors.Is(err, registryassistant.ErrDisabled) {
			httpapi.HandleError(c, err)
			return
		}
		log.Error("Assistant request failed", "chatID", chatID, "model", assistant.ModelName(), "err", err)
		httpapi.Fail(c, http.StatusBadGateway, "assistant_error", "Error communicating with chatbot")
		return
	}

	assistantTurn := model.ChatTurn{Role: model.ChatRoleAssistant, Content: reply, Timestamp: time.Now()}
	updated, err := store.AppendChatTurns(ctx, userID, chatID, userTurn, assistantTurn)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "response": reply, "chatHistory": updated.ChatHistory})
}

func getHistory(c *gin.Context, store registrystore.TaskStore) {
	chatID, ok := httpapi.IDParam(c, "chatId")
	if !ok {
		return
	}
	chat, err := store.GetChat(c.Request.Context(), security.GetUserID(c), chatID)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	history := chat.ChatHistory
	if history == nil {
		history = []model.ChatTurn{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "chatHistory": history})
}

func clearHistory(c *gin.Context, store registrystore.TaskStore) {
	chatID, ok := httpapi.IDParam(c, "chatId")
	if !ok {
		return
	}
	if err := store.ClearChatHistory(c.Request.Context(), security.GetUserID(c), chatID); err != nil {
		httpapi.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat history cleared successfully"})
}
