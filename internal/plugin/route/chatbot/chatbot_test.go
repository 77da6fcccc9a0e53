package chatbot_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/chirino/taskmate/internal/model"
	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/testutil/testapi"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type chatResponse struct {
	Message string        `json:"message"`
	Chatbot model.Chatbot `json:"chatbot"`
}

type replyResponse struct {
	Message     string           `json:"message"`
	Response    string           `json:"response"`
	ChatHistory []model.ChatTurn `json:"chatHistory"`
}

func createChat(t *testing.T, env *testapi.Env, token string, body any) model.Chatbot {
	t.Helper()
	w := env.Do(t, http.MethodPost, "/api/chatbot", token, body)
	testapi.RequireStatus(t, w, http.StatusCreated)
	return testapi.Decode[chatResponse](t, w).Chatbot
}

func TestChatManagement(t *testing.T) {
	env := testapi.Start(t)
	_, annToken := env.CreateUser(t, "Ann", model.RoleUser)
	_, benToken := env.CreateUser(t, "Ben", model.RoleUser)

	first := createChat(t, env, annToken, nil)
	require.Equal(t, model.DefaultChatName, first.Name)
	second := createChat(t, env, annToken, gin.H{"name": "Planning"})

	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/chatbot", annToken, gin.H{"name": "Planning"}), http.StatusConflict)

	w := env.Do(t, http.MethodPatch, "/api/chatbot/"+first.ID, annToken, gin.H{"name": "Planning"})
	testapi.RequireStatus(t, w, http.StatusConflict)
	testapi.RequireStatus(t, env.Do(t, http.MethodPatch, "/api/chatbot/"+first.ID, annToken, gin.H{}), http.StatusBadRequest)
	w = env.Do(t, http.MethodPatch, "/api/chatbot/"+first.ID, annToken, gin.H{"name": "Retro"})
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Equal(t, "Retro", testapi.Decode[chatResponse](t, w).Chatbot.Name)

	testapi.RequireStatus(t, env.Do(t, http.MethodGet, "/api/chatbot/"+second.ID+"/history", benToken, nil), http.StatusNotFound)
	testapi.RequireStatus(t, env.Do(t, http.MethodDelete, "/api/chatbot/"+second.ID, benToken, nil), http.StatusNotFound)

	w = env.Do(t, http.MethodGet, "/api/chatbot", annToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	chats := testapi.Decode[struct {
		Chats []model.Chatbot `json:"chats"`
	}](t, w).Chats
	require.Len(t, chats, 2)

	w = env.Do(t, http.MethodDelete, "/api/chatbot/"+second.ID, annToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Contains(t, w.Body.String(), "Chat deleted successfully")

	w = env.Do(t, http.MethodGet, "/api/chatbot", benToken, nil)
	require.Contains(t, w.Body.String(), `"chats":[]`)
}

func TestSendMessageIncludesOpenTasks(t *testing.T) {
	env := testapi.Start(t)
	admin, _ := env.CreateUser(t, "Admin", model.RoleAdmin)
	ann, annToken := env.CreateUser(t, "Ann", model.RoleUser)

	_, err := env.Store.CreateTask(env.Ctx, admin.ID, registrystore.CreateTaskRequest{
		Title:       "Ship release",
		Description: "Tag and publish",
		DueDate:     time.Now().Add(24 * time.Hour),
		AssignedTo:  []string{ann.ID},
	})
	require.NoError(t, err)

	chat := createChat(t, env, annToken, gin.H{"name": "Help"})
	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/chatbot/"+chat.ID+"/message", annToken, gin.H{}), http.StatusBadRequest)

	w := env.Do(t, http.MethodPost, "/api/chatbot/"+chat.ID+"/message", annToken, gin.H{"message": "What should I do first?"})
	testapi.RequireStatus(t, w, http.StatusOK)
	reply := testapi.Decode[replyResponse](t, w)
	require.Equal(t, env.Assistant.Reply, reply.Response)
	require.Len(t, reply.ChatHistory, 2)
	require.Equal(t, model.ChatRoleUser, reply.ChatHistory[0].Role)
	require.Equal(t, model.ChatRoleAssistant, reply.ChatHistory[1].Role)

	sent := env.Assistant.LastCall()
	require.Equal(t, model.ChatRoleSystem, sent[0].Role)
	require.Contains(t, sent[0].Content, "TaskMate")
	require.Contains(t, sent[0].Content, "Ship release")
	require.Equal(t, registryassistant.Message{Role: model.ChatRoleUser, Content: "What should I do first?"}, sent[len(sent)-1])

	w = env.Do(t, http.MethodPost, "/api/chatbot/"+chat.ID+"/message", annToken, gin.H{"message": "And then?"})
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Len(t, env.Assistant.LastCall(), 4)

	w = env.Do(t, http.MethodGet, "/api/chatbot/"+chat.ID+"/history", annToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Len(t, testapi.Decode[replyResponse](t, w).ChatHistory, 4)

	w = env.Do(t, http.MethodDelete, "/api/chatbot/"+chat.ID+"/history", annToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Contains(t, w.Body.String(), "Chat history cleared successfully")
	w = env.Do(t, http.MethodGet, "/api/chatbot/"+chat.ID+"/history", annToken, nil)
	require.Contains(t, w.Body.String(), `"chatHistory":[]`)
}

func TestAssistantFailureKeepsHistory(t *testing.T) {
	env := testapi.Start(t)
	_, annToken := env.CreateUser(t, "Ann", model.RoleUser)
	chat := createChat(t, env, annToken, nil)

	env.Assistant.SetError(fmt.Errorf("upstream: %w", errors.New("timeout")))
	w := env.Do(t, http.MethodPost, "/api/chatbot/"+chat.ID+"/message", annToken, gin.H{"message": "hello"})
	testapi.RequireStatus(t, w, http.StatusBadGateway)
	require.Contains(t, w.Body.String(), "Error communicating with chatbot")

	env.Assistant.SetError(registryassistant.ErrDisabled)
	w = env.Do(t, http.MethodPost, "/api/chatbot/"+chat.ID+"/message", annToken, gin.H{"message": "hello"})
	testapi.RequireStatus(t, w, http.StatusServiceUnavailable)

	w = env.Do(t, http.MethodGet, "/api/chatbot/"+chat.ID+"/history", annToken, nil)
	require.Contains(t, w.Body.String(), `"chatHistory":[]`)
}
