package inbox_test

import (
	"net/http"
	"testing"

	"github.com/chirino/taskmate/internal/model"
	"github.com/chirino/taskmate/internal/testutil/testapi"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type sendResponse struct {
	Message string             `json:"message"`
	Inbox   model.InboxMessage `json:"inbox"`
}

type conversationResponse struct {
	Messages  []model.InboxMessageView `json:"messages"`
	HasUnread bool                     `json:"hasUnread"`
}

type unreadResponse struct {
	HasUnread bool `json:"hasUnread"`
}

func send(t *testing.T, env *testapi.Env, token, to, body string) model.InboxMessage {
	t.Helper()
	w := env.Do(t, http.MethodPost, "/api/inbox/"+to, token, gin.H{"body": body})
	testapi.RequireStatus(t, w, http.StatusCreated)
	return testapi.Decode[sendResponse](t, w).Inbox
}

func TestConversationAndUnread(t *testing.T) {
	env := testapi.Start(t)
	a, aToken := env.CreateUser(t, "Ann", model.RoleUser)
	b, bToken := env.CreateUser(t, "Ben", model.RoleUser)

	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/inbox/"+b.ID, aToken, gin.H{"body": ""}), http.StatusBadRequest)
	testapi.RequireStatus(t, env.Do(t, http.MethodPost, "/api/inbox/0123456789abcdef01234567", aToken, gin.H{"body": "hi"}), http.StatusNotFound)

	send(t, env, aToken, b.ID, "hello")
	send(t, env, aToken, b.ID, "are you there?")
	send(t, env, bToken, a.ID, "yes")

	w := env.Do(t, http.MethodGet, "/api/inbox/unread", bToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.True(t, testapi.Decode[unreadResponse](t, w).HasUnread)

	w = env.Do(t, http.MethodGet, "/api/inbox/chat/"+a.ID, bToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	conv := testapi.Decode[conversationResponse](t, w)
	require.Len(t, conv.Messages, 3)
	require.Equal(t, "hello", conv.Messages[0].Body)
	require.Equal(t, "yes", conv.Messages[2].Body)
	require.Equal(t, "Ann", conv.Messages[0].Sender.Name)
	require.False(t, conv.HasUnread)

	w = env.Do(t, http.MethodGet, "/api/inbox/unread", bToken, nil)
	require.False(t, testapi.Decode[unreadResponse](t, w).HasUnread)

	w = env.Do(t, http.MethodGet, "/api/inbox/senders", bToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	senders := testapi.Decode[struct {
		Senders []model.InboxSender `json:"senders"`
	}](t, w).Senders
	require.Len(t, senders, 1)
	require.Equal(t, 2, senders[0].MessageCount)
	require.Equal(t, "are you there?", senders[0].LastMessage.Body)

	w = env.Do(t, http.MethodGet, "/api/inbox/chat-users", aToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	peers := testapi.Decode[struct {
		Users []model.ChatPeer `json:"users"`
	}](t, w).Users
	require.Len(t, peers, 1)
	require.Equal(t, b.ID, peers[0].User.ID)
	require.Equal(t, "yes", peers[0].LastMessage)

	w = env.Do(t, http.MethodGet, "/api/notification/"+b.ID, bToken, nil)
	notes := testapi.Decode[struct {
		UserNotification []model.NotificationView `json:"userNotification"`
	}](t, w).UserNotification
	require.Len(t, notes, 1)
	require.Equal(t, "Ann sent you a message", notes[0].Message)
}

func TestClearConversationIsOneSided(t *testing.T) {
	env := testapi.Start(t)
	a, aToken := env.CreateUser(t, "Ann", model.RoleUser)
	b, bToken := env.CreateUser(t, "Ben", model.RoleUser)

	send(t, env, aToken, b.ID, "one")
	send(t, env, bToken, a.ID, "two")

	w := env.Do(t, http.MethodDelete, "/api/inbox/all/"+b.ID, aToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Contains(t, w.Body.String(), "chat history has been cleared")

	w = env.Do(t, http.MethodGet, "/api/inbox/chat/"+b.ID, aToken, nil)
	require.Empty(t, testapi.Decode[conversationResponse](t, w).Messages)

	w = env.Do(t, http.MethodGet, "/api/inbox/chat/"+a.ID, bToken, nil)
	require.Len(t, testapi.Decode[conversationResponse](t, w).Messages, 2)
}

func TestDeleteMessages(t *testing.T) {
	env := testapi.Start(t)
	a, aToken := env.CreateUser(t, "Ann", model.RoleUser)
	b, bToken := env.CreateUser(t, "Ben", model.RoleUser)

	mine := send(t, env, aToken, b.ID, "delete me")
	theirs := send(t, env, bToken, a.ID, "keep me")

	testapi.RequireStatus(t, env.Do(t, http.MethodDelete, "/api/inbox", aToken, gin.H{}), http.StatusBadRequest)
	testapi.RequireStatus(t, env.Do(t, http.MethodDelete, "/api/inbox", aToken, gin.H{"inboxes": []string{theirs.ID}}), http.StatusForbidden)
	testapi.RequireStatus(t, env.Do(t, http.MethodDelete, "/api/inbox", aToken, gin.H{"inboxes": []string{"0123456789abcdef01234567"}}), http.StatusNotFound)

	w := env.Do(t, http.MethodDelete, "/api/inbox", aToken, gin.H{"inboxes": []string{mine.ID}})
	testapi.RequireStatus(t, w, http.StatusOK)
	deleted := testapi.Decode[struct {
		DeletedInboxes []model.InboxMessage `json:"deletedInboxes"`
	}](t, w).DeletedInboxes
	require.Len(t, deleted, 1)
	require.Equal(t, mine.ID, deleted[0].ID)

	w = env.Do(t, http.MethodGet, "/api/inbox/user/"+b.ID, bToken, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Contains(t, w.Body.String(), `"userInbox":[]`)
	testapi.RequireStatus(t, env.Do(t, http.MethodGet, "/api/inbox/user/"+b.ID, aToken, nil), http.StatusForbidden)
}
