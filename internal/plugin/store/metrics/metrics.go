package metrics

import (
	"context"
	"time"

	"github.com/chirino/taskmate/internal/model"
	"github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
)

// Wrap returns a TaskStore that records StoreLatency for every operation.
func Wrap(inner store.TaskStore) store.TaskStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.TaskStore
}

func observe(op string, start time.Time) {
	security.ObserveStoreLatency(op, time.Since(start))
}

func (m *metricsStore) CreateUser(ctx context.Context, req store.CreateUserRequest) (*model.User, error) {
	defer observe("create_user", time.Now())
	return m.inner.CreateUser(ctx, req)
}

func (m *metricsStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	defer observe("get_user", time.Now())
	return m.inner.GetUser(ctx, userID)
}

func (m *metricsStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer observe("get_user_by_email", time.Now())
	return m.inner.GetUserByEmail(ctx, email)
}

func (m *metricsStore) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	defer observe("list_users", time.Now())
	return m.inner.ListUsers(ctx, role)
}

func (m *metricsStore) UpdateUserProfile(ctx context.Context, userID string, update store.UserProfileUpdate) (*model.User, error) {
	defer observe("update_user_profile", time.Now())
	return m.inner.UpdateUserProfile(ctx, userID, update)
}

func (m *metricsStore) SetUserImage(ctx context.Context, userID string, image string) (*model.User, error) {
	defer observe("set_user_image", time.Now())
	return m.inner.SetUserImage(ctx, userID, image)
}

func (m *metricsStore) ChangePassword(ctx context.Context, userID string, passwordHash string, changedAt time.Time) error {
	defer observe("change_password", time.Now())
	return m.inner.ChangePassword(ctx, userID, passwordHash, changedAt)
}

func (m *metricsStore) DeleteUser(ctx context.Context, userID string) (*model.User, error) {
	defer observe("delete_user", time.Now())
	return m.inner.DeleteUser(ctx, userID)
}

func (m *metricsStore) UsersExist(ctx context.Context, userIDs []string) error {
	defer observe("users_exist", time.Now())
	return m.inner.UsersExist(ctx, userIDs)
}

func (m *metricsStore) CreateTask(ctx context.Context, actorID string, req store.CreateTaskRequest) (*model.TaskView, error) {
	defer observe("create_task", time.Now())
	return m.inner.CreateTask(ctx, actorID, req)
}

func (m *metricsStore) GetTask(ctx context.Context, taskID string) (*model.TaskView, error) {
	defer observe("get_task", time.Now())
	return m.inner.GetTask(ctx, taskID)
}

func (m *metricsStore) ListTasks(ctx context.Context, filter store.TaskFilter) ([]model.TaskView, error) {
	defer observe("list_tasks", time.Now())
	return m.inner.ListTasks(ctx, filter)
}

func (m *metricsStore) ListUserTasks(ctx context.Context, userID string) ([]model.TaskView, error) {
	defer observe("list_user_tasks", time.Now())
	return m.inner.ListUserTasks(ctx, userID)
}

func (m *metricsStore) UpdateTask(ctx context.Context, actorID string, taskID string, update store.TaskUpdate) (*model.TaskView, error) {
	defer observe("update_task", time.Now())
	return m.inner.UpdateTask(ctx, actorID, taskID, update)
}

func (m *metricsStore) UpdateTaskStatus(ctx context.Context, actorID string, taskID string, status model.Status) (*model.TaskView, error) {
	defer observe("update_task_status", time.Now())
	return m.inner.UpdateTaskStatus(ctx, actorID, taskID, status)
}

func (m *metricsStore) TrashTask(ctx context.Context, actorID string, taskID string) error {
	defer observe("trash_task", time.Now())
	return m.inner.TrashTask(ctx, actorID, taskID)
}

func (m *metricsStore) RestoreTask(ctx context.Context, actorID string, taskID string) error {
	defer observe("restore_task", time.Now())
	return m.inner.RestoreTask(ctx, actorID, taskID)
}

func (m *metricsStore) DeleteTaskPermanently(ctx context.Context, actorID string, taskID string) error {
	defer observe("delete_task_permanently", time.Now())
	return m.inner.DeleteTaskPermanently(ctx, actorID, taskID)
}

func (m *metricsStore) ListTrash(ctx context.Context, creatorID string) ([]model.TaskView, error) {
	defer observe("list_trash", time.Now())
	return m.inner.ListTrash(ctx, creatorID)
}

func (m *metricsStore) EmptyTrash(ctx context.Context, actorID string) (int64, error) {
	defer observe("empty_trash", time.Now())
	return m.inner.EmptyTrash(ctx, actorID)
}

func (m *metricsStore) OpenTasks(ctx context.Context, userID string) ([]model.Task, error) {
	defer observe("open_tasks", time.Now())
	return m.inner.OpenTasks(ctx, userID)
}

func (m *metricsStore) DueTasks(ctx context.Context, now time.Time, window time.Duration, limit int) ([]model.Task, error) {
	defer observe("due_tasks", time.Now())
	return m.inner.DueTasks(ctx, now, window, limit)
}

func (m *metricsStore) MarkDueReminderSent(ctx context.Context, taskID string, at time.Time) (bool, error) {
	defer observe("mark_due_reminder_sent", time.Now())
	return m.inner.MarkDueReminderSent(ctx, taskID, at)
}

func (m *metricsStore) PurgeTrash(ctx context.Context, olderThan time.Time) (int64, error) {
	defer observe("purge_trash", time.Now())
	return m.inner.PurgeTrash(ctx, olderThan)
}

func (m *metricsStore) CreateNotification(ctx context.Context, req store.CreateNotificationRequest) (*model.Notification, error) {
	defer observe("create_notification", time.Now())
	return m.inner.CreateNotification(ctx, req)
}

func (m *metricsStore) ListUserNotifications(ctx context.Context, userID string) ([]model.NotificationView, error) {
	defer observe("list_user_notifications", time.Now())
	return m.inner.ListUserNotifications(ctx, userID)
}

func (m *metricsStore) GetNotification(ctx context.Context, notificationID string) (*model.Notification, error) {
	defer observe("get_notification", time.Now())
	return m.inner.GetNotification(ctx, notificationID)
}

func (m *metricsStore) ReadNotification(ctx context.Context, notificationID string) (*model.NotificationView, error) {
	defer observe("read_notification", time.Now())
	return m.inner.ReadNotification(ctx, notificationID)
}

func (m *metricsStore) DeleteNotification(ctx context.Context, notificationID string) error {
	defer observe("delete_notification", time.Now())
	return m.inner.DeleteNotification(ctx, notificationID)
}

func (m *metricsStore) DeleteUserNotifications(ctx context.Context, userID string) (int64, error) {
	defer observe("delete_user_notifications", time.Now())
	return m.inner.DeleteUserNotifications(ctx, userID)
}

func (m *metricsStore) UpsertMessageNotification(ctx context.Context, senderID string, receiverID string, message string) error {
	defer observe("upsert_message_notification", time.Now())
	return m.inner.UpsertMessageNotification(ctx, senderID, receiverID, message)
}

func (m *metricsStore) SendMessage(ctx context.Context, senderID string, receiverID string, body string) (*model.InboxMessage, error) {
	defer observe("send_message", time.Now())
	return m.inner.SendMessage(ctx, senderID, receiverID, body)
}

func (m *metricsStore) ListReceived(ctx context.Context, receiverID string) ([]model.InboxMessageView, error) {
	defer observe("list_received", time.Now())
	return m.inner.ListReceived(ctx, receiverID)
}

func (m *metricsStore) Conversation(ctx context.Context, userID string, otherID string) (*model.Conversation, error) {
	defer observe("conversation", time.Now())
	return m.inner.Conversation(ctx, userID, otherID)
}

func (m *metricsStore) HasUnread(ctx context.Context, userID string) (bool, error) {
	defer observe("has_unread", time.Now())
	return m.inner.HasUnread(ctx, userID)
}

func (m *metricsStore) Senders(ctx context.Context, userID string) ([]model.InboxSender, error) {
	defer observe("senders", time.Now())
	return m.inner.Senders(ctx, userID)
}

func (m *metricsStore) ChatPeers(ctx context.Context, userID string) ([]model.ChatPeer, error) {
	defer observe("chat_peers", time.Now())
	return m.inner.ChatPeers(ctx, userID)
}

func (m *metricsStore) GetMessages(ctx context.Context, messageIDs []string) ([]model.InboxMessage, error) {
	defer observe("get_messages", time.Now())
	return m.inner.GetMessages(ctx, messageIDs)
}

func (m *metricsStore) DeleteMessages(ctx context.Context, messageIDs []string) ([]model.InboxMessage, error) {
	defer observe("delete_messages", time.Now())
	return m.inner.DeleteMessages(ctx, messageIDs)
}

func (m *metricsStore) ClearConversation(ctx context.Context, userID string, otherID string) error {
	defer observe("clear_conversation", time.Now())
	return m.inner.ClearConversation(ctx, userID, otherID)
}

func (m *metricsStore) GetGroupChat(ctx context.Context) (*model.GroupChat, error) {
	defer observe("get_group_chat", time.Now())
	return m.inner.GetGroupChat(ctx)
}

func (m *metricsStore) GetGroupMessage(ctx context.Context, messageID string) (*model.GroupMessage, error) {
	defer observe("get_group_message", time.Now())
	return m.inner.GetGroupMessage(ctx, messageID)
}

func (m *metricsStore) AppendGroupMessage(ctx context.Context, senderID string, req store.GroupMessageRequest) (*model.GroupMessage, error) {
	defer observe("append_group_message", time.Now())
	return m.inner.AppendGroupMessage(ctx, senderID, req)
}

func (m *metricsStore) UpdateGroupMessage(ctx context.Context, messageID string, content string) (*model.GroupMessage, error) {
	defer observe("update_group_message", time.Now())
	return m.inner.UpdateGroupMessage(ctx, messageID, content)
}

func (m *metricsStore) DeleteGroupMessage(ctx context.Context, messageID string) error {
	defer observe("delete_group_message", time.Now())
	return m.inner.DeleteGroupMessage(ctx, messageID)
}

func (m *metricsStore) ToggleGroupMessagePin(ctx context.Context, messageID string) (*model.GroupMessage, error) {
	defer observe("toggle_group_message_pin", time.Now())
	return m.inner.ToggleGroupMessagePin(ctx, messageID)
}

func (m *metricsStore) ToggleGroupMessaging(ctx context.Context) (bool, error) {
	defer observe("toggle_group_messaging", time.Now())
	return m.inner.ToggleGroupMessaging(ctx)
}

func (m *metricsStore) MarkGroupChatRead(ctx context.Context, userID string) (int64, error) {
	defer observe("mark_group_chat_read", time.Now())
	return m.inner.MarkGroupChatRead(ctx, userID)
}

func (m *metricsStore) ListChats(ctx context.Context, userID string) ([]model.Chatbot, error) {
	defer observe("list_chats", time.Now())
	return m.inner.ListChats(ctx, userID)
}

func (m *metricsStore) CreateChat(ctx context.Context, userID string, name string) (*model.Chatbot, error) {
	defer observe("create_chat", time.Now())
	return m.inner.CreateChat(ctx, userID, name)
}

func (m *metricsStore) GetChat(ctx context.Context, userID string, chatID string) (*model.Chatbot, error) {
	defer observe("get_chat", time.Now())
	return m.inner.GetChat(ctx, userID, chatID)
}

func (m *metricsStore) RenameChat(ctx context.Context, userID string, chatID string, name string) (*model.Chatbot, error) {
	defer observe("rename_chat", time.Now())
	return m.inner.RenameChat(ctx, userID, chatID, name)
}

func (m *metricsStore) DeleteChat(ctx context.Context, userID string, chatID string) error {
	defer observe("delete_chat", time.Now())
	return m.inner.DeleteChat(ctx, userID, chatID)
}

func (m *metricsStore) AppendChatTurns(ctx context.Context, userID string, chatID string, turns ...model.ChatTurn) (*model.Chatbot, error) {
	defer observe("append_chat_turns", time.Now())
	return m.inner.AppendChatTurns(ctx, userID, chatID, turns...)
}

func (m *metricsStore) ClearChatHistory(ctx context.Context, userID string, chatID string) error {
	defer observe("clear_chat_history", time.Now())
	return m.inner.ClearChatHistory(ctx, userID, chatID)
}

var _ store.TaskStore = (*metricsStore)(nil)
