package store

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/taskmate/internal/model"
)

// CreateUserRequest is the input for creating a user.
type CreateUserRequest struct {
	Name         string
	Email        string
	PasswordHash string
	Role         model.Role
	JobTitle     string
}

// UserProfileUpdate holds the profile fields a user may change. Nil fields are left untouched.
type UserProfileUpdate struct {
	Name     *string
	JobTitle *string
}

// CreateTaskRequest is the input for creating a task.
type CreateTaskRequest struct {
	Title       string
	Description string
	DueDate     time.Time
	Priority    model.Priority
	Status      model.Status
	AssignedTo  []string
}

// TaskUpdate holds the task fields to change. Nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *model.Priority
	Status      *model.Status
	AssignedTo  []string
}

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Status     model.Status
	Priority   model.Priority
	AssignedTo []string // tasks assigned to all of these users
	CreatedBy  string
}

// CreateNotificationRequest is the input for creating a notification.
type CreateNotificationRequest struct {
	AssignedTo  []string
	Message     string
	Type        model.NotificationType
	RelatedTask string
	CreatedBy   string
}

// GroupMessageRequest is the input for posting to the group chat.
type GroupMessageRequest struct {
	Content    string
	Attachment *model.Attachment
}

// TaskStore defines the primary data access interface for the task service.
type TaskStore interface {
	// Users
	CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, role model.Role) ([]model.User, error)
	UpdateUserProfile(ctx context.Context, userID string, update UserProfileUpdate) (*model.User, error)
	SetUserImage(ctx context.Context, userID string, image string) (*model.User, error)
	ChangePassword(ctx context.Context, userID string, passwordHash string, changedAt time.Time) error
	DeleteUser(ctx context.Context, userID string) (*model.User, error)
	// UsersExist returns a NotFoundError naming the first id without a user.
	UsersExist(ctx context.Context, userIDs []string) error

	// Tasks
	CreateTask(ctx context.Context, actorID string, req CreateTaskRequest) (*model.TaskView, error)
	GetTask(ctx context.Context, taskID string) (*model.TaskView, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]model.TaskView, error)
	ListUserTasks(ctx context.Context, userID string) ([]model.TaskView, error)
	UpdateTask(ctx context.Context, actorID string, taskID string, update TaskUpdate) (*model.TaskView, error)
	UpdateTaskStatus(ctx context.Context, actorID string, taskID string, status model.Status) (*model.TaskView, error)
	TrashTask(ctx context.Context, actorID string, taskID string) error
	RestoreTask(ctx context.Context, actorID string, taskID string) error
	DeleteTaskPermanently(ctx context.Context, actorID string, taskID string) error
	ListTrash(ctx context.Context, creatorID string) ([]model.TaskView, error)
	EmptyTrash(ctx context.Context, actorID string) (int64, error)
	// OpenTasks lists the not-completed, not-deleted tasks assigned to a user by due date.
	OpenTasks(ctx context.Context, userID string) ([]model.Task, error)

	// Scheduler
	DueTasks(ctx context.Context, now time.Time, window time.Duration, limit int) ([]model.Task, error)
	MarkDueReminderSent(ctx context.Context, taskID string, at time.Time) (bool, error)
	PurgeTrash(ctx context.Context, olderThan time.Time) (int64, error)

	// Notifications
	CreateNotification(ctx context.Context, req CreateNotificationRequest) (*model.Notification, error)
	ListUserNotifications(ctx context.Context, userID string) ([]model.NotificationView, error)
	GetNotification(ctx context.Context, notificationID string) (*model.Notification, error)
	ReadNotification(ctx context.Context, notificationID string) (*model.NotificationView, error)
	DeleteNotification(ctx context.Context, notificationID string) error
	DeleteUserNotifications(ctx context.Context, userID string) (int64, error)
	UpsertMessageNotification(ctx context.Context, senderID string, receiverID string, message string) error

	// Inbox
	SendMessage(ctx context.Context, senderID string, receiverID string, body string) (*model.InboxMessage, error)
	ListReceived(ctx context.Context, receiverID string) ([]model.InboxMessageView, error)
	Conversation(ctx context.Context, userID string, otherID string) (*model.Conversation, error)
	HasUnread(ctx context.Context, userID string) (bool, error)
	Senders(ctx context.Context, userID string) ([]model.InboxSender, error)
	ChatPeers(ctx context.Context, userID string) ([]model.ChatPeer, error)
	GetMessages(ctx context.Context, messageIDs []string) ([]model.InboxMessage, error)
	DeleteMessages(ctx context.Context, messageIDs []string) ([]model.InboxMessage, error)
	ClearConversation(ctx context.Context, userID string, otherID string) error

	// Group chat
	GetGroupChat(ctx context.Context) (*model.GroupChat, error)
	GetGroupMessage(ctx context.Context, messageID string) (*model.GroupMessage, error)
	AppendGroupMessage(ctx context.Context, senderID string, req GroupMessageRequest) (*model.GroupMessage, error)
	UpdateGroupMessage(ctx context.Context, messageID string, content string) (*model.GroupMessage, error)
	DeleteGroupMessage(ctx context.Context, messageID string) error
	ToggleGroupMessagePin(ctx context.Context, messageID string) (*model.GroupMessage, error)
	ToggleGroupMessaging(ctx context.Context) (bool, error)
	MarkGroupChatRead(ctx context.Context, userID string) (int64, error)

	// Chatbot
	ListChats(ctx context.Context, userID string) ([]model.Chatbot, error)
	CreateChat(ctx context.Context, userID string, name string) (*model.Chatbot, error)
	GetChat(ctx context.Context, userID string, chatID string) (*model.Chatbot, error)
	RenameChat(ctx context.Context, userID string, chatID string, name string) (*model.Chatbot, error)
	DeleteChat(ctx context.Context, userID string, chatID string) error
	AppendChatTurns(ctx context.Context, userID string, chatID string, turns ...model.ChatTurn) (*model.Chatbot, error)
	ClearChatHistory(ctx context.Context, userID string, chatID string) error
}

// Loader creates a TaskStore from config.
type Loader func(ctx context.Context) (TaskStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
