package model

import (
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// DefaultJobTitle is assigned to users created without a job title.
const DefaultJobTitle = "Employee"

// User is an account that can sign in.
type User struct {
	ID                string     `json:"_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Role              Role       `json:"role"`
	JobTitle          string     `json:"jobTitle"`
	Image             string     `json:"image,omitempty"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Summary returns the public subset of the user used when populating references.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image, Role: u.Role}
}

// UserSummary is a populated user reference.
type UserSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

// Priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Status of a task.
type Status string

const (
	StatusToDo       Status = "to do"
	StatusInProgress Status = "in progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a unit of work created by an admin and assigned to users.
type Task struct {
	ID                string     `json:"_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	DueDate           time.Time  `json:"dueDate"`
	Priority          Priority   `json:"priority"`
	Status            Status     `json:"status"`
	AssignedTo        []string   `json:"assignedTo"`
	CreatedBy         string     `json:"createdBy"`
	IsDeleted         bool       `json:"isDeleted"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty"`
	DueReminderSentAt *time.Time `json:"dueReminderSentAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// IsAssignee reports whether userID is one of the task's assignees.
func (t *Task) IsAssignee(userID string) bool {
	for _, id := range t.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// TaskView is a task with its assignees and creator populated.
type TaskView struct {
	ID          string        `json:"_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	DueDate     time.Time     `json:"dueDate"`
	Priority    Priority      `json:"priority"`
	Status      Status        `json:"status"`
	AssignedTo  []UserSummary `json:"assignedTo"`
	CreatedBy   *UserSummary  `json:"createdBy"`
	IsDeleted   bool          `json:"isDeleted"`
	DeletedAt   *time.Time    `json:"deletedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// IsAssignee reports whether userID is one of the task's assignees.
func (t *TaskView) IsAssignee(userID string) bool {
	for _, u := range t.AssignedTo {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// IsCreator reports whether userID created the task.
func (t *TaskView) IsCreator(userID string) bool {
	return t.CreatedBy != nil && t.CreatedBy.ID == userID
}

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationTaskCreated  NotificationType = "task_created"
	NotificationTaskUpdated  NotificationType = "task_updated"
	NotificationTaskDue      NotificationType = "task_due"
	NotificationTaskTrashed  NotificationType = "task_trashed"
	NotificationTaskRestored NotificationType = "task_restored"
	NotificationTaskDeleted  NotificationType = "task_deleted"
	NotificationGeneral      NotificationType = "general"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTaskCreated, NotificationTaskUpdated, NotificationTaskDue,
		NotificationTaskTrashed, NotificationTaskRestored, NotificationTaskDeleted,
		NotificationGeneral:
		return true
	}
	return false
}

// MaxNotificationMessage is the longest notification message stored.
const MaxNotificationMessage = 100

// Notification informs one or more users about an event.
type Notification struct {
	ID          string           `json:"_id"`
	AssignedTo  []string         `json:"assignedTo"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"isRead"`
	Type        NotificationType `json:"type"`
	RelatedTask string           `json:"relatedTask,omitempty"`
	CreatedBy   string           `json:"createdBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// TaskRef is the populated subset of a task referenced by a notification.
type TaskRef struct {
	ID      string    `json:"_id"`
	Title   string    `json:"title"`
	DueDate time.Time `json:"dueDate"`
	Status  Status    `json:"status"`
}

// NotificationView is a notification with relatedTask and createdBy populated.
type NotificationView struct {
	ID          string           `json:"_id"`
	AssignedTo  []string         `json:"assignedTo"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"isRead"`
	Type        NotificationType `json:"type"`
	RelatedTask *TaskRef         `json:"relatedTask"`
	CreatedBy   *UserSummary     `json:"createdBy"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// TruncateMessage clips a notification message to MaxNotificationMessage runes.
func TruncateMessage(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxNotificationMessage {
		return msg
	}
	return string(r[:MaxNotificationMessage-3]) + "..."
}
