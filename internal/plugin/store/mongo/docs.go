package mongo

import (
	"time"

	"github.com/chirino/taskmate/internal/model"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// --- MongoDB document types ---

type userDoc struct {
	ID                bson.ObjectID `bson:"_id"`
	Name              string        `bson:"name"`
	Email             string        `bson:"email"`
	Password          string        `bson:"password"`
	Role              string        `bson:"role"`
	JobTitle          string        `bson:"jobTitle"`
	Image             string        `bson:"image,omitempty"`
	PasswordChangedAt *time.Time    `bson:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time     `bson:"createdAt"`
	UpdatedAt         time.Time     `bson:"updatedAt"`
}

type taskDoc struct {
	ID                bson.ObjectID   `bson:"_id"`
	Title             string          `bson:"title"`
	Description       string          `bson:"description"`
	DueDate           time.Time       `bson:"dueDate"`
	Priority          string          `bson:"priority"`
	Status            string          `bson:"status"`
	AssignedTo        []bson.ObjectID `bson:"assignedTo"`
	CreatedBy         bson.ObjectID   `bson:"createdBy"`
	IsDeleted         bool            `bson:"isDeleted"`
	DeletedAt         *time.Time      `bson:"deletedAt"`
	DueReminderSentAt *time.Time      `bson:"dueReminderSentAt,omitempty"`
	CreatedAt         time.Time       `bson:"createdAt"`
	UpdatedAt         time.Time       `bson:"updatedAt"`
}

type notificationDoc struct {
	ID          bson.ObjectID   `bson:"_id"`
	AssignedTo  []bson.ObjectID `bson:"assignedTo"`
	Message     string          `bson:"message"`
	IsRead      bool            `bson:"isRead"`
	Type        string          `bson:"type"`
	RelatedTask *bson.ObjectID  `bson:"relatedTask,omitempty"`
	CreatedBy   *bson.ObjectID  `bson:"createdBy,omitempty"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

type inboxDoc struct {
	ID         bson.ObjectID   `bson:"_id"`
	Sender     bson.ObjectID   `bson:"sender"`
	Receiver   bson.ObjectID   `bson:"receiver"`
	Body       string          `bson:"body"`
	IsRead     bool            `bson:"isRead"`
	DeletedFor []bson.ObjectID `bson:"deletedFor"`
	CreatedAt  time.Time       `bson:"createdAt"`
	UpdatedAt  time.Time       `bson:"updatedAt"`
}

type attachmentDoc struct {
	Type     string `bson:"type"`
	URL      string `bson:"url"`
	Filename string `bson:"filename"`
	Size     int64  `bson:"size"`
	MimeType string `bson:"mimeType"`
}

type groupMessageDoc struct {
	ID         bson.ObjectID   `bson:"_id"`
	Sender     bson.ObjectID   `bson:"sender"`
	Content    string          `bson:"content"`
	Attachment *attachmentDoc  `bson:"attachment,omitempty"`
	ReadBy     []bson.ObjectID `bson:"readBy"`
	IsPinned   bool            `bson:"isPinned"`
	LastEdited *time.Time      `bson:"lastEdited,omitempty"`
	Timestamp  time.Time       `bson:"timestamp"`
}

type groupChatDoc struct {
	ID               string            `bson:"_id"`
	IsMessageAllowed bool              `bson:"isMessageAllowed"`
	Messages         []groupMessageDoc `bson:"messages"`
	CreatedAt        time.Time         `bson:"createdAt"`
	UpdatedAt        time.Time         `bson:"updatedAt"`
}

type chatTurnDoc struct {
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	Timestamp time.Time `bson:"timestamp"`
}

type chatbotDoc struct {
	ID          bson.ObjectID `bson:"_id"`
	User        bson.ObjectID `bson:"user"`
	Name        string        `bson:"name"`
	ChatHistory []chatTurnDoc `bson:"chatHistory"`
	LastActive  time.Time     `bson:"lastActive"`
	CreatedAt   time.Time     `bson:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt"`
}

// --- Conversions ---

func (d userDoc) toModel() *model.User {
	return &model.User{
		ID:                d.ID.Hex(),
		Name:              d.Name,
		Email:             d.Email,
		PasswordHash:      d.Password,
		Role:              model.Role(d.Role),
		JobTitle:          d.JobTitle,
		Image:             d.Image,
		PasswordChangedAt: d.PasswordChangedAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func (d userDoc) summary() model.UserSummary {
	return model.UserSummary{ID: d.ID.Hex(), Name: d.Name, Email: d.Email, Image: d.Image, Role: model.Role(d.Role)}
}

func (d taskDoc) toModel() model.Task {
	return model.Task{
		ID:                d.ID.Hex(),
		Title:             d.Title,
		Description:       d.Description,
		DueDate:           d.DueDate,
		Priority:          model.Priority(d.Priority),
		Status:            model.Status(d.Status),
		AssignedTo:        hexIDs(d.AssignedTo),
		CreatedBy:         d.CreatedBy.Hex(),
		IsDeleted:         d.IsDeleted,
		DeletedAt:         d.DeletedAt,
		DueReminderSentAt: d.DueReminderSentAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func (d notificationDoc) toModel() *model.Notification {
	n := &model.Notification{
		ID:         d.ID.Hex(),
		AssignedTo: hexIDs(d.AssignedTo),
		Message:    d.Message,
		IsRead:     d.IsRead,
		Type:       model.NotificationType(d.Type),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.RelatedTask != nil {
		n.RelatedTask = d.RelatedTask.Hex()
	}
	if d.CreatedBy != nil {
		n.CreatedBy = d.CreatedBy.Hex()
	}
	return n
}

func (d inboxDoc) toModel() model.InboxMessage {
	return model.InboxMessage{
		ID:         d.ID.Hex(),
		Sender:     d.Sender.Hex(),
		Receiver:   d.Receiver.Hex(),
		Body:       d.Body,
		IsRead:     d.IsRead,
		DeletedFor: hexIDs(d.DeletedFor),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func (d chatbotDoc) toModel() *model.Chatbot {
	history := make([]model.ChatTurn, len(d.ChatHistory))
	for i, t := range d.ChatHistory {
		history[i] = model.ChatTurn{Role: model.ChatRole(t.Role), Content: t.Content, Timestamp: t.Timestamp}
	}
	return &model.Chatbot{
		ID:          d.ID.Hex(),
		User:        d.User.Hex(),
		Name:        d.Name,
		ChatHistory: history,
		LastActive:  d.LastActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func attachmentToDoc(a *model.Attachment) *attachmentDoc {
	if a == nil {
		return nil
	}
	return &attachmentDoc{Type: string(a.Type), URL: a.URL, Filename: a.Filename, Size: a.Size, MimeType: a.MimeType}
}

func (d *attachmentDoc) toModel() *model.Attachment {
	if d == nil {
		return nil
	}
	return &model.Attachment{Type: model.AttachmentType(d.Type), URL: d.URL, Filename: d.Filename, Size: d.Size, MimeType: d.MimeType}
}
