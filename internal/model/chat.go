package model

import "time"

// InboxMessage is a direct message between two users.
type InboxMessage struct {
	ID         string    `json:"_id"`
	Sender     string    `json:"sender"`
	Receiver   string    `json:"receiver"`
	Body       string    `json:"body"`
	IsRead     bool      `json:"isRead"`
	DeletedFor []string  `json:"deletedFor"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// InboxMessageView is a direct message with its sender and receiver populated.
type InboxMessageView struct {
	ID        string       `json:"_id"`
	Sender    *UserSummary `json:"sender"`
	Receiver  *UserSummary `json:"receiver"`
	Body      string       `json:"body"`
	IsRead    bool         `json:"isRead"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// InboxLastMessage is the most recent message from a sender.
type InboxLastMessage struct {
	ID        string    `json:"_id"`
	Body      string    `json:"body"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// InboxSender summarizes the messages one sender has sent to the caller.
type InboxSender struct {
	ID           string           `json:"_id"`
	MessageCount int              `json:"messageCount"`
	LastMessage  InboxLastMessage `json:"lastMessage"`
	Sender       UserSummary      `json:"sender"`
}

// ChatPeer is a user the caller has exchanged messages with and the latest message.
type ChatPeer struct {
	ID          string      `json:"_id"`
	LastMessage string      `json:"lastMessage"`
	LastDate    time.Time   `json:"lastDate"`
	User        UserSummary `json:"user"`
}

// Conversation is the direct-message thread between the caller and another user.
type Conversation struct {
	Messages  []InboxMessageView `json:"messages"`
	HasUnread bool               `json:"hasUnread"`
}

// AttachmentType classifies a group message attachment.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentFile     AttachmentType = "file"
	AttachmentDocument AttachmentType = "document"
	AttachmentOther    AttachmentType = "other"
)

// Attachment describes an uploaded file referenced by a group message.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	URL      string         `json:"url"`
	Filename string         `json:"filename"`
	Size     int64          `json:"size"`
	MimeType string         `json:"mimeType"`
}

// MaxGroupMessage is the longest group message content accepted.
const MaxGroupMessage = 1000

// GroupChatID is the fixed identifier of the single group chat.
const GroupChatID = "group"

// GroupMessage is a message posted to the group chat.
type GroupMessage struct {
	ID         string       `json:"_id"`
	Sender     *UserSummary `json:"sender"`
	Content    string       `json:"content"`
	Attachment *Attachment  `json:"attachment,omitempty"`
	ReadBy     []string     `json:"readBy"`
	IsPinned   bool         `json:"isPinned"`
	LastEdited *time.Time   `json:"lastEdited,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// GroupChat is the singleton group conversation shared by all users.
type GroupChat struct {
	ID               string         `json:"_id"`
	IsMessageAllowed bool           `json:"isMessageAllowed"`
	Messages         []GroupMessage `json:"messages"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// ChatRole is the author of a chatbot turn.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatTurn is one message in an assistant conversation.
type ChatTurn struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultChatName is used for chatbot conversations created without a name.
const DefaultChatName = "New Chat"

// Chatbot is a named assistant conversation owned by one user.
type Chatbot struct {
	ID          string     `json:"_id"`
	User        string     `json:"user"`
	Name        string     `json:"name"`
	ChatHistory []ChatTurn `json:"chatHistory"`
	LastActive  time.Time  `json:"lastActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
