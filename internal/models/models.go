package models

import "time"

type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Password  string     `json:"-"`
	Avatar    string     `json:"avatar,omitempty"`
	IsOnline  bool       `json:"isOnline"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Chat struct {
	ID        string       `json:"id"`
	IsGroup   bool         `json:"isGroup"`
	Name      string       `json:"name,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	Members   []ChatMember `json:"members,omitempty"`
	Messages  []Message    `json:"messages,omitempty"`
}

type ChatMember struct {
	ChatID   string    `json:"chatId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
	User     *User     `json:"user,omitempty"`
}

// Message holds either Content or the File* fields, never both.
type Message struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chatId"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Content    string     `json:"content,omitempty"`
	FileURL    string     `json:"fileUrl,omitempty"`
	FileType   string     `json:"fileType,omitempty"`
	FileName   string     `json:"fileName,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	Status     ReadStatus `json:"status,omitempty"`
}

func (m *Message) IsFile() bool {
	return m.FileURL != ""
}

type MessageRead struct {
	MessageID   string     `json:"messageId"`
	UserID      string     `json:"userId"`
	Username    string     `json:"username,omitempty"`
	DeliveredAt time.Time  `json:"deliveredAt"`
	ReadAt      *time.Time `json:"readAt"`
}

// ReadStatus is derived per message and viewer; it is never stored.
type ReadStatus string

const (
	StatusSent      ReadStatus = "sent"
	StatusDelivered ReadStatus = "delivered"
	StatusRead      ReadStatus = "read"
)
