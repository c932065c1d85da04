package models

import "time"

// Message is a direct message between two users. Rows are written once
// and never updated or deleted.
type Message struct {
	ID              string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	SenderID        string    `gorm:"type:varchar(36);not null;index" json:"senderId"`
	ReceiverID      string    `gorm:"type:varchar(36);not null;index" json:"receiverId"`
	ConversationKey string    `gorm:"type:varchar(80);not null;index:idx_conversation_created,priority:1" json:"-"`
	Text            string    `gorm:"type:text" json:"text,omitempty"`
	Image           string    `gorm:"type:varchar(512)" json:"image,omitempty"`
	CreatedAt       time.Time `gorm:"index:idx_conversation_created,priority:2" json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasContent reports whether the message carries text or an image.
func (m *Message) HasContent() bool {
	return m.Text != "" || m.Image != ""
}
