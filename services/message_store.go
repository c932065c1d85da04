package services

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"direct-chat/models"
)

// MessageStore persists messages and answers conversation history queries.
type MessageStore struct {
	db *gorm.DB

	mu      sync.Mutex
	last    time.Time
	entropy io.Reader
	now     func() time.Time
}

// NewMessageStore creates a store backed by db.
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// stamp returns a creation time that never goes backwards for this store,
// together with an id that sorts in the same order.
func (s *MessageStore) stamp() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC().Truncate(time.Millisecond)
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	id := ulid.MustNew(ulid.Timestamp(now), s.entropy)
	return id.String(), now
}

// Append validates and persists msg, assigning its id and timestamps.
func (s *MessageStore) Append(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.SenderID == "" {
		return nil, &ValidationError{Field: "senderId", Reason: "is required"}
	}
	if msg.ReceiverID == "" {
		return nil, &ValidationError{Field: "receiverId", Reason: "is required"}
	}
	if !msg.HasContent() {
		return nil, &ValidationError{Reason: "message must have text or an image"}
	}

	stored := *msg
	stored.ID, stored.CreatedAt = s.stamp()
	stored.UpdatedAt = stored.CreatedAt
	stored.ConversationKey = ConversationKey(stored.SenderID, stored.ReceiverID)

	if err := s.db.WithContext(ctx).Create(&stored).Error; err != nil {
		return nil, &StorageError{Op: "append", Err: err}
	}
	return &stored, nil
}

// History returns every message exchanged between userA and userB in
// either direction, oldest first.
func (s *MessageStore) History(ctx context.Context, userA, userB string) ([]models.Message, error) {
	if userA == "" || userB == "" {
		return nil, &ValidationError{Reason: "both participants are required"}
	}

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_key = ?", ConversationKey(userA, userB)).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, &StorageError{Op: "history", Err: err}
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// Ping checks the underlying database connection.
func (s *MessageStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}
