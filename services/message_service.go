package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"direct-chat/metrics"
	"direct-chat/models"
)

// SendInput is an outgoing message as received from the sender.
type SendInput struct {
	SenderID   string
	ReceiverID string
	Text       string
	Image      string // data URI; resolved through the media store
}

// MessageService validates, persists and routes outgoing messages.
type MessageService struct {
	store  *MessageStore
	media  MediaStore
	router *DeliveryRouter
	log    zerolog.Logger
}

// NewMessageService wires the ingress path.
func NewMessageService(store *MessageStore, media MediaStore, router *DeliveryRouter, log zerolog.Logger) *MessageService {
	return &MessageService{
		store:  store,
		media:  media,
		router: router,
		log:    log.With().Str("component", "messages").Logger(),
	}
}

// Send persists the message and pushes it to the receiver if online. The
// returned message is the sender's own copy: senders never receive their
// messages over the push channel. A malformed image is a validation
// error and is rejected before the media store is called. Nothing is
// delivered when the upload or the append fails.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if in.SenderID == "" {
		return nil, &UnauthenticatedError{Reason: "missing sender"}
	}
	if in.ReceiverID == "" {
		return nil, &ValidationError{Field: "receiverId", Reason: "is required"}
	}
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == "" {
		return nil, &ValidationError{Reason: "message must have text or an image"}
	}

	var imageURL string
	if in.Image != "" {
		if _, _, err := decodeDataURI(in.Image); err != nil {
			return nil, err
		}
		if s.media == nil {
			return nil, &MediaUploadError{Err: errNoMediaStore}
		}
		start := time.Now()
		url, err := s.media.Upload(ctx, in.Image)
		metrics.MediaUploadDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			s.log.Warn().Err(err).Str("sender_id", in.SenderID).Msg("image upload failed")
			return nil, &MediaUploadError{Err: err}
		}
		imageURL = url
	}

	stored, err := s.store.Append(ctx, &models.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Text:       text,
		Image:      imageURL,
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues(metrics.MessageKind(stored.Text, stored.Image)).Inc()

	s.router.Deliver(ctx, stored)
	return stored, nil
}

// History returns the conversation between the caller and other.
func (s *MessageService) History(ctx context.Context, callerID, otherID string) ([]models.Message, error) {
	if callerID == "" {
		return nil, &UnauthenticatedError{Reason: "missing caller"}
	}
	return s.store.History(ctx, callerID, otherID)
}
