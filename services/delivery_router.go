package services

import (
	"context"

	"github.com/rs/zerolog"

	"direct-chat/metrics"
	"direct-chat/models"
)

// Emitter delivers a named event to a channel, at most once.
type Emitter interface {
	Emit(channelID, event string, payload any) bool
}

// DeliveryRouter pushes stored messages to the receiver's live channel.
type DeliveryRouter struct {
	registry *ConnectionRegistry
	emitter  Emitter
	log      zerolog.Logger
}

// NewDeliveryRouter creates a router that resolves channels through registry.
func NewDeliveryRouter(registry *ConnectionRegistry, emitter Emitter, log zerolog.Logger) *DeliveryRouter {
	return &DeliveryRouter{
		registry: registry,
		emitter:  emitter,
		log:      log.With().Str("component", "delivery").Logger(),
	}
}

// Deliver makes one best-effort push of msg to its receiver. An offline
// receiver or a failed push is logged and counted, never reported: the
// message stays retrievable through history.
func (r *DeliveryRouter) Deliver(_ context.Context, msg *models.Message) {
	channelID, ok := r.registry.Lookup(msg.ReceiverID)
	if !ok {
		metrics.Deliveries.WithLabelValues("offline").Inc()
		r.log.Debug().Str("message_id", msg.ID).Str("receiver_id", msg.ReceiverID).Msg("receiver offline")
		return
	}

	if !r.emitter.Emit(channelID, EventNewMessage, msg) {
		metrics.Deliveries.WithLabelValues("dropped").Inc()
		r.log.Debug().Str("message_id", msg.ID).Str("channel_id", channelID).Msg("push dropped")
		return
	}
	metrics.Deliveries.WithLabelValues("pushed").Inc()
}
