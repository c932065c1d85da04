package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"direct-chat/models"
)

func TestDeliveryRouter_PushesToReceiverChannel(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Register("2", "ch-2")
	registry.Register("1", "ch-1")
	emitter := &fakeEmitter{}
	router := NewDeliveryRouter(registry, emitter, testLogger)

	msg := &models.Message{ID: "m1", SenderID: "1", ReceiverID: "2", Text: "hi"}
	router.Deliver(context.Background(), msg)

	events := emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ch-2", events[0].channelID)
	assert.Equal(t, EventNewMessage, events[0].event)
	assert.Equal(t, msg, events[0].payload)
}

func TestDeliveryRouter_OfflineReceiverIsSilent(t *testing.T) {
	emitter := &fakeEmitter{}
	router := NewDeliveryRouter(NewConnectionRegistry(), emitter, testLogger)

	assert.NotPanics(t, func() {
		router.Deliver(context.Background(), &models.Message{ID: "m1", SenderID: "1", ReceiverID: "2", Text: "hi"})
	})
	assert.Empty(t, emitter.Events())
}

func TestDeliveryRouter_FailedPushIsSwallowed(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Register("2", "ch-2")
	router := NewDeliveryRouter(registry, &fakeEmitter{fail: true}, testLogger)

	assert.NotPanics(t, func() {
		router.Deliver(context.Background(), &models.Message{ID: "m1", SenderID: "1", ReceiverID: "2", Text: "hi"})
	})
}
