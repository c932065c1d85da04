package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"direct-chat/models"
)

type fakeMedia struct {
	url   string
	err   error
	calls int
}

func (f *fakeMedia) Upload(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type serviceFixture struct {
	svc      *MessageService
	store    *MessageStore
	registry *ConnectionRegistry
	emitter  *fakeEmitter
	media    *fakeMedia
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		store:    NewMessageStore(setupTestDB(t)),
		registry: NewConnectionRegistry(),
		emitter:  &fakeEmitter{},
		media:    &fakeMedia{url: "https://cdn.example/img.png"},
	}
	router := NewDeliveryRouter(f.registry, f.emitter, testLogger)
	f.svc = NewMessageService(f.store, f.media, router, testLogger)
	return f
}

func TestMessageService_SendThenHistory(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	inputs := []SendInput{
		{SenderID: "1", ReceiverID: "2", Text: "hello"},
		{SenderID: "2", ReceiverID: "1", Text: "  padded  "},
		{SenderID: "1", ReceiverID: "2", Image: "data:image/png;base64,AAAA"},
	}
	for _, in := range inputs {
		sent, err := f.svc.Send(ctx, in)
		require.NoError(t, err)

		history, err := f.svc.History(ctx, in.SenderID, in.ReceiverID)
		require.NoError(t, err)

		matches := 0
		for _, m := range history {
			if m.ID == sent.ID {
				matches++
				assert.Equal(t, sent.Text, m.Text)
				assert.Equal(t, sent.Image, m.Image)
				assert.Equal(t, in.SenderID, m.SenderID)
				assert.Equal(t, in.ReceiverID, m.ReceiverID)
			}
		}
		assert.Equal(t, 1, matches)
	}
}

func TestMessageService_ContentScenarios(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	textOnly, err := f.svc.Send(ctx, SendInput{SenderID: "1", ReceiverID: "2", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", textOnly.Text)
	assert.Empty(t, textOnly.Image)
	assert.Equal(t, 0, f.media.calls)

	imageOnly, err := f.svc.Send(ctx, SendInput{SenderID: "1", ReceiverID: "2", Text: "", Image: "data:image/png;base64,AAAA"})
	require.NoError(t, err)
	assert.Empty(t, imageOnly.Text)
	assert.Equal(t, "https://cdn.example/img.png", imageOnly.Image)
	assert.Equal(t, 1, f.media.calls)

	_, err = f.svc.Send(ctx, SendInput{SenderID: "1", ReceiverID: "2", Text: "   "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMessageService_PushesToOnlineReceiverOnly(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.registry.Register("2", "ch-2")
	f.registry.Register("1", "ch-1")

	sent, err := f.svc.Send(ctx, SendInput{SenderID: "1", ReceiverID: "2", Text: "hi"})
	require.NoError(t, err)

	events := f.emitter.Events()
	require.Len(t, events, 1, "the sender is never a push recipient")
	assert.Equal(t, "ch-2", events[0].channelID)
	assert.Equal(t, sent.ID, events[0].payload.(*models.Message).ID)
}

func TestMessageService_OfflineReceiverStillPersisted(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	sent, err := f.svc.Send(ctx, SendInput{SenderID: "y", ReceiverID: "x", Text: "are you there?"})
	require.NoError(t, err)
	assert.Empty(t, f.emitter.Events())

	history, err := f.svc.History(ctx, "x", "y")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)
}

func TestMessageService_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing sender", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Send(ctx, SendInput{ReceiverID: "2", Text: "hi"})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("media upload failure aborts before persistence", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registry.Register("2", "ch-2")
		f.media.err = errors.New("cloud down")

		_, err := f.svc.Send(ctx, SendInput{SenderID: "1", ReceiverID: "2", Text: "look", Image: "data:image/png;base64,AAAA"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMediaUpload)

		history, err := f.store.History(ctx, "1", "2")
		require.NoError(t, err)
		assert.Empty(t, history)
		assert.Empty(t, f.emitter.Events())
	})

	t.Run("malformed image is a validation error", func(t *testing.T) {
		for _, image := range []string{
			"data:text/plain;base64,aGk=",
			"not base64 !!",
			"data:image/png;base64,",
			"data:image/png,raw",
		} {
			f := newServiceFixture(t)
			_, err := f.svc.Send(ctx, SendInput{SenderID: "1", ReceiverID: "2", Image: image})
			assert.ErrorIs(t, err, ErrValidation, image)
			assert.NotErrorIs(t, err, ErrMediaUpload, image)
			assert.Equal(t, 0, f.media.calls, image)
		}
	})

	t.Run("empty message skips upload", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Send(ctx, SendInput{SenderID: "1", ReceiverID: "2"})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, 0, f.media.calls)
	})

	t.Run("storage failure does not deliver", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registry.Register("2", "ch-2")
		sqlDB, err := f.store.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		_, err = f.svc.Send(ctx, SendInput{SenderID: "1", ReceiverID: "2", Text: "hi"})
		assert.ErrorIs(t, err, ErrStorage)
		assert.Empty(t, f.emitter.Events())
	})

	t.Run("history needs a caller", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.History(ctx, "", "2")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}
