package client

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"direct-chat/models"
)

var (
	// ErrNoConversation is returned by SendMessage when nothing is selected.
	ErrNoConversation = errors.New("no conversation selected")
	// ErrEmptyMessage is returned by SendMessage when there is nothing to send.
	ErrEmptyMessage = errors.New("message must have text or an image")
)

// State is the lifecycle of the active conversation.
type State int

const (
	Idle State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the chat state.
type Snapshot struct {
	State        State
	SelectedUser string
	Messages     []models.Message
	Users        []models.User
	UsersLoading bool
	OnlineUsers  []string
}

// IsMessagesLoading reports whether a history fetch is in flight.
func (s Snapshot) IsMessagesLoading() bool {
	return s.State == Loading
}

// Notifier surfaces transient failures to the user.
type Notifier func(err error)

// Option configures a ChatState.
type Option func(*ChatState)

// WithNotifier sets the failure callback.
func WithNotifier(fn Notifier) Option {
	return func(s *ChatState) { s.notify = fn }
}

// ChatState holds the active conversation and keeps its message list in
// step with REST history and pushed messages.
//
// Each selection bumps a generation counter; a history response is only
// applied if the generation it was requested under is still current.
// Pushes that arrive while history is loading are buffered and merged
// into the response by message id.
type ChatState struct {
	api    API
	notify Notifier

	mu         sync.Mutex
	channel    Channel
	offMessage func()
	offOnline  func()

	gen      uint64
	state    State
	selected string
	messages []models.Message
	pending  []models.Message

	users        []models.User
	usersLoading bool
	online       []string

	watchers    map[uint64]func(Snapshot)
	nextWatcher uint64
}

// NewChatState creates an idle chat state. channel may be nil until a
// connection is available; see SetChannel.
func NewChatState(api API, channel Channel, opts ...Option) *ChatState {
	s := &ChatState{
		api:      api,
		channel:  channel,
		watchers: make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *ChatState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ChatState) snapshotLocked() Snapshot {
	return Snapshot{
		State:        s.state,
		SelectedUser: s.selected,
		Messages:     append([]models.Message(nil), s.messages...),
		Users:        append([]models.User(nil), s.users...),
		UsersLoading: s.usersLoading,
		OnlineUsers:  append([]string(nil), s.online...),
	}
}

// Watch calls fn with a fresh snapshot after every change. The returned
// function stops the notifications.
func (s *ChatState) Watch(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	s.nextWatcher++
	id := s.nextWatcher
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// update runs fn under the lock and, if it reports a change, notifies
// watchers after the lock is released.
func (s *ChatState) update(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	watchers := make([]func(Snapshot), 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w(snap)
	}
}

func (s *ChatState) report(err error) {
	if s.notify != nil {
		s.notify(err)
	}
}

// SelectConversation makes userID the active conversation and replaces
// the message list with a fresh history fetch. An empty userID returns
// to Idle without fetching. If another selection happens before the
// fetch returns, the response is discarded and nil is returned.
func (s *ChatState) SelectConversation(ctx context.Context, userID string) error {
	var gen uint64
	s.update(func() bool {
		s.gen++
		gen = s.gen
		s.selected = userID
		s.messages = nil
		s.pending = nil
		if userID == "" {
			s.state = Idle
		} else {
			s.state = Loading
		}
		return true
	})
	if userID == "" {
		return nil
	}

	history, err := s.api.History(ctx, userID)

	stale := false
	s.update(func() bool {
		if s.gen != gen {
			stale = true
			return false
		}
		if err != nil {
			history = nil
		}
		s.messages = mergeMessages(history, s.pending)
		s.pending = nil
		s.state = Ready
		return true
	})
	if stale {
		return nil
	}
	if err != nil {
		s.report(err)
		return err
	}
	return nil
}

// Subscribe attaches the newMessage listener to the channel. Repeated
// calls without Unsubscribe keep the single existing listener.
func (s *ChatState) Subscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offMessage != nil || s.channel == nil {
		return
	}
	s.offMessage = s.channel.On(EventNewMessage, s.handleNewMessage)
}

// Unsubscribe detaches the newMessage listener. It is a no-op when not
// subscribed.
func (s *ChatState) Unsubscribe() {
	s.mu.Lock()
	off := s.offMessage
	s.offMessage = nil
	s.mu.Unlock()
	if off != nil {
		off()
	}
}

// Subscribed reports whether the newMessage listener is attached.
func (s *ChatState) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offMessage != nil
}

// TrackPresence attaches the onlineUsers listener. It is idempotent.
func (s *ChatState) TrackPresence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offOnline != nil || s.channel == nil {
		return
	}
	s.offOnline = s.channel.On(EventOnlineUsers, s.handleOnlineUsers)
}

// SetChannel moves the listeners to a new channel, e.g. after a
// reconnect. Listeners on the old channel are removed first.
func (s *ChatState) SetChannel(channel Channel) {
	s.mu.Lock()
	offMessage, offOnline := s.offMessage, s.offOnline
	s.offMessage, s.offOnline = nil, nil
	s.channel = channel
	s.mu.Unlock()

	if offMessage != nil {
		offMessage()
	}
	if offOnline != nil {
		offOnline()
	}
	if channel == nil {
		return
	}
	if offMessage != nil {
		s.Subscribe()
	}
	if offOnline != nil {
		s.TrackPresence()
	}
}

func (s *ChatState) handleNewMessage(data json.RawMessage) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.ID == "" {
		return
	}

	s.update(func() bool {
		if s.selected == "" || msg.SenderID != s.selected {
			return false
		}
		switch s.state {
		case Loading:
			if !containsMessage(s.pending, msg.ID) {
				s.pending = append(s.pending, msg)
			}
			return false
		case Ready:
			if containsMessage(s.messages, msg.ID) {
				return false
			}
			s.messages = append(s.messages, msg)
			return true
		}
		return false
	})
}

func (s *ChatState) handleOnlineUsers(data json.RawMessage) {
	var users []string
	if err := json.Unmarshal(data, &users); err != nil {
		return
	}
	s.update(func() bool {
		s.online = users
		return true
	})
}

// SendMessage sends to the active conversation and appends the stored
// message returned by the server. Nothing is appended on failure.
func (s *ChatState) SendMessage(ctx context.Context, text, image string) (*models.Message, error) {
	s.mu.Lock()
	receiver := s.selected
	s.mu.Unlock()

	if receiver == "" {
		return nil, ErrNoConversation
	}
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return nil, ErrEmptyMessage
	}

	msg, err := s.api.Send(ctx, receiver, SendRequest{Text: text, Image: image})
	if err != nil {
		s.report(err)
		return nil, err
	}

	s.update(func() bool {
		if s.selected != receiver {
			return false
		}
		switch s.state {
		case Loading:
			if !containsMessage(s.pending, msg.ID) {
				s.pending = append(s.pending, *msg)
			}
			return false
		case Ready:
			if containsMessage(s.messages, msg.ID) {
				return false
			}
			s.messages = append(s.messages, *msg)
			return true
		}
		return false
	})
	return msg, nil
}

// LoadUsers fetches the user list for the sidebar.
func (s *ChatState) LoadUsers(ctx context.Context) error {
	s.update(func() bool {
		s.usersLoading = true
		return true
	})

	users, err := s.api.Users(ctx)

	s.update(func() bool {
		if err == nil {
			s.users = users
		}
		s.usersLoading = false
		return true
	})
	if err != nil {
		s.report(err)
		return err
	}
	return nil
}

func containsMessage(messages []models.Message, id string) bool {
	for i := range messages {
		if messages[i].ID == id {
			return true
		}
	}
	return false
}

// mergeMessages returns history followed by any extra messages it does
// not already contain, in creation order.
func mergeMessages(history, extra []models.Message) []models.Message {
	merged := make([]models.Message, 0, len(history)+len(extra))
	merged = append(merged, history...)
	for _, m := range extra {
		if !containsMessage(merged, m.ID) {
			merged = append(merged, m)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.Before(merged[j].CreatedAt)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
