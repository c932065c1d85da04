package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event names pushed by the server.
const (
	EventNewMessage  = "newMessage"
	EventOnlineUsers = "onlineUsers"
)

// Listener receives the raw data of a pushed event.
type Listener func(data json.RawMessage)

// Channel is a process-wide push connection that listeners attach to.
// On returns a function that detaches the listener; calling it more
// than once is a no-op.
type Channel interface {
	On(event string, fn Listener) (off func())
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Socket is a Channel backed by a websocket connection.
type Socket struct {
	conn *websocket.Conn

	mu        sync.RWMutex
	listeners map[string]map[uint64]Listener
	nextID    uint64

	done chan struct{}
	err  error
}

// Dial connects to a push endpoint such as RESTClient.WebSocketURL and
// starts dispatching events.
func Dial(ctx context.Context, wsURL string) (*Socket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	s := &Socket{
		conn:      conn,
		listeners: make(map[string]map[uint64]Listener),
		done:      make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// On attaches fn to event.
func (s *Socket) On(event string, fn Listener) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.listeners[event] == nil {
		s.listeners[event] = make(map[uint64]Listener)
	}
	s.listeners[event][id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners[event], id)
			s.mu.Unlock()
		})
	}
}

// ListenerCount returns how many listeners are attached to event.
func (s *Socket) ListenerCount(event string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners[event])
}

// Done is closed when the connection ends.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the connection, once Done is closed.
func (s *Socket) Err() error {
	<-s.done
	return s.err
}

// Close ends the connection.
func (s *Socket) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *Socket) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.err = err
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			continue
		}

		s.mu.RLock()
		fns := make([]Listener, 0, len(s.listeners[f.Event]))
		for _, fn := range s.listeners[f.Event] {
			fns = append(fns, fn)
		}
		s.mu.RUnlock()

		for _, fn := range fns {
			fn(f.Data)
		}
	}
}
