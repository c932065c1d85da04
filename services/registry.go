package services

import (
	"hash/fnv"
	"sort"
	"sync"
)

const registryShards = 32

type registryShard struct {
	mu       sync.Mutex
	channels map[string]string // userID -> channelID
}

// ConnectionRegistry maps an online user to the one channel currently
// bound to them. Keys are striped across shards so that operations on
// different users rarely contend, while operations on the same user
// are serialized by that user's shard lock.
type ConnectionRegistry struct {
	shards [registryShards]*registryShard
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	r := &ConnectionRegistry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{channels: make(map[string]string)}
	}
	return r
}

func (r *ConnectionRegistry) shard(userID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%registryShards]
}

// Register binds userID to channelID, replacing any previous binding.
// The displaced channel id is returned, or "" when there was none.
func (r *ConnectionRegistry) Register(userID, channelID string) string {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.channels[userID]
	s.channels[userID] = channelID
	return prev
}

// Unregister removes the binding for userID. Missing users are a no-op.
func (r *ConnectionRegistry) Unregister(userID string) {
	s := r.shard(userID)
	s.mu.Lock()
	delete(s.channels, userID)
	s.mu.Unlock()
}

// Release removes the binding only if it still points at channelID.
// A socket that was superseded by a reconnect must not evict the newer
// binding when it finally closes.
func (r *ConnectionRegistry) Release(userID, channelID string) bool {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.channels[userID]; ok && current == channelID {
		delete(s.channels, userID)
		return true
	}
	return false
}

// Lookup returns the channel bound to userID.
func (r *ConnectionRegistry) Lookup(userID string) (string, bool) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[userID]
	return ch, ok
}

// Len returns the number of bound users.
func (r *ConnectionRegistry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		n += len(s.channels)
		s.mu.Unlock()
	}
	return n
}

// OnlineUsers returns the bound user ids, sorted. Shards are visited one
// at a time, so the result is a best-effort snapshot.
func (r *ConnectionRegistry) OnlineUsers() []string {
	users := make([]string, 0)
	for _, s := range r.shards {
		s.mu.Lock()
		for id := range s.channels {
			users = append(users, id)
		}
		s.mu.Unlock()
	}
	sort.Strings(users)
	return users
}
