// Package conversation tracks which end-user conversations are open.
// Absence of a record is the closed state; nothing is persisted.
package conversation

import "sync"

const shardCount = 16

type shard struct {
	mu   sync.Mutex
	open map[int64]struct{}
}

// Store is a sharded set of open conversations keyed by end-user ID.
// Operations on the same key are atomic; operations on different keys do not
// contend unless they hash to the same shard.
type Store struct {
	shards [shardCount]shard
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].open = make(map[int64]struct{})
	}
	return s
}

func (s *Store) shardFor(userID int64) *shard {
	return &s.shards[uint64(userID)%shardCount]
}

// MarkOpen records the conversation as open. Idempotent.
func (s *Store) MarkOpen(userID int64) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	sh.open[userID] = struct{}{}
	sh.mu.Unlock()
}

// Close removes the conversation record. Closing an unknown or already
// closed conversation is a no-op.
func (s *Store) Close(userID int64) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	delete(sh.open, userID)
	sh.mu.Unlock()
}

func (s *Store) IsOpen(userID int64) bool {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	_, ok := sh.open[userID]
	sh.mu.Unlock()
	return ok
}
