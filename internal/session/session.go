// Package session holds the per-operator compose workflow state: a strict
// idle → awaiting-target → awaiting-body dialogue used by the /send command.
// Sessions live for the process lifetime only; a restart drops every
// operator back to idle.
package session

import (
	"errors"
	"strconv"
	"strings"
	"sync"
)

// Stage is the compose workflow position for one operator.
type Stage int

const (
	StageIdle Stage = iota
	StageAwaitTarget
	StageAwaitBody
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAwaitTarget:
		return "awaiting_target_id"
	case StageAwaitBody:
		return "awaiting_body"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidTarget reports that the operator's input did not parse as a
	// positive integer identity. The session stage is unchanged so the
	// operator can retry.
	ErrInvalidTarget = errors.New("target is not a valid identity")

	// ErrNoPendingTarget reports that a body arrived while no target was
	// stored. The session is reset to idle; the caller must not guess a
	// destination.
	ErrNoPendingTarget = errors.New("no pending target for compose body")
)

const shardCount = 16

type state struct {
	stage  Stage
	target int64
}

type shard struct {
	mu       sync.Mutex
	sessions map[int64]*state
}

// Store keeps one compose session per operator. All transitions are atomic
// per operator; operators on different shards never contend.
type Store struct {
	shards [shardCount]shard
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[int64]*state)
	}
	return s
}

func (s *Store) shardFor(operatorID int64) *shard {
	return &s.shards[uint64(operatorID)%shardCount]
}

// Stage reports the operator's current workflow stage. Operators with no
// session are idle.
func (s *Store) Stage(operatorID int64) Stage {
	sh := s.shardFor(operatorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.sessions[operatorID]
	if !ok {
		return StageIdle
	}
	return st.stage
}

// Begin moves the operator to awaiting-target, discarding any stale pending
// target from an interrupted run.
func (s *Store) Begin(operatorID int64) {
	sh := s.shardFor(operatorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.sessions[operatorID] = &state{stage: StageAwaitTarget}
}

// Reset returns the operator to idle with no pending target.
func (s *Store) Reset(operatorID int64) {
	sh := s.shardFor(operatorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, operatorID)
}

// SubmitTarget parses text as the pending target identity. On success the
// session advances to awaiting-body. On a parse failure the stage is left at
// awaiting-target and ErrInvalidTarget is returned so the operator can
// retry. Calling it outside awaiting-target is a no-op returning the zero
// identity.
func (s *Store) SubmitTarget(operatorID int64, text string) (int64, error) {
	sh := s.shardFor(operatorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.sessions[operatorID]
	if !ok || st.stage != StageAwaitTarget {
		return 0, nil
	}
	target, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || target <= 0 {
		return 0, ErrInvalidTarget
	}
	st.stage = StageAwaitBody
	st.target = target
	return target, nil
}

// TakeTarget atomically reads and clears the pending target, returning the
// session to idle. An empty pending target in awaiting-body is an internal
// invariant violation: ErrNoPendingTarget is returned and the session is
// still reset so the operator is never stuck.
func (s *Store) TakeTarget(operatorID int64) (int64, error) {
	sh := s.shardFor(operatorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.sessions[operatorID]
	if !ok || st.stage != StageAwaitBody {
		return 0, ErrNoPendingTarget
	}
	target := st.target
	delete(sh.sessions, operatorID)
	if target <= 0 {
		return 0, ErrNoPendingTarget
	}
	return target, nil
}
