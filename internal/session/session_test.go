package session

import (
	"errors"
	"sync"
	"testing"
)

func TestStoreHappyPath(t *testing.T) {
	s := NewStore()
	const op = int64(7000)

	if got := s.Stage(op); got != StageIdle {
		t.Fatalf("Stage() = %v, want idle", got)
	}
	s.Begin(op)
	if got := s.Stage(op); got != StageAwaitTarget {
		t.Fatalf("Stage() after Begin = %v, want awaiting_target_id", got)
	}

	target, err := s.SubmitTarget(op, " 42 ")
	if err != nil {
		t.Fatalf("SubmitTarget() error = %v", err)
	}
	if target != 42 {
		t.Fatalf("SubmitTarget() = %d, want 42", target)
	}
	if got := s.Stage(op); got != StageAwaitBody {
		t.Fatalf("Stage() after target = %v, want awaiting_body", got)
	}

	taken, err := s.TakeTarget(op)
	if err != nil {
		t.Fatalf("TakeTarget() error = %v", err)
	}
	if taken != 42 {
		t.Fatalf("TakeTarget() = %d, want 42", taken)
	}
	if got := s.Stage(op); got != StageIdle {
		t.Fatalf("Stage() after body = %v, want idle", got)
	}
}

func TestSubmitTargetInvalidInputKeepsStage(t *testing.T) {
	s := NewStore()
	const op = int64(1)
	s.Begin(op)

	for _, input := range []string{"abc", "", "12x", "-5", "0"} {
		if _, err := s.SubmitTarget(op, input); !errors.Is(err, ErrInvalidTarget) {
			t.Fatalf("SubmitTarget(%q) error = %v, want ErrInvalidTarget", input, err)
		}
		if got := s.Stage(op); got != StageAwaitTarget {
			t.Fatalf("Stage() after invalid %q = %v, want awaiting_target_id", input, got)
		}
	}

	// A retry with a valid identity still succeeds.
	if _, err := s.SubmitTarget(op, "42"); err != nil {
		t.Fatalf("SubmitTarget(42) after retries error = %v", err)
	}
}

func TestTakeTargetEmptyPendingTargetResets(t *testing.T) {
	s := NewStore()
	const op = int64(3)
	// Force the broken state the workflow must survive: awaiting_body with
	// no stored target.
	sh := s.shardFor(op)
	sh.mu.Lock()
	sh.sessions[op] = &state{stage: StageAwaitBody}
	sh.mu.Unlock()

	if _, err := s.TakeTarget(op); !errors.Is(err, ErrNoPendingTarget) {
		t.Fatalf("TakeTarget() error = %v, want ErrNoPendingTarget", err)
	}
	if got := s.Stage(op); got != StageIdle {
		t.Fatalf("Stage() after broken session = %v, want idle", got)
	}
}

func TestTakeTargetIdleSession(t *testing.T) {
	s := NewStore()
	if _, err := s.TakeTarget(99); !errors.Is(err, ErrNoPendingTarget) {
		t.Fatalf("TakeTarget() on idle error = %v, want ErrNoPendingTarget", err)
	}
}

func TestBeginDiscardsStaleTarget(t *testing.T) {
	s := NewStore()
	const op = int64(8)
	s.Begin(op)
	if _, err := s.SubmitTarget(op, "10"); err != nil {
		t.Fatalf("SubmitTarget() error = %v", err)
	}
	s.Begin(op)
	if got := s.Stage(op); got != StageAwaitTarget {
		t.Fatalf("Stage() after second Begin = %v, want awaiting_target_id", got)
	}
	if _, err := s.TakeTarget(op); !errors.Is(err, ErrNoPendingTarget) {
		t.Fatalf("TakeTarget() after restart error = %v, want ErrNoPendingTarget", err)
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	s := NewStore()
	const op = int64(12)
	s.Begin(op)
	s.Reset(op)
	if got := s.Stage(op); got != StageIdle {
		t.Fatalf("Stage() after Reset = %v, want idle", got)
	}
}

func TestSessionsAreIndependentPerOperator(t *testing.T) {
	s := NewStore()
	s.Begin(100)
	if got := s.Stage(200); got != StageIdle {
		t.Fatalf("Stage(200) = %v, want idle while 100 composes", got)
	}
	if _, err := s.SubmitTarget(100, "55"); err != nil {
		t.Fatalf("SubmitTarget() error = %v", err)
	}
	if got := s.Stage(200); got != StageIdle {
		t.Fatalf("Stage(200) = %v, want idle", got)
	}
}

func TestConcurrentOperators(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(op int64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Begin(op)
				if _, err := s.SubmitTarget(op, "42"); err != nil {
					t.Errorf("SubmitTarget(op=%d) error = %v", op, err)
					return
				}
				target, err := s.TakeTarget(op)
				if err != nil {
					t.Errorf("TakeTarget(op=%d) error = %v", op, err)
					return
				}
				if target != 42 {
					t.Errorf("TakeTarget(op=%d) = %d, want 42", op, target)
					return
				}
			}
		}(int64(i + 1))
	}
	wg.Wait()
}
