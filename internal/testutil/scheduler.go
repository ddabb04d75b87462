// Package testutil holds deterministic stand-ins shared by package tests.
package testutil

import (
	"slices"
	"sync"
	"time"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/worker"
)

// ManualScheduler only runs callbacks when Fire is called.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*ManualTask
}

type ManualTask struct {
	Interval time.Duration
	Repeat   bool

	s         *ManualScheduler
	fn        func()
	cancelled bool
}

func (t *ManualTask) Cancel() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.cancelled = true
}

func (t *ManualTask) Cancelled() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.cancelled
}

func (s *ManualScheduler) Every(interval time.Duration, fn func()) worker.Task {
	return s.add(interval, fn, true)
}

func (s *ManualScheduler) After(delay time.Duration, fn func()) worker.Task {
	return s.add(delay, fn, false)
}

func (s *ManualScheduler) add(d time.Duration, fn func(), repeat bool) *ManualTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &ManualTask{Interval: d, Repeat: repeat, s: s, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// Fire runs every live task once and returns how many ran. One-shot
// tasks are dropped after running.
func (s *ManualScheduler) Fire() int {
	s.mu.Lock()
	var due []*ManualTask
	for _, t := range s.tasks {
		if !t.cancelled {
			due = append(due, t)
		}
	}
	s.tasks = slices.DeleteFunc(s.tasks, func(t *ManualTask) bool {
		return t.cancelled || !t.Repeat
	})
	s.mu.Unlock()

	ran := 0
	for _, t := range due {
		if t.Cancelled() {
			continue
		}
		t.fn()
		ran++
	}
	return ran
}

// FireN calls Fire n times.
func (s *ManualScheduler) FireN(n int) {
	for i := 0; i < n; i++ {
		s.Fire()
	}
}

// Live counts tasks that are neither cancelled nor spent.
func (s *ManualScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}
