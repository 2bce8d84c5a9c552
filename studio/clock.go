package studio

import (
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Task is a scheduled callback that can be cancelled before it fires.
type Task interface {
	// Stop cancels the task. It reports false if the task already ran or
	// was already stopped.
	Stop() bool
}

// Scheduler runs callbacks after a delay. Callers never wait on the
// callback; they return to the event loop immediately.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// ClockScheduler schedules callbacks on a clockwork clock.
type ClockScheduler struct {
	Clock clockwork.Clock
}

// AfterFunc implements Scheduler.
func (s ClockScheduler) AfterFunc(d time.Duration, f func()) Task {
	return s.Clock.AfterFunc(d, f)
}

// SystemScheduler schedules on the wall clock.
func SystemScheduler() Scheduler {
	return ClockScheduler{Clock: clockwork.NewRealClock()}
}

// Serialized wraps s so that every callback runs while holding l. Event
// handlers that hold the same lock therefore never interleave with timer
// callbacks.
func Serialized(s Scheduler, l sync.Locker) Scheduler {
	return &serialized{inner: s, lock: l}
}

type serialized struct {
	inner Scheduler
	lock  sync.Locker
}

func (s *serialized) AfterFunc(d time.Duration, f func()) Task {
	return s.inner.AfterFunc(d, func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		f()
	})
}

// FakeScheduler schedules on a clockwork.FakeClock. Nothing fires until
// Advance or Drain moves the clock past a task's deadline, and callbacks
// then run on the caller's goroutine, earliest deadline first.
type FakeScheduler struct {
	clock *clockwork.FakeClock
	fired chan *fakeTask

	mu   sync.Mutex
	seq  int
	live []*fakeTask
}

type fakeTask struct {
	sched *FakeScheduler
	timer clockwork.Timer
	at    time.Time
	seq   int
	f     func()

	stopped bool
	done    bool
}

// NewFakeScheduler returns a scheduler whose clock starts at the Unix
// epoch.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{
		clock: clockwork.NewFakeClockAt(time.Unix(0, 0).UTC()),
		fired: make(chan *fakeTask),
	}
}

// Clock returns the underlying fake clock.
func (s *FakeScheduler) Clock() *clockwork.FakeClock {
	return s.clock
}

// Now returns the fake clock's current time.
func (s *FakeScheduler) Now() time.Time {
	return s.clock.Now()
}

// AfterFunc implements Scheduler.
func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) Task {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	s.seq++
	t := &fakeTask{sched: s, at: s.clock.Now().Add(d), seq: s.seq, f: f}
	s.live = append(s.live, t)
	s.mu.Unlock()

	// clockwork runs AfterFunc callbacks on their own goroutine; hand the
	// task back to whoever is advancing the clock instead.
	t.timer = s.clock.AfterFunc(d, func() { s.fired <- t })
	return t
}

func (t *fakeTask) Stop() bool {
	s := t.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.stopped || t.done {
		return false
	}
	t.stopped = true
	// An expired timer is already on its way to fired; step drops it.
	if t.timer.Stop() {
		s.live = slices.DeleteFunc(s.live, func(o *fakeTask) bool { return o == t })
	}
	return true
}

// Pending returns the number of tasks that have neither fired nor been
// stopped.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.live {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, running due callbacks in deadline
// order. Tasks scheduled by a callback run in the same call if they fall
// due before the new time. Negative durations are treated as zero.
func (s *FakeScheduler) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	target := s.clock.Now().Add(d)
	for s.step(target) {
	}
	if now := s.clock.Now(); target.After(now) {
		s.clock.Advance(target.Sub(now))
	}
}

// Drain runs every pending callback, moving the clock as far as needed.
func (s *FakeScheduler) Drain() {
	for s.step(time.Time{}) {
	}
}

// step fires the batch of tasks sharing the earliest deadline, provided it
// is not after limit. A zero limit matches any deadline.
func (s *FakeScheduler) step(limit time.Time) bool {
	s.mu.Lock()
	if len(s.live) == 0 {
		s.mu.Unlock()
		return false
	}
	next := s.live[0].at
	for _, t := range s.live[1:] {
		if t.at.Before(next) {
			next = t.at
		}
	}
	if !limit.IsZero() && next.After(limit) {
		s.mu.Unlock()
		return false
	}
	var due []*fakeTask
	s.live = slices.DeleteFunc(s.live, func(t *fakeTask) bool {
		if t.at.After(next) {
			return false
		}
		due = append(due, t)
		return true
	})
	s.mu.Unlock()

	if now := s.clock.Now(); next.After(now) {
		s.clock.Advance(next.Sub(now))
	}
	for range due {
		<-s.fired
	}

	// due keeps scheduling order.
	for _, t := range due {
		s.mu.Lock()
		run := !t.stopped
		t.done = true
		s.mu.Unlock()
		if run {
			t.f()
		}
	}
	return true
}
