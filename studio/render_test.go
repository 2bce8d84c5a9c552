package studio

import (
	"errors"
	"image/color"
	"sync"
	"testing"
	"time"
)

func TestRenderPassesFixedColorsAndLevel(t *testing.T) {
	enc := &fakeEncoder{mode: KindImage}
	r := NewRenderer(&MemContainer{}, enc, NewFakeScheduler(), 0, nil)

	if err := r.Render(Request{Text: "https://example.com", Size: 256}); err != nil {
		t.Fatalf("render: %v", err)
	}
	got := enc.calls[0]
	if got.Foreground != color.Black || got.Background != color.White {
		t.Fatalf("colors = %v on %v", got.Foreground, got.Background)
	}
	if got.Level != LevelHighest {
		t.Fatalf("level = %v", got.Level)
	}
}

func TestRenderAnimatesAfterDelay(t *testing.T) {
	for _, kind := range []ElementKind{KindImage, KindSurface} {
		sched := NewFakeScheduler()
		c := &MemContainer{}
		r := NewRenderer(c, &fakeEncoder{mode: kind}, sched, 0, nil)

		if err := r.Render(Request{Text: "x", Size: 128}); err != nil {
			t.Fatalf("%s: render: %v", kind, err)
		}
		el := c.Children()[0]
		sched.Advance(DefaultAnimationDelay - time.Millisecond)
		if el.Animation() != "" {
			t.Fatalf("%s: animated early", kind)
		}
		sched.Advance(time.Millisecond)
		if el.Animation() != EntranceAnimation {
			t.Fatalf("%s: animation = %q", kind, el.Animation())
		}
	}
}

func TestRenderWithoutArtifactSkipsAnimation(t *testing.T) {
	sched := NewFakeScheduler()
	c := &MemContainer{}
	r := NewRenderer(c, &fakeEncoder{}, sched, 0, nil)

	if err := r.Render(Request{Text: "x", Size: 128}); err != nil {
		t.Fatalf("render: %v", err)
	}
	sched.Advance(time.Second)
	if len(c.Children()) != 0 {
		t.Fatalf("unexpected children")
	}
}

func TestRerenderCancelsPendingAnimation(t *testing.T) {
	sched := NewFakeScheduler()
	c := &MemContainer{}
	r := NewRenderer(c, &fakeEncoder{mode: KindImage}, sched, 0, nil)

	r.Render(Request{Text: "a", Size: 128})
	old := c.Children()[0]
	sched.Advance(50 * time.Millisecond)
	r.Render(Request{Text: "b", Size: 128})
	if sched.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", sched.Pending())
	}
	sched.Advance(DefaultAnimationDelay)
	if old.Animation() != "" {
		t.Fatalf("discarded artifact was animated")
	}
	if c.Children()[0].Animation() != EntranceAnimation {
		t.Fatalf("new artifact not animated")
	}
}

func TestRenderErrorClearsContainer(t *testing.T) {
	c := &MemContainer{}
	c.Append(&Image{Src: "old"})
	sched := NewFakeScheduler()
	r := NewRenderer(c, &fakeEncoder{err: errors.New("boom")}, sched, 0, nil)

	if err := r.Render(Request{Text: "x", Size: 128}); err == nil {
		t.Fatalf("expected error")
	}
	if len(c.Children()) != 0 {
		t.Fatalf("old artifact survived failed render")
	}
	if sched.Pending() != 0 {
		t.Fatalf("animation scheduled after failure")
	}
}

// lateScheduler hands out tasks that can never be stopped, as when a wall
// clock timer has already fired and its callback waits for the session
// lock.
type lateScheduler struct {
	callbacks []func()
}

type lateTask struct{}

func (lateTask) Stop() bool { return false }

func (s *lateScheduler) AfterFunc(d time.Duration, f func()) Task {
	s.callbacks = append(s.callbacks, f)
	return lateTask{}
}

func TestRerenderIgnoresAnimationThatMissedCancel(t *testing.T) {
	var mu sync.Mutex
	late := &lateScheduler{}
	c := &MemContainer{}
	r := NewRenderer(c, &fakeEncoder{mode: KindImage}, Serialized(late, &mu), 0, nil)

	r.Render(Request{Text: "a", Size: 128})
	r.Render(Request{Text: "b", Size: 128})
	if len(late.callbacks) != 2 {
		t.Fatalf("callbacks = %d, want 2", len(late.callbacks))
	}

	late.callbacks[0]()
	if got := c.Children()[0].Animation(); got != "" {
		t.Fatalf("new artifact animated by the previous render's timer: %q", got)
	}
	late.callbacks[1]()
	if got := c.Children()[0].Animation(); got != EntranceAnimation {
		t.Fatalf("animation = %q", got)
	}
}
