package studio

import (
	"time"
)

// NotificationKind selects the styling of a notification.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Phase is where a notification is in its on-screen lifecycle.
type Phase string

const (
	PhaseAbsent     Phase = "absent"
	PhaseSlidingIn  Phase = "sliding-in"
	PhaseVisible    Phase = "visible"
	PhaseSlidingOut Phase = "sliding-out"
)

// Notification is a transient on-screen message. Seq is unique per Show,
// so an identical message shown twice is still a new notification.
type Notification struct {
	Seq        uint64           `json:"seq"`
	Message    string           `json:"message"`
	Kind       NotificationKind `json:"kind"`
	Phase      Phase            `json:"phase"`
	Background string           `json:"background"`
	Icon       string           `json:"icon"`

	tasks []Task
}

// Slot holds at most one mounted notification.
type Slot interface {
	Mount(n *Notification)
	Unmount(n *Notification)
	Current() *Notification
}

// MemSlot is a Slot held in memory.
type MemSlot struct {
	current *Notification
}

func (s *MemSlot) Mount(n *Notification) { s.current = n }

func (s *MemSlot) Unmount(n *Notification) {
	if s.current == n {
		s.current = nil
	}
}

func (s *MemSlot) Current() *Notification { return s.current }

const (
	DefaultSlideDuration   = 300 * time.Millisecond
	DefaultVisibleDuration = 3 * time.Second
)

// Presenter shows notifications one at a time and dismisses them on a
// timer.
type Presenter struct {
	slot    Slot
	sched   Scheduler
	slide   time.Duration
	visible time.Duration
	seq     uint64
}

// NewPresenter returns a Presenter. Zero durations fall back to the
// defaults.
func NewPresenter(slot Slot, sched Scheduler, slide, visible time.Duration) *Presenter {
	if slide <= 0 {
		slide = DefaultSlideDuration
	}
	if visible <= 0 {
		visible = DefaultVisibleDuration
	}
	return &Presenter{slot: slot, sched: sched, slide: slide, visible: visible}
}

// Show replaces whatever notification is mounted with a new one and
// schedules its dismissal.
func (p *Presenter) Show(message string, kind NotificationKind) *Notification {
	if old := p.slot.Current(); old != nil {
		for _, t := range old.tasks {
			t.Stop()
		}
		old.Phase = PhaseAbsent
		p.slot.Unmount(old)
	}

	p.seq++
	n := &Notification{
		Seq:     p.seq,
		Message: message,
		Kind:    kind,
		Phase:   PhaseSlidingIn,
	}
	if kind == NotifySuccess {
		n.Background, n.Icon = "#10b981", "fa-check-circle"
	} else {
		n.Background, n.Icon = "#ef4444", "fa-exclamation-circle"
	}
	p.slot.Mount(n)

	n.tasks = []Task{
		p.sched.AfterFunc(p.slide, func() {
			if p.mounted(n) && n.Phase == PhaseSlidingIn {
				n.Phase = PhaseVisible
			}
		}),
		p.sched.AfterFunc(p.visible, func() {
			if !p.mounted(n) {
				return
			}
			n.Phase = PhaseSlidingOut
			n.tasks = append(n.tasks, p.sched.AfterFunc(p.slide, func() {
				if p.mounted(n) {
					n.Phase = PhaseAbsent
					p.slot.Unmount(n)
				}
			}))
		}),
	}
	return n
}

func (p *Presenter) mounted(n *Notification) bool {
	return p.slot.Current() == n
}
