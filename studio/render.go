package studio

import (
	"fmt"
	"image/color"
	"log/slog"
	"time"
)

// Level is the QR error correction tier.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelQuartile
	LevelHighest
)

// Options is what an Encoder is asked to draw.
type Options struct {
	Content    string
	Width      int
	Height     int
	Foreground color.Color
	Background color.Color
	Level      Level
}

// Encoder draws one QR symbol into a container, as either an *Image or a
// *Surface element.
type Encoder interface {
	Encode(c Container, opts Options) error
}

const (
	DefaultAnimationDelay = 100 * time.Millisecond
	EntranceAnimation     = "scaleIn 0.4s ease-out"
)

// Renderer replaces the container's artifact with a freshly encoded one.
type Renderer struct {
	container Container
	encoder   Encoder
	sched     Scheduler
	delay     time.Duration
	log       *slog.Logger

	// gen counts renders. An animation callback that already left the
	// scheduler when Stop was called checks it and gives up.
	gen         uint64
	pendingAnim Task
}

// NewRenderer returns a Renderer drawing into container.
func NewRenderer(container Container, encoder Encoder, sched Scheduler, delay time.Duration, log *slog.Logger) *Renderer {
	if delay <= 0 {
		delay = DefaultAnimationDelay
	}
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		container: container,
		encoder:   encoder,
		sched:     sched,
		delay:     delay,
		log:       log,
	}
}

// Render clears the container and encodes req into it at the highest
// error correction level. The entrance animation is applied later, on
// the scheduler.
func (r *Renderer) Render(req Request) error {
	r.gen++
	if r.pendingAnim != nil {
		r.pendingAnim.Stop()
		r.pendingAnim = nil
	}
	r.container.Clear()

	err := r.encoder.Encode(r.container, Options{
		Content:    req.Text,
		Width:      req.Size,
		Height:     req.Size,
		Foreground: color.Black,
		Background: color.White,
		Level:      LevelHighest,
	})
	if err != nil {
		r.container.Clear()
		return fmt.Errorf("encode qr code: %w", err)
	}
	r.log.Debug("qr code rendered", "size", req.Size, "length", len(req.Text))

	gen := r.gen
	r.pendingAnim = r.sched.AfterFunc(r.delay, func() {
		if gen != r.gen {
			return
		}
		r.animate()
	})
	return nil
}

func (r *Renderer) animate() {
	var el Element
	if img := firstImage(r.container); img != nil {
		el = img
	} else if s := firstSurface(r.container); s != nil {
		el = s
	}
	if el == nil {
		// Nothing to animate; not an error.
		return
	}
	el.SetAnimation(EntranceAnimation)
}
