// Package studio holds the QR generator page logic: input handling,
// rendering through an Encoder, download resolution and notifications.
// It is event driven and not safe for concurrent use; callers serialize
// events (see Serialized).
package studio

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// User-facing messages.
const (
	MsgEmptyText    = "Please enter text or URL to generate QR code"
	MsgGenerated    = "QR Code generated successfully!"
	MsgDownloading  = "Downloading QR Code..."
	MsgNoArtifact   = "Please generate a QR code first"
	MsgRenderFailed = "Could not generate QR code"
	MsgUnknownSize  = "Please pick one of the listed sizes"
	KeyEnter        = "Enter"
)

// Widgets are the page elements a Controller drives.
type Widgets struct {
	Text      TextField
	Link      DownloadLink
	Button    GenerateButton
	Container Container
	Slot      Slot
}

// Config tunes a Controller. Zero values select the defaults.
type Config struct {
	Sizes           []int
	DefaultSize     int
	AnimationDelay  time.Duration
	SlideDuration   time.Duration
	VisibleDuration time.Duration

	// OnRender is called after every accepted render.
	OnRender func(Request)
	Log      *slog.Logger
}

// Outcome reports what Submit did.
type Outcome struct {
	Request    Request
	Rendered   bool
	FocusInput bool
	Err        error
}

// DownloadEvent reports what Download did. Prevented means the caller
// must suppress the default download navigation.
type DownloadEvent struct {
	Target    Target
	Prevented bool
}

// Controller wires user events to rendering, downloading and
// notifications. One Controller backs one page.
type Controller struct {
	w         Widgets
	renderer  *Renderer
	presenter *Presenter
	validator *requestValidator
	onRender  func(Request)
	log       *slog.Logger

	size int
}

// NewController builds a Controller around the given widgets.
func NewController(w Widgets, enc Encoder, sched Scheduler, cfg Config) *Controller {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	rv := newRequestValidator(cfg.Sizes)

	size := cfg.DefaultSize
	if !rv.sizeAllowed(size) {
		size = rv.sizes[0]
	}

	return &Controller{
		w:         w,
		renderer:  NewRenderer(w.Container, enc, sched, cfg.AnimationDelay, log),
		presenter: NewPresenter(w.Slot, sched, cfg.SlideDuration, cfg.VisibleDuration),
		validator: rv,
		onRender:  cfg.OnRender,
		log:       log,
		size:      size,
	}
}

// Size returns the currently selected size.
func (c *Controller) Size() int { return c.size }

// Sizes returns the selectable presets.
func (c *Controller) Sizes() []int { return c.validator.sizes }

// Start runs the page-load hook.
func (c *Controller) Start() {
	c.w.Text.Focus()
}

// Submit validates rawText and, if it is non-empty after trimming,
// renders it at size and reports success.
func (c *Controller) Submit(rawText string, size int) Outcome {
	req, err := c.validator.build(rawText, size)
	switch {
	case errors.Is(err, ErrEmptyText):
		c.presenter.Show(MsgEmptyText, NotifyError)
		return Outcome{FocusInput: true, Err: err}
	case errors.Is(err, ErrUnsupportedSize):
		c.presenter.Show(MsgUnknownSize, NotifyError)
		return Outcome{Err: err}
	case err != nil:
		return Outcome{Err: err}
	}

	if err := c.render(req); err != nil {
		return Outcome{Request: req, Err: err}
	}
	c.presenter.Show(MsgGenerated, NotifySuccess)
	return Outcome{Request: req, Rendered: true}
}

// OnGenerateClick submits the text field at the selected size.
func (c *Controller) OnGenerateClick() Outcome {
	out := c.Submit(c.w.Text.Value(), c.size)
	if out.FocusInput {
		c.w.Text.Focus()
	}
	return out
}

// OnKeyPress handles a key typed into the text field. It reports whether
// the key's default action should be prevented.
func (c *Controller) OnKeyPress(key string) bool {
	if key != KeyEnter {
		return false
	}
	c.OnGenerateClick()
	return true
}

// OnSizeChange stores the new size and re-renders if there is text.
func (c *Controller) OnSizeChange(size int) error {
	if !c.validator.sizeAllowed(size) {
		return fmt.Errorf("%w: %d", ErrUnsupportedSize, size)
	}
	c.size = size

	text := strings.TrimSpace(c.w.Text.Value())
	if text == "" {
		return nil
	}
	return c.render(Request{Text: text, Size: size})
}

// OnTextEdited toggles the generate button.
func (c *Controller) OnTextEdited(text string) {
	if c.w.Button != nil {
		c.w.Button.SetEnabled(text != "")
	}
}

// Download binds the download link to the current artifact, or cancels
// the download when there is none.
func (c *Controller) Download() DownloadEvent {
	target, ok := ResolveDownloadTarget(c.w.Container)
	if !ok {
		c.w.Link.RemoveHref()
		c.presenter.Show(MsgNoArtifact, NotifyError)
		return DownloadEvent{Prevented: true}
	}
	c.w.Link.SetHref(target.Href)
	c.presenter.Show(MsgDownloading, NotifySuccess)
	return DownloadEvent{Target: target}
}

func (c *Controller) render(req Request) error {
	if err := c.renderer.Render(req); err != nil {
		c.log.Warn("render failed", "size", req.Size, "error", err)
		c.presenter.Show(MsgRenderFailed, NotifyError)
		return err
	}
	if c.onRender != nil {
		c.onRender(req)
	}
	return nil
}
