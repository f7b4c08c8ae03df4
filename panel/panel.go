// Package panel is the tone-selection state machine bound to one composition
// element. A tone selection reads the element, asks a Rewriter for the
// rewritten text and writes it back to the same element.
//
//	Idle --SelectTone--> Requesting --ok--> Applying --AppliedDelay--> Idle
//	                                 \-err-> Failed   --FailedDelay--> Idle
//
// At most one request is in flight; a second selection while Requesting
// returns ErrBusy.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/proseai/idgen"
	"github.com/hazyhaar/proseai/rewrite"
	"github.com/hazyhaar/proseai/surface"
)

// Display delays.
const (
	AppliedDelay = 1500 * time.Millisecond
	FailedDelay  = 3 * time.Second
)

// Status messages.
const (
	MsgNoText    = "Please enter some text first"
	MsgNoSurface = "No message box found"
	MsgLoading   = "Rewriting..."
	MsgApplied   = "✓ Text rewritten!"
	MsgFailed    = "Failed to rewrite"
	MsgWriteBack = "Could not update the message box"
	MsgCrashed   = "Something went wrong"
)

var (
	ErrBusy          = errors.New("panel: a rewrite is already in progress")
	ErrNoText        = errors.New("panel: no text to rewrite")
	ErrNoSurface     = errors.New("panel: no composition element attached")
	ErrRewriteFailed = errors.New("panel: rewrite failed")
)

// State of the controller.
type State int

const (
	Idle State = iota
	Requesting
	Applying
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Applying:
		return "applying"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Request is the rewrite currently in flight.
type Request struct {
	SourceText string
	ToneID     string
	RequestID  string
}

// StatusKind selects the styling of the status line.
type StatusKind string

const (
	StatusLoading StatusKind = "loading"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is one status line update.
type Status struct {
	Message string
	Kind    StatusKind
}

// Surface reads and writes composition elements. *surface.Adapter
// satisfies it.
type Surface interface {
	ReadText(ctx context.Context, el surface.Element) (string, bool)
	WriteText(ctx context.Context, el surface.Element, text string) bool
}

// Rewriter produces the rewritten text. *rewrite.Service and
// *rewriteapi.Client satisfy it.
type Rewriter interface {
	Rewrite(ctx context.Context, req rewrite.Request) rewrite.Result
}

// Settings records the last tone that produced a rewrite.
type Settings interface {
	SetLastUsedTone(ctx context.Context, tone string) error
}

// View renders panel feedback.
type View interface {
	ShowStatus(ctx context.Context, st Status)
	ClearStatus(ctx context.Context)
	Hide(ctx context.Context)
}

// Config wires a Controller. Surface and Rewriter are required.
type Config struct {
	Surface  Surface
	Rewriter Rewriter
	Settings Settings
	View     View
	Logger   *slog.Logger
	NewID    idgen.Generator

	AppliedDelay time.Duration
	FailedDelay  time.Duration
	// AfterFunc schedules the return to Idle. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) (stop func() bool)
}

// Controller is the panel state machine. Safe for concurrent use.
type Controller struct {
	cfg Config

	mu       sync.Mutex
	state    State
	element  surface.Element
	inFlight *Request
	gen      uint64
	stop     func() bool
}

// New creates an idle Controller.
func New(cfg Config) *Controller {
	if cfg.View == nil {
		cfg.View = NopView{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = idgen.RequestID
	}
	if cfg.AppliedDelay == 0 {
		cfg.AppliedDelay = AppliedDelay
	}
	if cfg.FailedDelay == 0 {
		cfg.FailedDelay = FailedDelay
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		}
	}
	return &Controller{cfg: cfg}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InFlight returns the request being processed, if any.
func (c *Controller) InFlight() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight == nil {
		return Request{}, false
	}
	return *c.inFlight, true
}

// Attach binds the controller to el. Requests already in flight keep the
// element they started with.
func (c *Controller) Attach(_ context.Context, el surface.Element) error {
	c.mu.Lock()
	c.element = el
	c.mu.Unlock()
	return nil
}

// Detach unbinds the element and hides the view.
func (c *Controller) Detach(ctx context.Context) {
	c.mu.Lock()
	c.element = nil
	if c.state != Requesting {
		c.settleLocked()
	}
	c.mu.Unlock()
	c.cfg.View.Hide(ctx)
}

// SelectTone runs one rewrite of the attached element's text in toneID.
func (c *Controller) SelectTone(ctx context.Context, toneID string) error {
	c.mu.Lock()
	if c.state == Requesting {
		c.mu.Unlock()
		return ErrBusy
	}
	el := c.element
	if el == nil {
		c.mu.Unlock()
		c.cfg.View.ShowStatus(ctx, Status{Message: MsgNoSurface, Kind: StatusError})
		return ErrNoSurface
	}
	c.settleLocked()
	c.state = Requesting
	c.mu.Unlock()

	return c.run(ctx, el, toneID)
}

func (c *Controller) run(ctx context.Context, el surface.Element, toneID string) (err error) {
	log := c.cfg.Logger.With("tone", toneID)
	final, msg := Failed, MsgCrashed
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "panel: rewrite panicked", "panic", r)
			final, msg = Failed, MsgCrashed
			err = fmt.Errorf("%w: %v", ErrRewriteFailed, r)
		}
		c.finish(ctx, final, msg)
	}()

	text, ok := c.cfg.Surface.ReadText(ctx, el)
	if !ok {
		final, msg = Idle, MsgNoSurface
		return ErrNoSurface
	}
	if strings.TrimSpace(text) == "" {
		final, msg = Idle, MsgNoText
		return ErrNoText
	}

	req := Request{SourceText: text, ToneID: toneID, RequestID: c.cfg.NewID()}
	log = log.With("request_id", req.RequestID)
	c.mu.Lock()
	c.inFlight = &req
	c.mu.Unlock()
	c.cfg.View.ShowStatus(ctx, Status{Message: MsgLoading, Kind: StatusLoading})

	res := c.cfg.Rewriter.Rewrite(ctx, rewrite.Request{
		Text:      req.SourceText,
		Tone:      req.ToneID,
		RequestID: req.RequestID,
	})
	if !res.Success {
		msg = res.Error
		if msg == "" {
			msg = MsgFailed
		}
		log.WarnContext(ctx, "panel: rewrite failed", "provider", res.Provider)
		return fmt.Errorf("%w: %s", ErrRewriteFailed, msg)
	}

	if !c.cfg.Surface.WriteText(ctx, el, res.RewrittenText) {
		msg = MsgWriteBack
		log.WarnContext(ctx, "panel: write-back failed", "provider", res.Provider)
		return fmt.Errorf("%w: %s", ErrRewriteFailed, msg)
	}
	if c.cfg.Settings != nil {
		if err := c.cfg.Settings.SetLastUsedTone(ctx, req.ToneID); err != nil {
			log.WarnContext(ctx, "panel: save last tone", "error", err)
		}
	}
	final, msg = Applying, MsgApplied
	log.InfoContext(ctx, "panel: rewrite applied",
		"provider", res.Provider, "text_len", len(res.RewrittenText))
	return nil
}

// finish leaves Requesting and shows msg. Applying and Failed schedule the
// return to Idle; a rejected selection goes straight back.
func (c *Controller) finish(ctx context.Context, final State, msg string) {
	bg := context.WithoutCancel(ctx)

	c.mu.Lock()
	c.state = final
	c.inFlight = nil
	c.gen++
	gen := c.gen
	if final == Idle {
		c.mu.Unlock()
		c.cfg.View.ShowStatus(ctx, Status{Message: msg, Kind: StatusError})
		return
	}
	delay := c.cfg.FailedDelay
	kind := StatusError
	if final == Applying {
		delay, kind = c.cfg.AppliedDelay, StatusSuccess
	}
	c.stop = c.cfg.AfterFunc(delay, func() { c.settle(bg, gen, final) })
	c.mu.Unlock()

	c.cfg.View.ShowStatus(ctx, Status{Message: msg, Kind: kind})
}

// settle returns to Idle unless a newer request has started since gen.
func (c *Controller) settle(ctx context.Context, gen uint64, from State) {
	c.mu.Lock()
	if c.gen != gen || c.state != from {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	c.stop = nil
	c.mu.Unlock()

	if from == Applying {
		c.cfg.View.Hide(ctx)
	}
	c.cfg.View.ClearStatus(ctx)
}

// settleLocked cancels a pending display timer and goes Idle.
func (c *Controller) settleLocked() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.gen++
	c.state = Idle
}

// NopView discards all updates.
type NopView struct{}

func (NopView) ShowStatus(context.Context, Status) {}
func (NopView) ClearStatus(context.Context)        {}
func (NopView) Hide(context.Context)               {}
