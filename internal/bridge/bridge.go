// Package bridge is the event pipeline: raw housing codes in, phone gestures
// out. It owns the only goroutine that touches the state machine, so every
// button press is decoded, deduplicated, journaled, and translated in arrival
// order.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pafech/kraken-bridge/internal/adb"
	"github.com/pafech/kraken-bridge/internal/button"
	"github.com/pafech/kraken-bridge/internal/config"
	"github.com/pafech/kraken-bridge/internal/gesture"
	"github.com/pafech/kraken-bridge/internal/locator"
	"github.com/pafech/kraken-bridge/internal/session"
	"github.com/pafech/kraken-bridge/internal/uitree"
)

// Phone is the device-control surface the controller needs beyond raw
// gestures. *adb.Device implements it.
type Phone interface {
	ScreenOn() (bool, error)
	Wake() error
	StayAwake(on bool) error
	ScreenSize() (int, int, error)
	UITree() (*uitree.Node, error)
	DumpRaw() (string, error)
	LaunchPackage(pkg string) error
	LaunchIntent(action, mimeType string) error
}

// Recorder is the journal surface the controller writes to. A nil-safe no-op
// implementation stands in when journaling is disabled.
type Recorder interface {
	StartSession() string
	ButtonEvent(ev button.Event, accepted bool)
	Action(kind, detail string)
	Status(status, message string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) StartSession() string           { return "" }
func (NopRecorder) ButtonEvent(button.Event, bool) {}
func (NopRecorder) Action(string, string)          {}
func (NopRecorder) Status(string, string)          {}

// atomicConfig and atomicCatalog let the reload watcher swap state without
// blocking the event loop.
type atomicConfig struct{ p atomic.Pointer[config.Config] }

func (a *atomicConfig) store(c *config.Config) { a.p.Store(c) }
func (a *atomicConfig) load() *config.Config   { return a.p.Load() }

type atomicCatalog struct{ p atomic.Pointer[locator.Catalog] }

func (a *atomicCatalog) store(c *locator.Catalog) { a.p.Store(c) }
func (a *atomicCatalog) load() *locator.Catalog   { return a.p.Load() }

// Controller wires the pipeline together. All event handling happens on the
// goroutine running Run; ApplyConfig and ResetSession may be called from
// other goroutines.
type Controller struct {
	phone  Phone
	driver gesture.Driver
	disp   *gesture.Dispatcher
	rec    Recorder
	log    zerolog.Logger

	// machineMu serializes the state machine between the event loop and the
	// BLE session-reset callback.
	machineMu sync.Mutex
	machine   *session.Machine
	dedup     *button.Deduplicator

	cfg     atomicConfig
	catalog atomicCatalog
}

// New creates a Controller. rec may be nil.
func New(cfg *config.Config, phone Phone, driver gesture.Driver, disp *gesture.Dispatcher, rec Recorder, log zerolog.Logger) *Controller {
	if rec == nil {
		rec = NopRecorder{}
	}
	c := &Controller{
		phone:   phone,
		driver:  driver,
		disp:    disp,
		machine: session.NewMachine(time.Duration(cfg.Timing.LaunchSettleMs) * time.Millisecond),
		dedup:   button.NewDeduplicator(time.Duration(cfg.Timing.DebounceMs) * time.Millisecond),
		rec:     rec,
		log:     log,
	}
	c.cfg.store(cfg)
	c.catalog.store(locator.NewCatalog(cfg.Calibration))
	return c
}

// ApplyConfig swaps in a reloaded configuration. Only calibration, timing, and
// app packages take effect live; connection settings need a restart.
func (c *Controller) ApplyConfig(cfg *config.Config) {
	c.cfg.store(cfg)
	c.catalog.store(locator.NewCatalog(cfg.Calibration))
	c.log.Info().Msg("configuration reloaded")
}

// ResetSession returns the pipeline to the fresh-session state. Wired to the
// BLE remote's session callback so every (re)connect starts in camera/photo
// with a clean debounce history.
func (c *Controller) ResetSession() {
	c.machineMu.Lock()
	wasRecording := c.machine.State().Recording
	c.machine.Reset()
	c.machineMu.Unlock()

	// A recording interrupted by a link drop leaves the keep-awake hold set.
	if wasRecording {
		if err := c.phone.StayAwake(false); err != nil {
			c.log.Warn().Err(err).Msg("keep-awake release failed")
		}
		c.rec.Action("hold", "released on session reset")
	}
	c.dedup.Reset()
	id := c.rec.StartSession()
	c.log.Info().Str("session", id).Msg("new housing session")
}

// Run consumes raw codes until ctx is done or the channel closes.
func (c *Controller) Run(ctx context.Context, events <-chan byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case code, ok := <-events:
			if !ok {
				return
			}
			c.handleRaw(code)
		}
	}
}

func (c *Controller) handleRaw(code byte) {
	ev, err := button.Decode(code, time.Now())
	if err != nil {
		c.log.Warn().Err(err).Msg("unrecognized button code")
		return
	}

	accepted := c.dedup.Accept(code)
	c.rec.ButtonEvent(ev, accepted)
	if !accepted {
		c.log.Debug().Str("button", ev.Identity.String()).Msg("duplicate notification dropped")
		return
	}

	if ev.Phase == button.Pressed {
		c.ensureAwake()
	}

	c.machineMu.Lock()
	before := c.machine.State().App
	plan := c.machine.Handle(ev)
	after := c.machine.State().App
	c.machineMu.Unlock()

	c.log.Info().
		Str("button", ev.Identity.String()).
		Str("phase", ev.Phase.String()).
		Str("mode", after.String()).
		Msg("button event")

	if len(plan) == 0 {
		return
	}

	// An app-mode switch obsoletes anything still queued for the app we are
	// leaving.
	if after != before {
		c.disp.CancelPending()
	}

	c.execute(plan)
}

// ensureAwake wakes the screen before a press is acted on. A blocked press is
// fine here: ordering matters more than latency, and the settle pause only
// happens when the phone was actually asleep.
func (c *Controller) ensureAwake() {
	on, err := c.phone.ScreenOn()
	if err != nil {
		c.log.Warn().Err(err).Msg("screen state query failed")
		return
	}
	if on {
		return
	}
	if err := c.phone.Wake(); err != nil {
		c.log.Warn().Err(err).Msg("wake failed")
		return
	}
	cfg := c.cfg.load()
	time.Sleep(time.Duration(cfg.Timing.WakeSettleMs) * time.Millisecond)
	c.rec.Action("wake", "screen was off")
}

// execute translates a plan into dispatcher steps and schedules them. The
// quick-delete action expands into its own timed sub-sequence.
func (c *Controller) execute(plan session.Plan) {
	cfg := c.cfg.load()
	var steps []gesture.Step

	for _, s := range plan {
		switch s.Kind {
		case session.ActionQuickDelete:
			steps = append(steps, c.quickDeleteSteps(s.Delay, cfg)...)
		default:
			steps = append(steps, gesture.Step{
				Delay: s.Delay,
				Name:  s.Kind.String(),
				Do:    c.stepFunc(s, cfg),
			})
		}
	}
	c.disp.RunSequence("plan", steps)
}

func (c *Controller) stepFunc(s session.Step, cfg *config.Config) func() error {
	switch s.Kind {
	case session.ActionOpenCamera, session.ActionReopenCamera:
		return func() error {
			return c.launchApp(cfg.Apps.Camera, adb.GenericCameraAction, "")
		}
	case session.ActionOpenGallery:
		return func() error {
			return c.launchApp(cfg.Apps.Gallery, adb.GenericGalleryAction, adb.GenericGalleryType)
		}
	case session.ActionTapShutter:
		return func() error { return c.tapTarget(c.catalog.load().Shutter()) }
	case session.ActionModeToggleTap:
		capture := s.Capture
		return func() error { return c.tapTarget(c.catalog.load().ModeToggle(capture)) }
	case session.ActionTapFocus:
		focus := s.Focus
		return func() error { return c.tapTarget(c.catalog.load().Focus(focus)) }
	case session.ActionSwipeGallery:
		direction := s.Direction
		return func() error { return c.swipeGallery(direction, cfg) }
	case session.ActionAcquireHold:
		return func() error {
			c.rec.Action("hold", "acquired")
			return c.phone.StayAwake(true)
		}
	case session.ActionReleaseHold:
		return func() error {
			c.rec.Action("hold", "released")
			return c.phone.StayAwake(false)
		}
	case session.ActionDumpUITree:
		return c.dumpTree
	default:
		return func() error { return nil }
	}
}

// quickDeleteSteps is the three-beat delete: reveal the viewer's chrome, tap
// trash, tap the confirmation. The beats are fixed offsets from the first tap;
// nothing re-queries the UI in between, so a slow dialog simply eats a tap at
// the confirm coordinate.
func (c *Controller) quickDeleteSteps(base time.Duration, cfg *config.Config) []gesture.Step {
	return []gesture.Step{
		{
			Delay: base,
			Name:  "show-controls",
			Do:    func() error { return c.tapTarget(c.catalog.load().ShowControls()) },
		},
		{
			Delay: base + time.Duration(cfg.Timing.DeleteTrashMs)*time.Millisecond,
			Name:  "trash",
			Do:    func() error { return c.tapTarget(c.catalog.load().Trash()) },
		},
		{
			Delay: base + time.Duration(cfg.Timing.DeleteAgreeMs)*time.Millisecond,
			Name:  "confirm",
			Do:    func() error { return c.tapTarget(c.catalog.load().DeleteConfirm()) },
		},
	}
}

// launchApp starts the configured package, falling back to a generic
// capability intent, then one more package attempt. Launch is the one gesture
// worth retrying: nothing on screen can be mis-tapped by trying again.
func (c *Controller) launchApp(pkg, action, mimeType string) error {
	if err := c.phone.LaunchPackage(pkg); err == nil {
		c.rec.Action("launch", pkg)
		return nil
	} else {
		c.log.Warn().Err(err).Str("package", pkg).Msg("package launch failed, trying generic intent")
	}

	if err := c.phone.LaunchIntent(action, mimeType); err == nil {
		c.rec.Action("launch", "intent "+action)
		return nil
	} else {
		c.log.Warn().Err(err).Str("action", action).Msg("generic intent failed")
	}

	if err := c.phone.LaunchPackage(pkg); err != nil {
		return fmt.Errorf("launch %s: %w", pkg, err)
	}
	c.rec.Action("launch", pkg+" (retry)")
	return nil
}

// tapTarget resolves a target against the live UI and activates it. Targets
// with no strategy chain skip the dump entirely; the calibrated fraction is
// the whole answer.
func (c *Controller) tapTarget(t locator.Target) error {
	w, h, err := c.phone.ScreenSize()
	if err != nil {
		return fmt.Errorf("screen size: %w", err)
	}

	var root *uitree.Node
	if len(t.Strategies) > 0 {
		root, err = c.phone.UITree()
		if err != nil {
			// The chain degrades to the fixed coordinate; still worth a tap.
			c.log.Debug().Err(err).Str("target", t.Name).Msg("ui dump unavailable, using fallback")
		}
	}

	m := locator.Locate(root, w, h, t)
	c.rec.Action("tap_"+t.Name, fmt.Sprintf("strategy=%s x=%d y=%d", m.Strategy, m.X, m.Y))
	c.log.Debug().Str("target", t.Name).Str("strategy", m.Strategy).Int("x", m.X).Int("y", m.Y).Msg("target resolved")

	if m.Node != nil {
		ok, err := c.driver.ClickNode(m.Node)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return c.driver.Tap(m.X, m.Y)
}

func (c *Controller) swipeGallery(dir session.SwipeDirection, cfg *config.Config) error {
	w, h, err := c.phone.ScreenSize()
	if err != nil {
		return fmt.Errorf("screen size: %w", err)
	}

	left, right := c.catalog.load().SwipeEdges()
	lx, ly := int(left.X*float64(w)), int(left.Y*float64(h))
	rx, ry := int(right.X*float64(w)), int(right.Y*float64(h))

	duration := time.Duration(cfg.Timing.SwipeMs) * time.Millisecond
	c.rec.Action("swipe", dir.String())

	// Advancing drags the current photo leftward off screen.
	if dir == session.SwipeNext {
		return c.driver.Swipe(rx, ry, lx, ly, duration)
	}
	return c.driver.Swipe(lx, ly, rx, ry, duration)
}

func (c *Controller) dumpTree() error {
	raw, err := c.phone.DumpRaw()
	if err != nil {
		return fmt.Errorf("ui dump: %w", err)
	}
	detail := raw
	if len(detail) > 4000 {
		detail = detail[:4000] + "...(truncated)"
	}
	c.rec.Action("ui_dump", detail)
	c.log.Info().Int("bytes", len(raw)).Msg("ui tree captured")
	return nil
}
