package gesture

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/pafech/kraken-bridge/internal/uitree"
)

// Driver is the automation host's gesture surface. The adb implementation
// backs this in production; tests use fakes.
type Driver interface {
	// Tap issues a zero-duration stroke at the point.
	Tap(x, y int) error
	// Swipe issues a timed stroke between the points.
	Swipe(x1, y1, x2, y2 int, duration time.Duration) error
	// ClickNode attempts a semantic activation of the node. ok=false means
	// the host has no semantic path and the caller should tap the node's
	// bounding-box center instead.
	ClickNode(n *uitree.Node) (ok bool, err error)
}

// Step is one element of a multi-step sequence: a delay relative to sequence
// start, a label for logging, and the work itself.
type Step struct {
	Delay time.Duration
	Name  string
	Do    func() error
}

// Dispatcher schedules gestures on a Sequencer and logs their outcomes.
// Dispatch is fire-and-forget: callers never block on gesture completion, and
// a failed gesture is logged, not retried: retrying a tap against a UI that
// has since moved on could press the wrong thing.
type Dispatcher struct {
	driver Driver
	seq    *Sequencer
	log    zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given driver.
func NewDispatcher(driver Driver, seq *Sequencer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{driver: driver, seq: seq, log: log}
}

// Tap schedules an immediate tap.
func (d *Dispatcher) Tap(x, y int) {
	d.Run("tap", func() error { return d.driver.Tap(x, y) })
}

// Swipe schedules an immediate swipe.
func (d *Dispatcher) Swipe(x1, y1, x2, y2 int, duration time.Duration) {
	d.Run("swipe", func() error { return d.driver.Swipe(x1, y1, x2, y2, duration) })
}

// Click activates a node, falling back to a tap at its bounding-box center
// when the driver reports no semantic path. Runs on the worker like
// everything else.
func (d *Dispatcher) Click(n *uitree.Node) {
	d.Run("click", func() error {
		ok, err := d.driver.ClickNode(n)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		x, y, err := n.CenterOf()
		if err != nil {
			return err
		}
		return d.driver.Tap(x, y)
	})
}

// Run schedules a single named unit of work for immediate execution.
func (d *Dispatcher) Run(name string, fn func() error) {
	d.RunSequence(name, []Step{{Name: name, Do: fn}})
}

// RunSequence schedules every step of a sequence at its relative delay. Steps
// sharing the worker with all other gestures guarantees in-order, unraced
// execution; nothing observes whether an earlier step's UI effect settled.
func (d *Dispatcher) RunSequence(name string, steps []Step) {
	for _, step := range steps {
		step := step
		started := time.Now()
		scheduled := d.seq.Schedule(step.Delay, func() {
			err := step.Do()
			ev := d.log.Debug()
			if err != nil {
				// Dispatch failures degrade to "nothing visibly happened";
				// see the package comment for why there is no retry.
				ev = d.log.Warn().Err(err)
			}
			ev.Str("sequence", name).
				Str("step", step.Name).
				Dur("after", time.Since(started).Round(time.Millisecond)).
				Msg("gesture step")
		})
		if !scheduled {
			d.log.Warn().Str("sequence", name).Str("step", step.Name).Msg("sequencer closed, step dropped")
			return
		}
	}
}

// CancelPending drops not-yet-executed steps, logging how many were shed.
func (d *Dispatcher) CancelPending() {
	if n := d.seq.CancelPending(); n > 0 {
		d.log.Debug().Int("dropped", n).Msg("cancelled pending gesture steps")
	}
}
