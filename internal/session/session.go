// Package session holds the per-connection mode state and maps button events
// to action plans. The state machine is deliberately pure: it mutates only its
// own state and returns a declarative plan, so every transition is testable
// without a phone attached.
package session

import (
	"time"

	"github.com/pafech/kraken-bridge/internal/button"
)

// AppMode selects which application the housing buttons currently drive.
type AppMode int

const (
	ModeCamera AppMode = iota
	ModeGallery
)

func (m AppMode) String() string {
	if m == ModeGallery {
		return "gallery"
	}
	return "camera"
}

// CaptureMode selects the camera app's photo/video mode.
type CaptureMode int

const (
	CapturePhoto CaptureMode = iota
	CaptureVideo
)

func (m CaptureMode) String() string {
	if m == CaptureVideo {
		return "video"
	}
	return "photo"
}

// State is the session mode snapshot. Invariants: Recording implies
// App==ModeCamera and Capture==CaptureVideo; any transition that breaks
// either condition clears Recording first.
type State struct {
	App        AppMode
	Capture    CaptureMode
	Recording  bool
	CameraOpen bool
}

// FocusPoint names the three focus tap positions on the preview.
type FocusPoint int

const (
	FocusCenter FocusPoint = iota
	FocusNear
	FocusFar
)

func (f FocusPoint) String() string {
	switch f {
	case FocusNear:
		return "near"
	case FocusFar:
		return "far"
	default:
		return "center"
	}
}

// SwipeDirection is the gallery navigation direction.
type SwipeDirection int

const (
	SwipeNext SwipeDirection = iota
	SwipePrevious
)

func (d SwipeDirection) String() string {
	if d == SwipePrevious {
		return "previous"
	}
	return "next"
}

// ActionKind enumerates everything the executor knows how to do.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionOpenCamera
	ActionReopenCamera
	ActionOpenGallery
	ActionTapShutter
	ActionTapFocus
	ActionModeToggleTap
	ActionSwipeGallery
	ActionQuickDelete
	ActionDumpUITree
	ActionAcquireHold
	ActionReleaseHold
)

func (k ActionKind) String() string {
	switch k {
	case ActionOpenCamera:
		return "open-camera"
	case ActionReopenCamera:
		return "reopen-camera"
	case ActionOpenGallery:
		return "open-gallery"
	case ActionTapShutter:
		return "tap-shutter"
	case ActionTapFocus:
		return "tap-focus"
	case ActionModeToggleTap:
		return "mode-toggle-tap"
	case ActionSwipeGallery:
		return "swipe-gallery"
	case ActionQuickDelete:
		return "quick-delete"
	case ActionDumpUITree:
		return "dump-ui-tree"
	case ActionAcquireHold:
		return "acquire-hold"
	case ActionReleaseHold:
		return "release-hold"
	default:
		return "none"
	}
}

// Step is one scheduled action. Delay is relative to the start of the plan;
// steps with equal delays run in list order. Delays are fixed, not gated on
// observed UI state.
type Step struct {
	Kind      ActionKind
	Focus     FocusPoint
	Direction SwipeDirection
	Capture   CaptureMode
	Delay     time.Duration
}

// Plan is the ordered list of steps a single button press produces. An empty
// plan is an explicit no-op.
type Plan []Step

// Machine maps (state, button event) to a plan. It is not safe for concurrent
// use; the bridge serializes all event processing onto one path.
type Machine struct {
	state  State
	settle time.Duration // delay between opening the camera and a dependent tap
}

// NewMachine creates a Machine in the fresh-session state.
func NewMachine(settle time.Duration) *Machine {
	return &Machine{settle: settle}
}

// State returns a copy of the current session state.
func (m *Machine) State() State {
	return m.state
}

// Reset returns the machine to the fresh-session state: camera app, photo
// mode, not recording, camera not assumed open. Called whenever a new BLE
// connection session starts.
func (m *Machine) Reset() {
	m.state = State{}
}

// Handle consumes one button event and returns the plan to execute. Released
// events and buttons with no mapping in the current mode produce an empty
// plan. Transitions are total: every (mode, identity) pair is either mapped
// here or an explicit no-op.
func (m *Machine) Handle(ev button.Event) Plan {
	if ev.Phase != button.Pressed {
		return nil
	}

	if m.state.App == ModeGallery {
		return m.handleGallery(ev.Identity)
	}
	return m.handleCamera(ev.Identity)
}

func (m *Machine) handleCamera(id button.Identity) Plan {
	switch id {
	case button.Shutter:
		return m.shutterPressed()

	case button.OK:
		return Plan{{Kind: ActionTapFocus, Focus: FocusCenter}}

	case button.Plus:
		return Plan{{Kind: ActionTapFocus, Focus: FocusNear}}

	case button.Minus:
		return Plan{{Kind: ActionTapFocus, Focus: FocusFar}}

	case button.Back:
		plan := m.stopRecordingSteps()
		m.state.App = ModeGallery
		return append(plan, Step{Kind: ActionOpenGallery})

	case button.Fn:
		plan := m.stopRecordingSteps()
		if m.state.Capture == CapturePhoto {
			m.state.Capture = CaptureVideo
		} else {
			m.state.Capture = CapturePhoto
		}
		m.state.CameraOpen = true
		plan = append(plan,
			Step{Kind: ActionOpenCamera},
			Step{Kind: ActionModeToggleTap, Capture: m.state.Capture, Delay: m.settle},
		)
		return plan

	default:
		return nil
	}
}

func (m *Machine) shutterPressed() Plan {
	if !m.state.CameraOpen {
		m.state.CameraOpen = true
		return Plan{{Kind: ActionOpenCamera}}
	}

	if m.state.Capture == CaptureVideo {
		m.state.Recording = !m.state.Recording
		if m.state.Recording {
			return Plan{
				{Kind: ActionAcquireHold},
				{Kind: ActionTapShutter},
			}
		}
		return Plan{
			{Kind: ActionReleaseHold},
			{Kind: ActionTapShutter},
		}
	}

	return Plan{{Kind: ActionTapShutter}}
}

func (m *Machine) handleGallery(id button.Identity) Plan {
	switch id {
	case button.Plus:
		return Plan{{Kind: ActionSwipeGallery, Direction: SwipeNext}}

	case button.Minus:
		return Plan{{Kind: ActionSwipeGallery, Direction: SwipePrevious}}

	case button.OK:
		return Plan{{Kind: ActionQuickDelete}}

	case button.Shutter, button.Back:
		m.state.App = ModeCamera
		m.state.CameraOpen = true
		return Plan{{Kind: ActionReopenCamera}}

	case button.Fn:
		// Diagnostic only: snapshot the foreground app's UI tree.
		return Plan{{Kind: ActionDumpUITree}}

	default:
		return nil
	}
}

// stopRecordingSteps clears Recording and returns the steps that stop the
// in-progress video, or nil if nothing was recording. Recording never spans a
// mode switch.
func (m *Machine) stopRecordingSteps() Plan {
	if !m.state.Recording {
		return nil
	}
	m.state.Recording = false
	return Plan{
		{Kind: ActionReleaseHold},
		{Kind: ActionTapShutter},
	}
}
