// Package button decodes the housing's single-byte button codes and filters
// out the duplicate deliveries produced by its two notification paths.
//
// Wire format: one byte per notification, high nibble = button identity,
// low nibble = phase (1 = pressed, 0 = released). Example: 0x21 is the
// shutter going down, 0x20 the shutter coming back up.
package button

import (
	"fmt"
	"time"
)

// Identity is the physical button, encoded in the high nibble.
type Identity byte

const (
	Back    Identity = 0x1
	Shutter Identity = 0x2
	OK      Identity = 0x3
	Plus    Identity = 0x4
	Minus   Identity = 0x5
	Fn      Identity = 0x6
)

// String returns the housing label for the button.
func (i Identity) String() string {
	switch i {
	case Back:
		return "back"
	case Shutter:
		return "shutter"
	case OK:
		return "ok"
	case Plus:
		return "plus"
	case Minus:
		return "minus"
	case Fn:
		return "fn"
	default:
		return fmt.Sprintf("unknown(0x%x)", byte(i))
	}
}

// Phase is the press/release state, encoded in the low nibble.
type Phase byte

const (
	Released Phase = 0
	Pressed  Phase = 1
)

func (p Phase) String() string {
	if p == Pressed {
		return "pressed"
	}
	return "released"
}

// Event is a decoded button notification. Transient: consumed immediately by
// the bridge, never persisted (the journal records its own copy).
type Event struct {
	Identity Identity
	Phase    Phase
	Raw      byte
	At       time.Time
}

// Decode parses a raw notification byte. Codes with an identity or phase
// nibble outside the housing's button map are rejected.
func Decode(raw byte, at time.Time) (Event, error) {
	id := Identity(raw >> 4)
	phase := Phase(raw & 0x0f)

	if id < Back || id > Fn {
		return Event{}, fmt.Errorf("button: unknown identity nibble in code 0x%02x", raw)
	}
	if phase != Pressed && phase != Released {
		return Event{}, fmt.Errorf("button: unknown phase nibble in code 0x%02x", raw)
	}

	return Event{Identity: id, Phase: phase, Raw: raw, At: at}, nil
}
