// Package keysim emits housing button codes from the local keyboard, for bench
// testing the bridge without the dive housing or a BLE radio. The emitted
// bytes are identical to the housing's wire format, so the whole downstream
// path (decode, dedup, state machine, gestures) runs unmodified.
package keysim

import (
	"fmt"
	"sync"

	hook "github.com/robotn/gohook"
	"github.com/rs/zerolog"

	"github.com/pafech/kraken-bridge/internal/button"
)

// Default key map. One key per housing button; press and release both emit.
var keyMap = map[string]button.Identity{
	"b": button.Back,
	"s": button.Shutter,
	"o": button.OK,
	"p": button.Plus,
	"m": button.Minus,
	"f": button.Fn,
}

// Simulator captures global key events and translates them into raw button
// codes on Events. Requires an active display session; it is a bench tool,
// not something to run headless.
type Simulator struct {
	log    zerolog.Logger
	events chan byte

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// New creates a Simulator. Buffer matches the BLE remote's event channel.
func New(log zerolog.Logger) *Simulator {
	return &Simulator{
		log:    log,
		events: make(chan byte, 32),
	}
}

// Events returns the raw code stream, same contract as the BLE remote.
func (s *Simulator) Events() <-chan byte {
	return s.events
}

// Start registers the key hooks and begins emitting. Returns an error if
// already running.
func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("keysim: already running")
	}
	s.running = true
	s.stop = make(chan struct{})

	for key, id := range keyMap {
		id := id
		hook.Register(hook.KeyDown, []string{key}, func(hook.Event) {
			s.emit(byte(id)<<4 | byte(button.Pressed))
		})
		hook.Register(hook.KeyUp, []string{key}, func(hook.Event) {
			s.emit(byte(id)<<4 | byte(button.Released))
		})
	}

	go func() {
		events := hook.Start()
		done := hook.Process(events)
		select {
		case <-done:
		case <-s.stop:
			hook.End()
		}
	}()

	s.log.Info().Msg("keyboard simulator active: b=back s=shutter o=ok p=plus m=minus f=fn")
	return nil
}

func (s *Simulator) emit(code byte) {
	select {
	case s.events <- code:
	default:
		s.log.Warn().Uint8("code", code).Msg("event channel full, dropping code")
	}
}

// Stop unhooks the keyboard listener.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
}
