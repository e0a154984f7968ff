package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RemoteOptions configures the housing client.
type RemoteOptions struct {
	Address        string        // connect directly when set
	NamePrefix     string        // otherwise scan for this advertised name prefix
	ScanTimeout    time.Duration // default 10s
	ReconnectMax   int           // max reconnect backoff in seconds
	HealthInterval time.Duration // link health check period, default 5s
	EventBuffer    int           // raw code channel depth, default 32
}

// DefaultRemoteOptions returns sensible defaults.
func DefaultRemoteOptions() RemoteOptions {
	return RemoteOptions{
		ScanTimeout:    10 * time.Second,
		ReconnectMax:   30,
		HealthInterval: 5 * time.Second,
		EventBuffer:    32,
	}
}

// Remote manages the BLE link to the housing and turns its notifications into
// a bounded stream of raw button codes. One Remote serves one housing for the
// life of the process.
type Remote struct {
	adapter  Adapter
	opts     RemoteOptions
	statusFn StatusFunc
	log      zerolog.Logger

	events chan byte

	mu           sync.Mutex
	conn         Connection
	address      string // resolved peripheral address
	connected    bool
	reconnecting bool
	closed       bool

	// sessionFn runs on every (re)connect, before events flow. The bridge
	// uses it to reset mode state and debounce history.
	sessionFn func()

	healthOnce sync.Once
	done       chan struct{}
}

// NewRemote creates a Remote over the given adapter. statusFn may be nil.
func NewRemote(adapter Adapter, opts RemoteOptions, statusFn StatusFunc, log zerolog.Logger) *Remote {
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 10 * time.Second
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 5 * time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 32
	}
	return &Remote{
		adapter:  adapter,
		opts:     opts,
		statusFn: statusFn,
		log:      log,
		events:   make(chan byte, opts.EventBuffer),
		address:  opts.Address,
		done:     make(chan struct{}),
	}
}

// Events returns the raw button-code stream. Codes are single bytes exactly
// as notified; decoding and deduplication happen downstream.
func (r *Remote) Events() <-chan byte {
	return r.events
}

// OnSession registers a callback invoked after every successful (re)connect,
// before notifications are delivered.
func (r *Remote) OnSession(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionFn = fn
}

func (r *Remote) status(s Status, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.log.Info().Str("status", s.String()).Msg(msg)
	if r.statusFn != nil {
		r.statusFn(Update{Status: s, Message: msg})
	}
}

// Connect establishes the initial connection: enable the adapter, resolve the
// housing's address (scanning by name prefix when none is configured),
// connect, and subscribe. Starts the health ticker on first success.
func (r *Remote) Connect(ctx context.Context) error {
	if err := r.adapter.Enable(); err != nil {
		r.status(StatusError, "BLE adapter unavailable: %v", err)
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	addr, err := r.resolveAddress(ctx)
	if err != nil {
		r.status(StatusError, "housing not found: %v", err)
		return err
	}

	if err := r.connectTo(ctx, addr); err != nil {
		r.status(StatusError, "connect failed: %v", err)
		return err
	}

	r.healthOnce.Do(func() { go r.healthLoop() })
	return nil
}

func (r *Remote) resolveAddress(ctx context.Context) (string, error) {
	r.mu.Lock()
	addr := r.address
	r.mu.Unlock()
	if addr != "" {
		return addr, nil
	}

	r.status(StatusScanning, "scanning for %q housings", r.opts.NamePrefix)
	scanCtx, cancel := context.WithTimeout(ctx, r.opts.ScanTimeout)
	defer cancel()

	devices, err := r.adapter.Scan(scanCtx, ServiceUUID)
	if err != nil {
		return "", fmt.Errorf("ble: scan: %w", err)
	}
	for _, dev := range devices {
		if strings.HasPrefix(dev.Name, r.opts.NamePrefix) {
			r.log.Info().Str("name", dev.Name).Str("address", dev.Address).Int("rssi", dev.RSSI).Msg("housing found")
			r.mu.Lock()
			r.address = dev.Address
			r.mu.Unlock()
			return dev.Address, nil
		}
	}
	return "", fmt.Errorf("ble: no housing matching %q found", r.opts.NamePrefix)
}

func (r *Remote) connectTo(ctx context.Context, addr string) error {
	r.status(StatusConnecting, "connecting to %s", addr)
	conn, err := r.adapter.Connect(ctx, addr)
	if err != nil {
		return fmt.Errorf("ble: connect to %s: %w", addr, err)
	}
	r.status(StatusConnected, "connected to %s", addr)

	if err := r.subscribe(conn); err != nil {
		conn.Disconnect()
		return err
	}

	r.mu.Lock()
	r.conn = conn
	r.connected = true
	r.reconnecting = false
	sessionFn := r.sessionFn
	r.mu.Unlock()

	conn.OnDisconnect(r.onDisconnected)

	if sessionFn != nil {
		sessionFn()
	}
	r.status(StatusReady, "housing ready")
	return nil
}

// subscribe attaches to both button characteristics. The legacy one is
// optional: newer housing firmware drops it.
func (r *Remote) subscribe(conn Connection) error {
	current, err := conn.DiscoverCharacteristic(ServiceUUID, ButtonCharUUID)
	if err != nil {
		return fmt.Errorf("ble: discover button characteristic: %w", err)
	}
	if err := current.Subscribe(r.deliver); err != nil {
		return fmt.Errorf("ble: subscribe button characteristic: %w", err)
	}

	legacy, err := conn.DiscoverCharacteristic(ServiceUUID, LegacyButtonCharUUID)
	if err != nil {
		r.log.Debug().Err(err).Msg("legacy button characteristic absent")
		return nil
	}
	if err := legacy.Subscribe(r.deliver); err != nil {
		r.log.Warn().Err(err).Msg("legacy characteristic subscribe failed")
	}
	return nil
}

// deliver pushes one raw code into the bounded event channel. When the bridge
// is not draining fast enough the code is dropped: a stale button press is
// worse than a missed one.
func (r *Remote) deliver(data []byte) {
	if len(data) == 0 {
		return
	}
	select {
	case r.events <- data[0]:
	default:
		r.log.Warn().Hex("code", data[:1]).Msg("event channel full, dropping code")
	}
}

func (r *Remote) onDisconnected() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.connected = false
	r.conn = nil
	alreadyReconnecting := r.reconnecting
	r.reconnecting = true
	r.mu.Unlock()

	if alreadyReconnecting {
		return
	}
	r.status(StatusReconnecting, "link lost, reconnecting")
	go r.reconnectLoop()
}

// reconnectLoop retries with exponential backoff until it succeeds or the
// remote is closed. The first attempt is immediate.
func (r *Remote) reconnectLoop() {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, r.opts.ReconnectMax)
			r.log.Info().Int("attempt", attempt+1).Dur("delay", delay).Msg("reconnect backoff")
			select {
			case <-time.After(delay):
			case <-r.done:
				return
			}
		}

		r.mu.Lock()
		closed := r.closed
		addr := r.address
		r.mu.Unlock()
		if closed {
			return
		}

		if err := r.connectTo(context.Background(), addr); err != nil {
			r.log.Warn().Err(err).Int("attempt", attempt+1).Msg("reconnect failed")
			continue
		}
		return
	}
}

// healthLoop periodically verifies the link and kicks a reconnect when it
// finds the remote down with no reconnect in flight. It touches only
// connection-lifecycle state, never mode state.
func (r *Remote) healthLoop() {
	ticker := time.NewTicker(r.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			down := !r.connected && !r.reconnecting && !r.closed
			if down {
				r.reconnecting = true
			}
			r.mu.Unlock()

			if down {
				r.status(StatusReconnecting, "health check found link down")
				go r.reconnectLoop()
			}
		}
	}
}

// Disconnect tears the link down and cancels pending reconnect attempts.
// Already-scheduled gesture steps are the dispatcher's business and keep
// running; only the BLE side stops here.
func (r *Remote) Disconnect() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	r.conn = nil
	r.connected = false
	r.mu.Unlock()

	close(r.done)
	if conn != nil {
		conn.Disconnect()
	}
	r.status(StatusDisconnected, "disconnected")
	return nil
}

// backoffDelay returns the reconnection delay for attempt n, capped at
// maxSeconds.
func backoffDelay(attempt int, maxSeconds int) time.Duration {
	delay := time.Duration(1<<uint(attempt)) * time.Second
	max := time.Duration(maxSeconds) * time.Second
	if delay > max {
		return max
	}
	return delay
}
