package ble

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testOpts() RemoteOptions {
	opts := DefaultRemoteOptions()
	opts.Address = "AA:BB:CC:DD:EE:FF"
	opts.HealthInterval = 20 * time.Millisecond
	return opts
}

// statusRecorder captures status updates for assertions.
type statusRecorder struct {
	mu      sync.Mutex
	updates []Update
}

func (s *statusRecorder) record(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

func (s *statusRecorder) statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, len(s.updates))
	for i, u := range s.updates {
		out[i] = u.Status
	}
	return out
}

func (s *statusRecorder) has(want Status) bool {
	for _, st := range s.statuses() {
		if st == want {
			return true
		}
	}
	return false
}

func TestBackoffDelay(t *testing.T) {
	delays := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped
		30 * time.Second, // still capped
	}
	for i, want := range delays {
		if got := backoffDelay(i, 30); got != want {
			t.Errorf("backoffDelay(%d, 30) = %v, want %v", i, got, want)
		}
	}
}

func TestConnectDeliversEvents(t *testing.T) {
	adapter := newMockAdapter(nil)
	rec := &statusRecorder{}
	r := NewRemote(adapter, testOpts(), rec.record, zerolog.Nop())
	defer r.Disconnect()

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error = %v", err)
	}

	adapter.latestConnection().buttonChar.SimulateNotification([]byte{0x21})

	select {
	case code := <-r.Events():
		if code != 0x21 {
			t.Errorf("code = 0x%02x, want 0x21", code)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	if !rec.has(StatusConnecting) || !rec.has(StatusConnected) || !rec.has(StatusReady) {
		t.Errorf("status sequence = %v, want connecting/connected/ready present", rec.statuses())
	}
}

func TestBothCharacteristicsDeliver(t *testing.T) {
	adapter := newMockAdapter(nil)
	r := NewRemote(adapter, testOpts(), nil, zerolog.Nop())
	defer r.Disconnect()

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error = %v", err)
	}

	conn := adapter.latestConnection()
	conn.buttonChar.SimulateNotification([]byte{0x21})
	conn.legacyChar.SimulateNotification([]byte{0x21})

	got := 0
	timeout := time.After(time.Second)
	for got < 2 {
		select {
		case <-r.Events():
			got++
		case <-timeout:
			t.Fatalf("delivered %d raw codes, want 2 (dedup is downstream)", got)
		}
	}
}

func TestConnectToleratesMissingLegacyCharacteristic(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.hideLegacy = true // newer housing firmware drops the legacy characteristic
	r := NewRemote(adapter, testOpts(), nil, zerolog.Nop())
	defer r.Disconnect()

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error = %v", err)
	}
	conn := adapter.latestConnection()

	conn.buttonChar.SimulateNotification([]byte{0x31})
	select {
	case code := <-r.Events():
		if code != 0x31 {
			t.Errorf("code = 0x%02x", code)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestScanResolvesByNamePrefix(t *testing.T) {
	adapter := newMockAdapter([]Device{
		{Name: "OtherThing", Address: "11:11:11:11:11:11", RSSI: -70},
		{Name: "KrakenHousing-3F", Address: "AA:BB:CC:DD:EE:FF", RSSI: -48},
	})
	opts := testOpts()
	opts.Address = ""
	opts.NamePrefix = "Kraken"

	rec := &statusRecorder{}
	r := NewRemote(adapter, opts, rec.record, zerolog.Nop())
	defer r.Disconnect()

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error = %v", err)
	}
	if !rec.has(StatusScanning) {
		t.Errorf("status sequence = %v, want scanning present", rec.statuses())
	}
}

func TestScanMissReportsError(t *testing.T) {
	adapter := newMockAdapter([]Device{{Name: "NotAHousing", Address: "11:11:11:11:11:11"}})
	opts := testOpts()
	opts.Address = ""
	opts.NamePrefix = "Kraken"

	rec := &statusRecorder{}
	r := NewRemote(adapter, opts, rec.record, zerolog.Nop())
	defer r.Disconnect()

	if err := r.Connect(context.Background()); err == nil {
		t.Fatal("expected error when no housing matches")
	}
	if !rec.has(StatusError) {
		t.Errorf("status sequence = %v, want error present", rec.statuses())
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	adapter := newMockAdapter(nil)
	rec := &statusRecorder{}
	r := NewRemote(adapter, testOpts(), rec.record, zerolog.Nop())
	defer r.Disconnect()

	sessions := 0
	var mu sync.Mutex
	r.OnSession(func() {
		mu.Lock()
		sessions++
		mu.Unlock()
	})

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error = %v", err)
	}

	adapter.latestConnection().SimulateDisconnect()

	// First reconnect attempt is immediate against the mock.
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := sessions
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sessions = %d, want 2 after reconnect", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !rec.has(StatusReconnecting) {
		t.Errorf("status sequence = %v, want reconnecting present", rec.statuses())
	}

	// Events flow on the new connection.
	adapter.latestConnection().buttonChar.SimulateNotification([]byte{0x41})
	select {
	case <-r.Events():
	case <-time.After(time.Second):
		t.Fatal("no event after reconnect")
	}
}

func TestDisconnectStopsReconnects(t *testing.T) {
	adapter := newMockAdapter(nil)
	r := NewRemote(adapter, testOpts(), nil, zerolog.Nop())

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error = %v", err)
	}
	if err := r.Disconnect(); err != nil {
		t.Fatalf("Disconnect error = %v", err)
	}

	before := adapter.connectCount()
	adapter.latestConnection().SimulateDisconnect()
	time.Sleep(100 * time.Millisecond) // health ticker would fire twice here
	if after := adapter.connectCount(); after != before {
		t.Errorf("connects after Disconnect = %d, want %d", after, before)
	}
}

func TestHealthLoopKicksReconnect(t *testing.T) {
	adapter := newMockAdapter(nil)
	r := NewRemote(adapter, testOpts(), nil, zerolog.Nop())
	defer r.Disconnect()

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error = %v", err)
	}

	// Mark the link down without firing the disconnect callback, as if the
	// peripheral vanished silently. The health ticker must notice.
	r.mu.Lock()
	r.connected = false
	r.conn = nil
	r.mu.Unlock()

	deadline := time.After(2 * time.Second)
	for adapter.connectCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("health loop never reconnected")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEventChannelDropsWhenFull(t *testing.T) {
	adapter := newMockAdapter(nil)
	opts := testOpts()
	opts.EventBuffer = 2
	r := NewRemote(adapter, opts, nil, zerolog.Nop())
	defer r.Disconnect()

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error = %v", err)
	}

	conn := adapter.latestConnection()
	for i := 0; i < 5; i++ {
		conn.buttonChar.SimulateNotification([]byte{0x21}) // must not block
	}
	if len(r.Events()) != 2 {
		t.Errorf("buffered = %d, want 2 (rest dropped)", len(r.Events()))
	}
}
