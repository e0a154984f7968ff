package gesture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pafech/kraken-bridge/internal/uitree"
)

func TestSequencerRunsInOrder(t *testing.T) {
	s := NewSequencer()
	defer s.Close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		last := i == 4
		s.Schedule(0, func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if last {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tasks")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("execution order = %v", got)
		}
	}
}

func TestSequencerHonorsDelays(t *testing.T) {
	s := NewSequencer()
	defer s.Close()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	// Scheduled out of delay order; must execute by deadline.
	s.Schedule(120*time.Millisecond, func() {
		mu.Lock()
		order = append(order, "late")
		mu.Unlock()
		close(done)
	})
	s.Schedule(10*time.Millisecond, func() {
		mu.Lock()
		order = append(order, "early")
		mu.Unlock()
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("order = %v, want [early late]", order)
	}
}

func TestSequencerCancelPending(t *testing.T) {
	s := NewSequencer()
	defer s.Close()

	fired := make(chan struct{}, 4)
	for i := 0; i < 3; i++ {
		s.Schedule(300*time.Millisecond, func() { fired <- struct{}{} })
	}

	if n := s.CancelPending(); n != 3 {
		t.Fatalf("CancelPending = %d, want 3", n)
	}
	if s.PendingLen() != 0 {
		t.Fatalf("PendingLen = %d after cancel", s.PendingLen())
	}

	select {
	case <-fired:
		t.Fatal("cancelled task still fired")
	case <-time.After(450 * time.Millisecond):
	}
}

func TestSequencerScheduleAfterClose(t *testing.T) {
	s := NewSequencer()
	s.Close()
	if s.Schedule(0, func() {}) {
		t.Error("Schedule after Close should report false")
	}
}

// fakeDriver records gestures for assertions.
type fakeDriver struct {
	mu       sync.Mutex
	taps     [][2]int
	swipes   [][4]int
	clicks   int
	clickOK  bool
	clickErr error
	notify   chan string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{notify: make(chan string, 32)}
}

func (f *fakeDriver) Tap(x, y int) error {
	f.mu.Lock()
	f.taps = append(f.taps, [2]int{x, y})
	f.mu.Unlock()
	f.notify <- "tap"
	return nil
}

func (f *fakeDriver) Swipe(x1, y1, x2, y2 int, _ time.Duration) error {
	f.mu.Lock()
	f.swipes = append(f.swipes, [4]int{x1, y1, x2, y2})
	f.mu.Unlock()
	f.notify <- "swipe"
	return nil
}

func (f *fakeDriver) ClickNode(_ *uitree.Node) (bool, error) {
	f.mu.Lock()
	f.clicks++
	ok, err := f.clickOK, f.clickErr
	f.mu.Unlock()
	f.notify <- "click"
	return ok, err
}

func (f *fakeDriver) wait(t *testing.T, what string) {
	t.Helper()
	select {
	case got := <-f.notify:
		if got != what {
			t.Fatalf("driver saw %q, want %q", got, what)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", what)
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeDriver) {
	t.Helper()
	drv := newFakeDriver()
	seq := NewSequencer()
	t.Cleanup(seq.Close)
	return NewDispatcher(drv, seq, zerolog.Nop()), drv
}

func TestDispatcherTapAndSwipe(t *testing.T) {
	d, drv := newTestDispatcher(t)

	d.Tap(540, 2060)
	drv.wait(t, "tap")

	d.Swipe(810, 1170, 270, 1170, 300*time.Millisecond)
	drv.wait(t, "swipe")

	drv.mu.Lock()
	defer drv.mu.Unlock()
	if drv.taps[0] != [2]int{540, 2060} {
		t.Errorf("tap = %v", drv.taps[0])
	}
	if drv.swipes[0] != [4]int{810, 1170, 270, 1170} {
		t.Errorf("swipe = %v", drv.swipes[0])
	}
}

func TestClickFallsBackToCenterTap(t *testing.T) {
	d, drv := newTestDispatcher(t)

	n := &uitree.Node{Bounds: "[840,2100][1040,2300]"}
	d.Click(n) // clickOK=false: driver has no semantic activation
	drv.wait(t, "click")
	drv.wait(t, "tap")

	drv.mu.Lock()
	defer drv.mu.Unlock()
	if drv.taps[0] != [2]int{940, 2200} {
		t.Errorf("fallback tap = %v, want bounding-box center (940,2200)", drv.taps[0])
	}
}

func TestClickSemanticSuccessSkipsTap(t *testing.T) {
	d, drv := newTestDispatcher(t)
	drv.clickOK = true

	d.Click(&uitree.Node{Bounds: "[0,0][10,10]"})
	drv.wait(t, "click")

	select {
	case got := <-drv.notify:
		t.Fatalf("unexpected extra gesture %q", got)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestClickErrorDoesNotTap(t *testing.T) {
	d, drv := newTestDispatcher(t)
	drv.clickErr = errors.New("node gone")

	d.Click(&uitree.Node{Bounds: "[0,0][10,10]"})
	drv.wait(t, "click")

	select {
	case got := <-drv.notify:
		t.Fatalf("gesture after click error: %q", got)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRunSequenceRelativeDelays(t *testing.T) {
	d, drv := newTestDispatcher(t)

	start := time.Now()
	var mu sync.Mutex
	stamps := map[string]time.Duration{}
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			stamps[name] = time.Since(start)
			mu.Unlock()
			return drv.Tap(0, 0)
		}
	}

	d.RunSequence("quick-delete", []Step{
		{Delay: 0, Name: "show-controls", Do: record("show")},
		{Delay: 60 * time.Millisecond, Name: "trash", Do: record("trash")},
		{Delay: 180 * time.Millisecond, Name: "confirm", Do: record("confirm")},
	})

	drv.wait(t, "tap")
	drv.wait(t, "tap")
	drv.wait(t, "tap")

	mu.Lock()
	defer mu.Unlock()
	if stamps["trash"] < 60*time.Millisecond {
		t.Errorf("trash fired at %v, want >= 60ms", stamps["trash"])
	}
	if stamps["confirm"] < 180*time.Millisecond {
		t.Errorf("confirm fired at %v, want >= 180ms", stamps["confirm"])
	}
	if !(stamps["show"] <= stamps["trash"] && stamps["trash"] <= stamps["confirm"]) {
		t.Errorf("steps out of order: %v", stamps)
	}
}
