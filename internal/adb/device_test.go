package adb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeRunner scripts adb invocations.
type fakeRunner struct {
	calls   [][]string
	outputs []string
	errs    []error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	i := len(f.calls) - 1
	var out string
	var err error
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return out, err
}

func newTestDevice(serial string, fr *fakeRunner) *Device {
	d := New("adb", serial, time.Second, zerolog.Nop())
	d.run = fr.run
	return d
}

func lastCall(fr *fakeRunner) string {
	return strings.Join(fr.calls[len(fr.calls)-1], " ")
}

func TestTapCommand(t *testing.T) {
	fr := &fakeRunner{}
	d := newTestDevice("", fr)

	if err := d.Tap(540, 2060); err != nil {
		t.Fatalf("Tap error = %v", err)
	}
	if got := lastCall(fr); got != "adb shell input tap 540 2060" {
		t.Errorf("command = %q", got)
	}
}

func TestSerialIsInserted(t *testing.T) {
	fr := &fakeRunner{}
	d := newTestDevice("emulator-5554", fr)

	d.Tap(1, 2)
	if got := lastCall(fr); got != "adb -s emulator-5554 shell input tap 1 2" {
		t.Errorf("command = %q", got)
	}
}

func TestSwipeCommand(t *testing.T) {
	fr := &fakeRunner{}
	d := newTestDevice("", fr)

	d.Swipe(810, 1170, 270, 1170, 300*time.Millisecond)
	if got := lastCall(fr); got != "adb shell input swipe 810 1170 270 1170 300" {
		t.Errorf("command = %q", got)
	}
}

func TestClickNodeReportsNoSemanticPath(t *testing.T) {
	d := newTestDevice("", &fakeRunner{})
	ok, err := d.ClickNode(nil)
	if err != nil || ok {
		t.Errorf("ClickNode = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestScreenOnParsing(t *testing.T) {
	tests := []struct {
		out  string
		want bool
	}{
		{"mWakefulness=Awake\nmore", true},
		{"Display Power: state=ON", true},
		{"mWakefulness=Asleep\nDisplay Power: state=OFF", false},
	}
	for _, tt := range tests {
		fr := &fakeRunner{outputs: []string{tt.out}}
		d := newTestDevice("", fr)
		got, err := d.ScreenOn()
		if err != nil {
			t.Fatalf("ScreenOn error = %v", err)
		}
		if got != tt.want {
			t.Errorf("ScreenOn with %q = %v, want %v", tt.out, got, tt.want)
		}
	}
}

func TestScreenSizeParsing(t *testing.T) {
	fr := &fakeRunner{outputs: []string{"Physical size: 1080x2340"}}
	d := newTestDevice("", fr)

	w, h, err := d.ScreenSize()
	if err != nil {
		t.Fatalf("ScreenSize error = %v", err)
	}
	if w != 1080 || h != 2340 {
		t.Errorf("size = %dx%d, want 1080x2340", w, h)
	}
}

func TestScreenSizePrefersOverride(t *testing.T) {
	fr := &fakeRunner{outputs: []string{"Physical size: 1440x3120\nOverride size: 1080x2340"}}
	d := newTestDevice("", fr)

	w, h, _ := d.ScreenSize()
	if w != 1080 || h != 2340 {
		t.Errorf("size = %dx%d, want override 1080x2340", w, h)
	}
}

func TestScreenSizeCachedOnFailure(t *testing.T) {
	fr := &fakeRunner{
		outputs: []string{"Physical size: 1080x2340", ""},
		errs:    []error{nil, errors.New("device offline")},
	}
	d := newTestDevice("", fr)

	d.ScreenSize()
	w, h, err := d.ScreenSize()
	if err != nil {
		t.Fatalf("cached ScreenSize error = %v", err)
	}
	if w != 1080 || h != 2340 {
		t.Errorf("cached size = %dx%d", w, h)
	}
}

func TestDumpRawRetries(t *testing.T) {
	xml := `<?xml version='1.0'?><hierarchy><node bounds="[0,0][1,1]"/></hierarchy>`
	fr := &fakeRunner{
		outputs: []string{
			"ERROR: could not get idle state.", // attempt 1: dump fails
			"",                                 // pkill between attempts
			xml,                                // attempt 2 succeeds
		},
		errs: []error{errors.New("exit 1"), nil, nil},
	}
	d := newTestDevice("", fr)

	out, err := d.DumpRaw()
	if err != nil {
		t.Fatalf("DumpRaw error = %v", err)
	}
	if !strings.Contains(out, "<hierarchy>") {
		t.Errorf("dump = %q", out)
	}
	if len(fr.calls) != 3 {
		t.Errorf("call count = %d, want 3 (dump, pkill, dump)", len(fr.calls))
	}
}

func TestLaunchPackageDetectsMissingPackage(t *testing.T) {
	fr := &fakeRunner{outputs: []string{"** No activities found to run, monkey aborted."}}
	d := newTestDevice("", fr)

	if err := d.LaunchPackage("com.missing.app"); err == nil {
		t.Error("expected error when monkey finds no activities")
	}
	if got := lastCall(fr); got != "adb shell monkey -p com.missing.app -c android.intent.category.LAUNCHER 1" {
		t.Errorf("command = %q", got)
	}
}

func TestLaunchIntentCommand(t *testing.T) {
	fr := &fakeRunner{outputs: []string{"Starting: Intent { act=android.intent.action.VIEW }"}}
	d := newTestDevice("", fr)

	if err := d.LaunchIntent(GenericGalleryAction, GenericGalleryType); err != nil {
		t.Fatalf("LaunchIntent error = %v", err)
	}
	if got := lastCall(fr); got != "adb shell am start -a android.intent.action.VIEW -t image/*" {
		t.Errorf("command = %q", got)
	}
}

func TestStayAwakeCommands(t *testing.T) {
	fr := &fakeRunner{}
	d := newTestDevice("", fr)

	d.StayAwake(true)
	if got := lastCall(fr); got != "adb shell svc power stayon true" {
		t.Errorf("command = %q", got)
	}
	d.StayAwake(false)
	if got := lastCall(fr); got != "adb shell svc power stayon false" {
		t.Errorf("command = %q", got)
	}
}
