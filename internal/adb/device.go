// Package adb drives the phone inside the housing through the adb binary:
// input synthesis, UI hierarchy dumps, app launching, and screen power state.
// Everything shells out, the way a host-side bridge has to; there is no adb
// protocol client here.
package adb

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pafech/kraken-bridge/internal/uitree"
)

const dumpFile = "/data/local/tmp/kraken-view.xml"

// Generic intent fallbacks used when launching the configured package fails.
const (
	GenericCameraAction  = "android.media.action.STILL_IMAGE_CAMERA"
	GenericGalleryAction = "android.intent.action.VIEW"
	GenericGalleryType   = "image/*"
)

// runFunc executes a command and returns its combined output. Swapped out in
// tests.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)

func execRun(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// Device wraps one adb target.
type Device struct {
	path    string
	serial  string
	timeout time.Duration
	log     zerolog.Logger
	run     runFunc

	mu      sync.Mutex
	screenW int
	screenH int
}

// New creates a Device for the adb binary at path. serial may be empty when a
// single device is attached.
func New(path, serial string, timeout time.Duration, log zerolog.Logger) *Device {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Device{
		path:    path,
		serial:  serial,
		timeout: timeout,
		log:     log,
		run:     execRun,
	}
}

func (d *Device) command(ctx context.Context, args ...string) (string, error) {
	full := args
	if d.serial != "" {
		full = append([]string{"-s", d.serial}, args...)
	}
	out, err := d.run(ctx, d.path, full...)
	if err != nil {
		return out, fmt.Errorf("adb %s: %w (output: %s)", strings.Join(args, " "), err, strings.TrimSpace(out))
	}
	return strings.TrimSpace(out), nil
}

func (d *Device) shell(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return d.command(ctx, append([]string{"shell"}, args...)...)
}

// Tap synthesizes a tap at the point.
func (d *Device) Tap(x, y int) error {
	_, err := d.shell("input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// Swipe synthesizes a timed stroke between the points.
func (d *Device) Swipe(x1, y1, x2, y2 int, duration time.Duration) error {
	_, err := d.shell("input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1),
		strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.Itoa(int(duration.Milliseconds())))
	return err
}

// ClickNode always reports no semantic path: adb has no accessibility-action
// channel, so node activation degrades to a center tap in the dispatcher.
func (d *Device) ClickNode(_ *uitree.Node) (bool, error) {
	return false, nil
}

// KeyEvent sends a keycode by name or number.
func (d *Device) KeyEvent(code string) error {
	_, err := d.shell("input", "keyevent", code)
	return err
}

// Wake turns the screen on. KEYCODE_WAKEUP is a no-op when already awake.
func (d *Device) Wake() error {
	return d.KeyEvent("KEYCODE_WAKEUP")
}

// ScreenOn reports whether the display is powered.
func (d *Device) ScreenOn() (bool, error) {
	out, err := d.shell("dumpsys", "power")
	if err != nil {
		return false, err
	}
	if strings.Contains(out, "mWakefulness=Awake") {
		return true, nil
	}
	if strings.Contains(out, "Display Power: state=ON") {
		return true, nil
	}
	return false, nil
}

// StayAwake holds or releases the keep-screen-on state used while a video
// recording is in flight.
func (d *Device) StayAwake(on bool) error {
	v := "false"
	if on {
		v = "true"
	}
	_, err := d.shell("svc", "power", "stayon", v)
	return err
}

var sizeRe = regexp.MustCompile(`(Override|Physical) size:\s*(\d+)x(\d+)`)

// ScreenSize returns the display dimensions in pixels, preferring the
// override size when one is set. The result is cached; a later failure
// returns the cached value.
func (d *Device) ScreenSize() (int, int, error) {
	d.mu.Lock()
	w, h := d.screenW, d.screenH
	d.mu.Unlock()

	out, err := d.shell("wm", "size")
	if err != nil {
		if w > 0 && h > 0 {
			return w, h, nil
		}
		return 0, 0, err
	}

	var phys, override [2]int
	for _, m := range sizeRe.FindAllStringSubmatch(out, -1) {
		pw, _ := strconv.Atoi(m[2])
		ph, _ := strconv.Atoi(m[3])
		if m[1] == "Override" {
			override = [2]int{pw, ph}
		} else {
			phys = [2]int{pw, ph}
		}
	}
	got := phys
	if override[0] > 0 {
		got = override
	}
	if got[0] == 0 || got[1] == 0 {
		if w > 0 && h > 0 {
			return w, h, nil
		}
		return 0, 0, fmt.Errorf("adb: cannot parse wm size output %q", out)
	}

	d.mu.Lock()
	d.screenW, d.screenH = got[0], got[1]
	d.mu.Unlock()
	return got[0], got[1], nil
}

// DumpRaw captures the foreground UI hierarchy XML. uiautomator is flaky, so
// the dump is retried, killing stale uiautomator processes between attempts.
func (d *Device) DumpRaw() (string, error) {
	const maxRetries = 3
	var out string
	var err error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			d.shell("pkill", "uiautomator")
			time.Sleep(500 * time.Millisecond)
		}
		out, err = d.shell("sh", "-c",
			fmt.Sprintf("uiautomator dump %s && cat %s", dumpFile, dumpFile))
		if err == nil && strings.Contains(out, "<?xml") {
			return out, nil
		}
		d.log.Debug().Int("attempt", i+1).Err(err).Msg("ui dump retry")
	}
	if err == nil {
		err = fmt.Errorf("adb: dump produced no XML")
	}
	return "", fmt.Errorf("adb: ui dump failed after %d attempts: %w", maxRetries, err)
}

// UITree dumps and parses the foreground hierarchy.
func (d *Device) UITree() (*uitree.Node, error) {
	raw, err := d.DumpRaw()
	if err != nil {
		return nil, err
	}
	return uitree.Parse(raw)
}

// LaunchPackage starts the package's launcher activity via monkey, which
// needs no activity name.
func (d *Device) LaunchPackage(pkg string) error {
	out, err := d.shell("monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return err
	}
	// monkey exits 0 even when the package does not resolve.
	if strings.Contains(out, "No activities found") || strings.Contains(out, "aborted") {
		return fmt.Errorf("adb: monkey could not launch %s: %s", pkg, out)
	}
	return nil
}

// LaunchIntent fires a generic capability intent, the fallback when the
// configured package is missing on this phone. mimeType may be empty.
func (d *Device) LaunchIntent(action, mimeType string) error {
	args := []string{"am", "start", "-a", action}
	if mimeType != "" {
		args = append(args, "-t", mimeType)
	}
	out, err := d.shell(args...)
	if err != nil {
		return err
	}
	if strings.Contains(out, "Error") {
		return fmt.Errorf("adb: am start -a %s: %s", action, out)
	}
	return nil
}
