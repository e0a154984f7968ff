package journal

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pafech/kraken-bridge/internal/button"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestStartSessionReturnsUniqueIDs(t *testing.T) {
	j := openTest(t)
	a := j.StartSession()
	b := j.StartSession()
	if a == "" || b == "" || a == b {
		t.Errorf("session ids = %q, %q, want distinct non-empty", a, b)
	}
}

func TestDumpEmptyJournal(t *testing.T) {
	j := openTest(t)
	var buf bytes.Buffer
	if err := j.Dump(&buf); err != nil {
		t.Fatalf("Dump error = %v", err)
	}
	if !strings.Contains(buf.String(), "journal is empty") {
		t.Errorf("Dump output = %q", buf.String())
	}
}

func TestDumpShowsLatestSession(t *testing.T) {
	j := openTest(t)

	j.StartSession()
	ev, err := button.Decode(0x21, time.Now())
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	j.ButtonEvent(ev, true)
	j.ButtonEvent(ev, false)
	j.Action("tap_shutter", "strategy=resource-id x=540 y=2060")
	j.Status("ready", "housing ready")

	var buf bytes.Buffer
	if err := j.Dump(&buf); err != nil {
		t.Fatalf("Dump error = %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "shutter pressed") {
		t.Errorf("dump missing accepted event:\n%s", out)
	}
	if !strings.Contains(out, "(duplicate, dropped)") {
		t.Errorf("dump missing dropped-event marker:\n%s", out)
	}
	if !strings.Contains(out, "tap_shutter") {
		t.Errorf("dump missing action:\n%s", out)
	}
}

func TestDumpOnlyCoversMostRecentSession(t *testing.T) {
	j := openTest(t)

	j.StartSession()
	j.Action("open_camera", "first session")
	time.Sleep(5 * time.Millisecond) // distinct started_at ordering
	j.StartSession()
	j.Action("open_gallery", "second session")

	var buf bytes.Buffer
	if err := j.Dump(&buf); err != nil {
		t.Fatalf("Dump error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "open_camera") {
		t.Errorf("dump includes stale session:\n%s", out)
	}
	if !strings.Contains(out, "open_gallery") {
		t.Errorf("dump missing latest session:\n%s", out)
	}
}

func TestWritesBeforeSessionDoNotFail(t *testing.T) {
	j := openTest(t)
	// No StartSession yet; rows land with an empty session id and are
	// simply never shown by Dump.
	j.Action("orphan", "no session")
	j.Status("scanning", "early status")
}
