package led

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestNoopController(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctrl := newNoop(logger)

	if err := ctrl.Set(StatusLED, true, "solid"); err != nil {
		t.Errorf("Set() = %v, want nil", err)
	}
	if names := ctrl.Available(); len(names) != 0 {
		t.Errorf("Available() = %v, want empty", names)
	}
	if patterns := ctrl.Patterns(); len(patterns) != 0 {
		t.Errorf("Patterns() = %v, want empty", patterns)
	}
}

// fakeLED builds a sysfs controller over a temp directory with one LED
// entry, the way /sys/class/leds lays them out.
func fakeLED(t *testing.T, entry string) *sysfs {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, entry), 0o755); err != nil {
		t.Fatal(err)
	}
	ctrl := newSysfs(map[string]string{StatusLED: entry})
	ctrl.root = root
	return ctrl
}

func readLEDFile(t *testing.T, ctrl *sysfs, entry, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(ctrl.root, entry, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestSysfsSetSolid(t *testing.T) {
	ctrl := fakeLED(t, "ACT")

	if err := ctrl.Set(StatusLED, true, "solid"); err != nil {
		t.Fatalf("Set solid: %v", err)
	}
	if got := readLEDFile(t, ctrl, "ACT", "trigger"); got != "none" {
		t.Errorf("trigger = %q, want none", got)
	}
	if got := readLEDFile(t, ctrl, "ACT", "brightness"); got != "1" {
		t.Errorf("brightness = %q, want 1", got)
	}

	if err := ctrl.Set(StatusLED, false, "none"); err != nil {
		t.Fatalf("Set off: %v", err)
	}
	if got := readLEDFile(t, ctrl, "ACT", "brightness"); got != "0" {
		t.Errorf("brightness = %q, want 0", got)
	}
}

func TestSysfsSetBlinkLeavesBrightness(t *testing.T) {
	ctrl := fakeLED(t, "usr_led")

	if err := ctrl.Set(StatusLED, true, "solid"); err != nil {
		t.Fatal(err)
	}

	// A running kernel trigger owns the brightness file; switching to
	// blink must only write the trigger.
	if err := ctrl.Set(StatusLED, true, "blink"); err != nil {
		t.Fatalf("Set blink: %v", err)
	}
	if got := readLEDFile(t, ctrl, "usr_led", "trigger"); got != "timer" {
		t.Errorf("trigger = %q, want timer", got)
	}
	if got := readLEDFile(t, ctrl, "usr_led", "brightness"); got != "1" {
		t.Errorf("brightness rewritten by blink: %q", got)
	}
}

func TestSysfsSetErrors(t *testing.T) {
	ctrl := fakeLED(t, "ACT")

	if err := ctrl.Set("nonexistent", true, ""); err == nil {
		t.Error("Set with an unknown LED name should fail")
	}

	// Mapped but absent from the filesystem.
	missing := newSysfs(map[string]string{StatusLED: "ACT"})
	missing.root = t.TempDir()
	if err := missing.Set(StatusLED, true, "solid"); err == nil {
		t.Error("Set over a missing sysfs entry should fail")
	}
}

func TestSysfsAvailable(t *testing.T) {
	ctrl := newSysfs(map[string]string{StatusLED: "ACT"})
	if got := ctrl.Available(); !slices.Contains(got, StatusLED) {
		t.Errorf("Available() = %v, want %q listed", got, StatusLED)
	}
	if got := newSysfs(map[string]string{}).Available(); len(got) != 0 {
		t.Errorf("Available() with no LEDs = %v", got)
	}
}

func TestSysfsPatterns(t *testing.T) {
	patterns := newSysfs(map[string]string{StatusLED: "ACT"}).Patterns()
	for _, want := range []string{"solid", "blink", "heartbeat"} {
		if !slices.Contains(patterns, want) {
			t.Errorf("Patterns() = %v, missing %q", patterns, want)
		}
	}
}

func TestTriggerFor(t *testing.T) {
	cases := []struct {
		pattern string
		want    string
	}{
		{"solid", "none"},
		{"none", "none"},
		{"blink", "timer"},
		{"heartbeat", "heartbeat"},
		{"mmc0", "mmc0"}, // raw kernel triggers pass through
	}

	for _, tc := range cases {
		if got := triggerFor(tc.pattern); got != tc.want {
			t.Errorf("triggerFor(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}
