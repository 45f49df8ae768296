package led

import (
	"fmt"
	"os"
	"path/filepath"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Controller using the Linux sysfs LED interface
type sysfs struct {
	root string            // LED class directory, /sys/class/leds outside tests
	leds map[string]string // LED name -> sysfs entry
}

// newSysfs creates a sysfs LED controller with board-specific LED mappings
func newSysfs(leds map[string]string) *sysfs {
	return &sysfs{root: sysfsLEDPath, leds: leds}
}

// triggerFor maps a pattern name to a kernel LED trigger. "solid"
// means manual control, with the brightness written separately.
func triggerFor(pattern string) string {
	switch pattern {
	case "solid", "none":
		return "none"
	case "blink":
		return "timer"
	case "heartbeat":
		return "heartbeat"
	}
	return pattern // raw trigger names pass through
}

// Set controls an LED's state and optional pattern
func (s *sysfs) Set(name string, enabled bool, pattern string) error {
	entry, ok := s.leds[name]
	if !ok {
		return fmt.Errorf("LED %q not supported on this board", name)
	}

	ledPath := filepath.Join(s.root, entry)
	if _, err := os.Stat(ledPath); os.IsNotExist(err) {
		return fmt.Errorf("LED %q not found at %s", name, ledPath)
	}

	trigger := ""
	if pattern != "" {
		trigger = triggerFor(pattern)
		triggerPath := filepath.Join(ledPath, "trigger")
		if err := os.WriteFile(triggerPath, []byte(trigger), 0644); err != nil {
			return fmt.Errorf("failed to set LED trigger: %w", err)
		}
	}

	// Active triggers own the brightness value. Only manual control
	// writes it.
	if trigger == "none" || pattern == "" {
		brightness := "0"
		if enabled {
			brightness = "1"
		}
		brightnessPath := filepath.Join(ledPath, "brightness")
		if err := os.WriteFile(brightnessPath, []byte(brightness), 0644); err != nil {
			return fmt.Errorf("failed to set LED brightness: %w", err)
		}
	}

	return nil
}

// Available returns the LED names this controller can drive
func (s *sysfs) Available() []string {
	names := make([]string, 0, len(s.leds))
	for name := range s.leds {
		names = append(names, name)
	}
	return names
}

// Patterns returns the patterns this controller supports
func (s *sysfs) Patterns() []string {
	return []string{"solid", "blink", "heartbeat"}
}
