package light

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const sysfsGPIOPath = "/sys/class/gpio"

// GPIO drives light channels through the Linux sysfs GPIO interface.
// Each channel maps to a BCM pin number wired to the channel's relay or
// driver board.
type GPIO struct {
	pins map[Channel]int
	root string
}

// NewGPIO creates a GPIO switcher with the given channel-to-pin mapping.
func NewGPIO(pins map[Channel]int) *GPIO {
	return &GPIO{
		pins: pins,
		root: sysfsGPIOPath,
	}
}

// Export exports every mapped pin and sets its direction to output.
// Pins that are already exported are left alone.
func (g *GPIO) Export() error {
	for ch, pin := range g.pins {
		pinDir := filepath.Join(g.root, "gpio"+strconv.Itoa(pin))
		if _, err := os.Stat(pinDir); os.IsNotExist(err) {
			exportPath := filepath.Join(g.root, "export")
			if writeErr := os.WriteFile(exportPath, []byte(strconv.Itoa(pin)), 0o644); writeErr != nil {
				return fmt.Errorf("failed to export pin %d for channel %s: %w", pin, ch, writeErr)
			}
		}

		directionPath := filepath.Join(pinDir, "direction")
		if err := os.WriteFile(directionPath, []byte("out"), 0o644); err != nil {
			return fmt.Errorf("failed to set pin %d direction for channel %s: %w", pin, ch, err)
		}
	}
	return nil
}

// Switch implements Switcher for the mapped channels.
func (g *GPIO) Switch(ch Channel, on bool) error {
	pin, ok := g.pins[ch]
	if !ok {
		return fmt.Errorf("channel %q has no GPIO pin assigned", ch)
	}

	valuePath := filepath.Join(g.root, "gpio"+strconv.Itoa(pin), "value")
	value := "0"
	if on {
		value = "1"
	}

	if err := os.WriteFile(valuePath, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to set pin %d for channel %s: %w", pin, ch, err)
	}
	return nil
}

// Pins returns the channels that have a pin assigned.
func (g *GPIO) Pins() []Channel {
	channels := make([]Channel, 0, len(g.pins))
	for ch := range g.pins {
		channels = append(channels, ch)
	}
	return channels
}
