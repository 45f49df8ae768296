package led

// Controller abstracts status LED hardware across kit boards.
// Implementations handle board-specific LED naming and trigger support.
type Controller interface {
	// Set drives one LED. name is the board-specific LED identifier,
	// enabled switches it on or off, and pattern selects a blink
	// pattern ("solid", "blink", "heartbeat"); empty string leaves
	// the pattern unchanged.
	Set(name string, enabled bool, pattern string) error

	// Available returns the LED names this controller can drive
	Available() []string

	// Patterns returns the patterns this controller supports
	Patterns() []string
}
