package light

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/metrics"
)

// DefaultSettle is the minimum wait after a light switch before the rail
// reports the switch complete. Photometric stability depends on it.
const DefaultSettle = 100 * time.Millisecond

// Switcher is the integrator-supplied light-actuation capability.
// Implementations receive only channels that passed registry validation.
type Switcher func(ch Channel, on bool) error

// Rail wraps the integrator-supplied switching capability with channel
// validation, the post-switch settle delay, and bookkeeping of which
// channels are currently lit.
type Rail struct {
	set      *Set
	switcher Switcher
	settle   time.Duration
	passive  bool
	logger   *slog.Logger

	mu  sync.Mutex
	lit map[Channel]bool
}

// RailOption configures a Rail.
type RailOption func(*Rail)

// WithSettle overrides the post-switch settle delay.
func WithSettle(d time.Duration) RailOption {
	return func(r *Rail) {
		r.settle = d
	}
}

// CaptureOnly marks the kit as managing lighting externally: switch
// requests succeed without touching hardware. This is an explicit
// configuration choice, distinct from a missing switcher (which is an
// error on every call).
func CaptureOnly() RailOption {
	return func(r *Rail) {
		r.passive = true
	}
}

// NewRail creates a rail over the registered channel set. switcher may be
// nil only together with CaptureOnly.
func NewRail(set *Set, switcher Switcher, logger *slog.Logger, opts ...RailOption) *Rail {
	r := &Rail{
		set:      set,
		switcher: switcher,
		settle:   DefaultSettle,
		logger:   logger,
		lit:      make(map[Channel]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Set switches a channel and enforces the settle delay before returning.
// The delay applies to both directions: a capture taken right after an
// "off" switch needs a dark rail just as much as a lit capture needs a
// stable lamp.
func (r *Rail) Set(ctx context.Context, ch Channel, on bool) error {
	if !r.set.Available(ch) {
		return fmt.Errorf("%w: %s", ErrChannelUnavailable, ch)
	}

	if r.passive {
		r.logger.Debug("Light control passive, switch skipped", "channel", ch, "on", on)
		r.record(ch, on)
		return nil
	}

	if r.switcher == nil {
		return fmt.Errorf("%w: cannot switch %s", ErrNoLightControl, ch)
	}

	if err := r.switcher(ch, on); err != nil {
		return fmt.Errorf("switching %s: %w", ch, err)
	}
	r.record(ch, on)
	metrics.CountLightSwitch(string(ch), on)
	r.logger.Debug("Light switched", "channel", ch, "on", on, "settle", r.settle)

	select {
	case <-time.After(r.settle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsLit reports the last commanded state of a channel.
func (r *Rail) IsLit(ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lit[ch]
}

func (r *Rail) record(ch Channel, on bool) {
	r.mu.Lock()
	r.lit[ch] = on
	r.mu.Unlock()
}
