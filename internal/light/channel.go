package light

import (
	"errors"
	"fmt"
)

// Channel identifies an independently switchable light source on the kit.
// The well-known channels cover the standard astroplant light rail; kits
// may declare additional custom channels at registration time.
type Channel string

// Well-known channels.
const (
	White  Channel = "white"  // broadband white measurement light
	Red    Channel = "red"    // visible red band for the vegetation index
	NIR    Channel = "nir"    // near-infrared band for the vegetation index
	Growth Channel = "growth" // ambient growth lighting
)

// Sentinel errors for channel registration and switching.
var (
	ErrNoChannels         = errors.New("no light channels registered")
	ErrDuplicateChannel   = errors.New("duplicate light channel")
	ErrChannelUnavailable = errors.New("light channel not available")
	ErrNoLightControl     = errors.New("light control capability not configured")
)

// Set is the registry of channels the current hardware instance actually
// exposes. Every channel referenced by a command must be a member.
type Set struct {
	channels []Channel
	index    map[Channel]bool
}

// NewSet validates and registers the given channels.
// Fails if the set is empty or contains duplicate entries.
func NewSet(channels []Channel) (*Set, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}

	s := &Set{
		channels: make([]Channel, 0, len(channels)),
		index:    make(map[Channel]bool, len(channels)),
	}
	for _, ch := range channels {
		if ch == "" {
			return nil, fmt.Errorf("%w: empty channel name", ErrNoChannels)
		}
		if s.index[ch] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChannel, ch)
		}
		s.index[ch] = true
		s.channels = append(s.channels, ch)
	}
	return s, nil
}

// Available reports whether the channel is a member of the set.
func (s *Set) Available(ch Channel) bool {
	return s.index[ch]
}

// Channels returns the registered channels in registration order.
func (s *Set) Channels() []Channel {
	out := make([]Channel, len(s.channels))
	copy(out, s.channels)
	return out
}
