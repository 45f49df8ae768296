package light

import (
	"errors"
	"testing"
)

func TestNewSet(t *testing.T) {
	tests := []struct {
		name     string
		channels []Channel
		wantErr  error
	}{
		{
			name:     "standard rail",
			channels: []Channel{White, Red, NIR, Growth},
		},
		{
			name:     "custom channel",
			channels: []Channel{White, "uv"},
		},
		{
			name:     "empty set",
			channels: []Channel{},
			wantErr:  ErrNoChannels,
		},
		{
			name:     "nil set",
			channels: nil,
			wantErr:  ErrNoChannels,
		},
		{
			name:     "duplicate channel",
			channels: []Channel{White, Red, White},
			wantErr:  ErrDuplicateChannel,
		},
		{
			name:     "empty channel name",
			channels: []Channel{White, ""},
			wantErr:  ErrNoChannels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NewSet(tt.channels)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewSet() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSet() unexpected error: %v", err)
			}
			if got := len(set.Channels()); got != len(tt.channels) {
				t.Errorf("Channels() len = %d, want %d", got, len(tt.channels))
			}
		})
	}
}

func TestSet_Available(t *testing.T) {
	set, err := NewSet([]Channel{White, Red, NIR})
	if err != nil {
		t.Fatalf("NewSet() error: %v", err)
	}

	if !set.Available(Red) {
		t.Error("Available(Red) = false, want true")
	}
	if set.Available(Growth) {
		t.Error("Available(Growth) = true, want false")
	}
	if set.Available("uv") {
		t.Error("Available(uv) = true, want false")
	}
}

func TestSet_ChannelsOrder(t *testing.T) {
	declared := []Channel{NIR, White, Red}
	set, err := NewSet(declared)
	if err != nil {
		t.Fatalf("NewSet() error: %v", err)
	}

	got := set.Channels()
	for i, ch := range declared {
		if got[i] != ch {
			t.Errorf("Channels()[%d] = %s, want %s", i, got[i], ch)
		}
	}

	// Mutating the returned slice must not affect the registry
	got[0] = "mutated"
	if set.Channels()[0] != NIR {
		t.Error("Channels() returned the internal slice, want a copy")
	}
}
