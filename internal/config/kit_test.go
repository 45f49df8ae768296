package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/light"
)

func TestLoadKitDefaults(t *testing.T) {
	kit, err := LoadKit(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadKit: %v", err)
	}

	if kit.Camera.Driver != "sim" {
		t.Errorf("default driver = %q, want sim", kit.Camera.Driver)
	}
	if len(kit.Light.Channels) != 4 {
		t.Errorf("default channels = %v, want 4 entries", kit.Light.Channels)
	}
	if kit.Settle() != light.DefaultSettle {
		t.Errorf("default settle = %v, want %v", kit.Settle(), light.DefaultSettle)
	}
	if kit.MaxSettingsAge() != 24*time.Hour {
		t.Errorf("default max age = %v, want 24h", kit.MaxSettingsAge())
	}
}

func TestLoadKitOverlay(t *testing.T) {
	content := `
[camera]
driver = "libcamera"
device = "imx219"
width = 3280
height = 2464

[light]
control = "gpio"
channels = ["white", "nir"]
settle_ms = 250

[light.pins]
white = 5
nir = 6

[calibration]
target_low = 100
target_high = 160
max_age_hours = 6

[telemetry]
enabled = true
broker = "tcp://broker.local:1883"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	kit, err := LoadKit(path)
	if err != nil {
		t.Fatalf("LoadKit: %v", err)
	}

	if kit.Camera.Driver != "libcamera" || kit.Camera.Width != 3280 {
		t.Errorf("camera section = %+v", kit.Camera)
	}
	if kit.Settle() != 250*time.Millisecond {
		t.Errorf("settle = %v, want 250ms", kit.Settle())
	}
	if kit.MaxSettingsAge() != 6*time.Hour {
		t.Errorf("max age = %v, want 6h", kit.MaxSettingsAge())
	}

	tun := kit.Tuning()
	if tun.TargetLow != 100 || tun.TargetHigh != 160 {
		t.Errorf("tuning band = [%v, %v], want [100, 160]", tun.TargetLow, tun.TargetHigh)
	}
	// Fields the file does not set keep their defaults.
	if tun.WBStep != 0.025 {
		t.Errorf("wb step = %v, want default 0.025", tun.WBStep)
	}

	set, err := kit.ChannelSet()
	if err != nil {
		t.Fatalf("ChannelSet: %v", err)
	}
	if !set.Available(light.NIR) || set.Available(light.Growth) {
		t.Errorf("channel set = %v", set.Channels())
	}

	pins := kit.GPIOPins()
	if pins[light.White] != 5 || pins[light.NIR] != 6 {
		t.Errorf("pins = %v", pins)
	}

	if !kit.Telemetry.Enabled || kit.Telemetry.Broker != "tcp://broker.local:1883" {
		t.Errorf("telemetry section = %+v", kit.Telemetry)
	}
	// Unset telemetry fields keep defaults.
	if kit.Telemetry.TopicPrefix != "astroplant/camera" {
		t.Errorf("topic prefix = %q", kit.Telemetry.TopicPrefix)
	}
}

func TestLoadKitRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown driver", "[camera]\ndriver = \"gphoto\"\n"},
		{"unknown control", "[light]\ncontrol = \"dmx\"\n"},
		{"no channels", "[light]\ncontrol = \"external\"\nchannels = []\n"},
		{"missing pin", "[camera]\ndriver = \"libcamera\"\n[light]\ncontrol = \"gpio\"\nchannels = [\"blue\"]\n"},
		{"empty band", "[calibration]\ntarget_low = 150\ntarget_high = 110\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := LoadKit(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
