package config

import (
	"fmt"
	"os"
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/calibration"
	"github.com/AstroPlant/astroplant-camera-module/internal/light"
	"github.com/pelletier/go-toml/v2"
)

// CameraSection selects and sizes the capture driver.
type CameraSection struct {
	// Driver is "libcamera" for real hardware or "sim" for the synthetic
	// test camera.
	Driver string `toml:"driver" json:"driver"`
	Device string `toml:"device,omitempty" json:"device,omitempty"`
	Width  int    `toml:"width" json:"width"`
	Height int    `toml:"height" json:"height"`
	// Retries is how often a failed capture is retried before the
	// command fails.
	Retries int `toml:"retries" json:"retries"`
}

// LightSection describes the kit's lighting rig.
type LightSection struct {
	// Control is "gpio" for sysfs pin switching, "external" when another
	// system runs the lights (switch requests become no-ops), or "none"
	// when the kit has no switchable lighting at all.
	Control string `toml:"control" json:"control"`

	// Channels lists the installed channels in calibration order.
	Channels []string `toml:"channels" json:"channels"`

	// Pins maps channel name to GPIO pin number, required for "gpio".
	Pins map[string]int `toml:"pins,omitempty" json:"pins,omitempty"`

	SettleMS int `toml:"settle_ms" json:"settle_ms"`
}

// CalibrationSection bounds the calibration search and names the
// settings file.
type CalibrationSection struct {
	File        string  `toml:"file" json:"file"`
	MaxAgeHours int     `toml:"max_age_hours" json:"max_age_hours"`
	TargetLow   float64 `toml:"target_low" json:"target_low"`
	TargetHigh  float64 `toml:"target_high" json:"target_high"`

	MaxIterations   int     `toml:"max_iterations" json:"max_iterations"`
	WBTolerance     float64 `toml:"wb_tolerance" json:"wb_tolerance"`
	WBStep          float64 `toml:"wb_step" json:"wb_step"`
	WBMaxIterations int     `toml:"wb_max_iterations" json:"wb_max_iterations"`
	Region          float64 `toml:"region" json:"region"`
}

// StorageSection locates the photo directory.
type StorageSection struct {
	PhotoDir string `toml:"photo_dir" json:"photo_dir"`
}

// TelemetrySection configures the MQTT publisher. Disabled by default;
// a kit without a broker runs fine without it.
type TelemetrySection struct {
	Enabled       bool   `toml:"enabled" json:"enabled"`
	Broker        string `toml:"broker" json:"broker"`
	ClientID      string `toml:"client_id" json:"client_id"`
	TopicPrefix   string `toml:"topic_prefix" json:"topic_prefix"`
	Username      string `toml:"username,omitempty" json:"username,omitempty"`
	Password      string `toml:"password,omitempty" json:"-"`
	PublishPhotos bool   `toml:"publish_photos" json:"publish_photos"`
}

// Kit is the complete rig configuration: capture hardware, lighting,
// calibration bounds, storage and telemetry. It lives in the same TOML
// file as the process options, under its own tables.
type Kit struct {
	Camera      CameraSection      `toml:"camera" json:"camera"`
	Light       LightSection       `toml:"light" json:"light"`
	Calibration CalibrationSection `toml:"calibration" json:"calibration"`
	Storage     StorageSection     `toml:"storage" json:"storage"`
	Telemetry   TelemetrySection   `toml:"telemetry" json:"telemetry"`
}

// DefaultKit returns the stock configuration: a simulated camera with
// the full four-channel rig, so a bare checkout runs end to end.
func DefaultKit() *Kit {
	tun := calibration.DefaultTuning()
	return &Kit{
		Camera: CameraSection{
			Driver:  "sim",
			Width:   1920,
			Height:  1080,
			Retries: 1,
		},
		Light: LightSection{
			Control:  "gpio",
			Channels: []string{"white", "red", "nir", "growth"},
			Pins: map[string]int{
				"white":  17,
				"red":    27,
				"nir":    22,
				"growth": 23,
			},
			SettleMS: int(light.DefaultSettle / time.Millisecond),
		},
		Calibration: CalibrationSection{
			File:            "calibration.toml",
			MaxAgeHours:     int(calibration.DefaultMaxAge / time.Hour),
			TargetLow:       tun.TargetLow,
			TargetHigh:      tun.TargetHigh,
			MaxIterations:   tun.MaxIterations,
			WBTolerance:     tun.WBTolerance,
			WBStep:          tun.WBStep,
			WBMaxIterations: tun.WBMaxIterations,
			Region:          tun.Region,
		},
		Storage: StorageSection{
			PhotoDir: "img",
		},
		Telemetry: TelemetrySection{
			Broker:      "tcp://localhost:1883",
			ClientID:    "astroplant-camera",
			TopicPrefix: "astroplant/camera",
		},
	}
}

// LoadKit reads the kit tables from a TOML file, overlaying the
// defaults. A missing file yields the defaults; a malformed one is an
// error.
func LoadKit(path string) (*Kit, error) {
	kit := DefaultKit()
	if path == "" {
		return kit, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kit, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read kit config: %w", err)
	}
	if err := toml.Unmarshal(data, kit); err != nil {
		return nil, fmt.Errorf("failed to parse kit config: %w", err)
	}

	if err := kit.Validate(); err != nil {
		return nil, err
	}
	return kit, nil
}

// Validate rejects configurations the rig cannot run with.
func (k *Kit) Validate() error {
	switch k.Camera.Driver {
	case "libcamera", "sim":
	default:
		return fmt.Errorf("unknown camera driver %q", k.Camera.Driver)
	}
	if k.Camera.Width <= 0 || k.Camera.Height <= 0 {
		return fmt.Errorf("invalid capture size %dx%d", k.Camera.Width, k.Camera.Height)
	}

	switch k.Light.Control {
	case "gpio", "external", "none":
	default:
		return fmt.Errorf("unknown light control %q", k.Light.Control)
	}
	if len(k.Light.Channels) == 0 {
		return fmt.Errorf("no light channels configured")
	}
	for _, name := range k.Light.Channels {
		if name == "" {
			return fmt.Errorf("empty light channel name")
		}
		if k.Light.Control == "gpio" && k.Camera.Driver != "sim" {
			if _, ok := k.Light.Pins[name]; !ok {
				return fmt.Errorf("channel %q has no GPIO pin", name)
			}
		}
	}

	if k.Calibration.TargetLow >= k.Calibration.TargetHigh {
		return fmt.Errorf("calibration target band [%v, %v] is empty",
			k.Calibration.TargetLow, k.Calibration.TargetHigh)
	}
	return nil
}

// ChannelSet builds the light channel set in configured order.
func (k *Kit) ChannelSet() (*light.Set, error) {
	channels := make([]light.Channel, len(k.Light.Channels))
	for i, name := range k.Light.Channels {
		channels[i] = light.Channel(name)
	}
	return light.NewSet(channels)
}

// GPIOPins maps configured channels to their pins.
func (k *Kit) GPIOPins() map[light.Channel]int {
	pins := make(map[light.Channel]int, len(k.Light.Pins))
	for name, pin := range k.Light.Pins {
		pins[light.Channel(name)] = pin
	}
	return pins
}

// Settle is the post-switch settle delay.
func (k *Kit) Settle() time.Duration {
	if k.Light.SettleMS <= 0 {
		return light.DefaultSettle
	}
	return time.Duration(k.Light.SettleMS) * time.Millisecond
}

// MaxSettingsAge is how old stored settings may get before a shot
// triggers a gain refresh.
func (k *Kit) MaxSettingsAge() time.Duration {
	if k.Calibration.MaxAgeHours <= 0 {
		return calibration.DefaultMaxAge
	}
	return time.Duration(k.Calibration.MaxAgeHours) * time.Hour
}

// Tuning converts the calibration section into engine search bounds,
// filling unset values from the defaults.
func (k *Kit) Tuning() calibration.Tuning {
	tun := calibration.DefaultTuning()
	c := k.Calibration
	if c.TargetLow > 0 {
		tun.TargetLow = c.TargetLow
	}
	if c.TargetHigh > 0 {
		tun.TargetHigh = c.TargetHigh
	}
	if c.MaxIterations > 0 {
		tun.MaxIterations = c.MaxIterations
	}
	if c.WBTolerance > 0 {
		tun.WBTolerance = c.WBTolerance
	}
	if c.WBStep > 0 {
		tun.WBStep = c.WBStep
	}
	if c.WBMaxIterations > 0 {
		tun.WBMaxIterations = c.WBMaxIterations
	}
	if c.Region > 0 {
		tun.Region = c.Region
	}
	return tun
}
