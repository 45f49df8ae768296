package capture

import (
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/light"
)

// Settings is the per-channel camera configuration determined by
// calibration and consumed read-only by the capture pipeline.
type Settings struct {
	Exposure time.Duration // sensor integration time
	Gain     float64       // combined analog + digital gain
	AWBRed   float64       // white-balance red gain
	AWBBlue  float64       // white-balance blue gain
}

// SettingsMap maps each calibrated channel to its settings. Calibration
// publishes a fresh map on every run; holders of an older map keep a
// complete, consistent snapshot.
type SettingsMap map[light.Channel]Settings

// Clone returns an independent copy of the map.
func (m SettingsMap) Clone() SettingsMap {
	if m == nil {
		return nil
	}
	out := make(SettingsMap, len(m))
	for ch, s := range m {
		out[ch] = s
	}
	return out
}
