package calibration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/AstroPlant/astroplant-camera-module/internal/capture"
	"github.com/AstroPlant/astroplant-camera-module/internal/light"
)

// DefaultMaxAge is how long stored settings stay fresh before the next
// command triggers a gain update. Lighting drifts with LED temperature
// and age, so day-old settings get re-tuned.
const DefaultMaxAge = 24 * time.Hour

const storeVersion = 1

// channelRecord is the on-disk form of one channel's settings.
type channelRecord struct {
	ExposureUS int64   `toml:"exposure_us" json:"exposure_us"`
	Gain       float64 `toml:"gain" json:"gain"`
	AWBRed     float64 `toml:"awb_red" json:"awb_red"`
	AWBBlue    float64 `toml:"awb_blue" json:"awb_blue"`
}

// fileRecord is the complete settings file for TOML marshaling.
type fileRecord struct {
	Version      int                      `toml:"version" json:"version"`
	CameraID     string                   `toml:"camera_id" json:"camera_id"`
	CalibratedAt time.Time                `toml:"calibrated_at" json:"calibrated_at"`
	Converged    bool                     `toml:"converged" json:"converged"`
	Channels     map[string]channelRecord `toml:"channels" json:"channels"`
}

// Stored is a loaded settings file.
type Stored struct {
	CameraID     string
	CalibratedAt time.Time
	Converged    bool
	Settings     capture.SettingsMap
}

// Store persists calibration results as a TOML file.
type Store struct {
	path string
}

// NewStore creates a store at the given path.
func NewStore(path string) *Store {
	if path == "" {
		path = "calibration.toml"
	}
	return &Store{path: path}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file. A missing file is not an error; neither
// is a file written by a different camera, since its settings would not
// transfer. Both cases return nil.
func (s *Store) Load(cameraID string) (*Stored, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var record fileRecord
	if unmarshalErr := toml.Unmarshal(data, &record); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse calibration file: %w", unmarshalErr)
	}
	if record.CameraID != cameraID {
		return nil, nil
	}

	stored := &Stored{
		CameraID:     record.CameraID,
		CalibratedAt: record.CalibratedAt,
		Converged:    record.Converged,
		Settings:     make(capture.SettingsMap, len(record.Channels)),
	}
	for name, cr := range record.Channels {
		stored.Settings[light.Channel(name)] = capture.Settings{
			Exposure: time.Duration(cr.ExposureUS) * time.Microsecond,
			Gain:     cr.Gain,
			AWBRed:   cr.AWBRed,
			AWBBlue:  cr.AWBBlue,
		}
	}
	return stored, nil
}

// Save writes the settings file, creating the directory if needed. The
// write goes through a temp file and a rename so a concurrent reader
// never sees a half-written file.
func (s *Store) Save(stored *Stored) error {
	record := fileRecord{
		Version:      storeVersion,
		CameraID:     stored.CameraID,
		CalibratedAt: stored.CalibratedAt,
		Converged:    stored.Converged,
		Channels:     make(map[string]channelRecord, len(stored.Settings)),
	}
	for ch, cs := range stored.Settings {
		record.Channels[string(ch)] = channelRecord{
			ExposureUS: cs.Exposure.Microseconds(),
			Gain:       cs.Gain,
			AWBRed:     cs.AWBRed,
			AWBBlue:    cs.AWBBlue,
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create calibration directory: %w", err)
	}

	data, err := toml.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration file: %w", err)
	}

	tmp := s.path + ".tmp"
	if writeErr := os.WriteFile(tmp, data, 0o644); writeErr != nil {
		return fmt.Errorf("failed to write calibration file: %w", writeErr)
	}
	if renameErr := os.Rename(tmp, s.path); renameErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace calibration file: %w", renameErr)
	}
	return nil
}
