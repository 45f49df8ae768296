// Package storage persists captured and derived photos to the kit
// filesystem, where the collector picks them up by path.
package storage

import (
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AstroPlant/astroplant-camera-module/internal/capture"
)

// DefaultDir is where photos land unless configured otherwise.
const DefaultDir = "img"

// Photos writes frames as PNG files named <stamp>-<kind>.png.
type Photos struct {
	dir    string
	logger *slog.Logger
}

// NewPhotos creates a photo store rooted at dir.
func NewPhotos(dir string, logger *slog.Logger) *Photos {
	if dir == "" {
		dir = DefaultDir
	}
	return &Photos{dir: dir, logger: logger}
}

// Dir returns the storage root.
func (p *Photos) Dir() string {
	return p.dir
}

// Save encodes the frame as PNG under the storage root and returns the
// written path. The stamp is the already formatted record timestamp so
// file names and result records always agree.
func (p *Photos) Save(frame *capture.Frame, kind, stamp string) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create photo directory: %w", err)
	}

	path := filepath.Join(p.dir, fmt.Sprintf("%s-%s.png", stamp, kind))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, frame.ToImage()); err != nil {
		return "", fmt.Errorf("failed to encode photo: %w", err)
	}

	p.logger.Debug("Photo stored", "path", path, "kind", kind,
		"width", frame.Width, "height", frame.Height)
	return path, nil
}
