package capture

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

const defaultCaptureTimeout = 10 * time.Second

// LibcameraConfig configures the libcamera-still shell-out driver.
type LibcameraConfig struct {
	Binary   string        // capture binary, default "libcamera-still"
	CameraID string        // stable hardware identifier for settings persistence
	Timeout  time.Duration // per-capture timeout before the process is killed
}

// Libcamera captures stills by shelling out to libcamera-still with fully
// manual exposure, gain and white-balance flags. Auto algorithms are
// disabled so calibration owns the photometric response.
type Libcamera struct {
	cfg    LibcameraConfig
	logger *slog.Logger
}

// NewLibcamera creates the libcamera-still driver.
func NewLibcamera(cfg LibcameraConfig, logger *slog.Logger) *Libcamera {
	if cfg.Binary == "" {
		cfg.Binary = "libcamera-still"
	}
	if cfg.CameraID == "" {
		cfg.CameraID = "picam"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCaptureTimeout
	}
	return &Libcamera{cfg: cfg, logger: logger}
}

// ID returns the configured camera identifier.
func (l *Libcamera) ID() string { return l.cfg.CameraID }

// Close releases nothing; the capture process is per-shot.
func (l *Libcamera) Close() error { return nil }

// Capture runs one capture process and decodes the resulting PNG.
func (l *Libcamera) Capture(ctx context.Context, req Request) (*Frame, error) {
	tempDir, err := os.MkdirTemp("", "kitcam")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	defer os.RemoveAll(tempDir)

	outPath := filepath.Join(tempDir, "still.png")
	args := l.buildArgs(req, outPath)

	l.logger.Debug("Running capture", "binary", l.cfg.Binary, "channel", req.Channel, "args", args)

	cmd := exec.Command(l.cfg.Binary, args...)
	done := make(chan error, 1)
	if startErr := cmd.Start(); startErr != nil {
		return nil, fmt.Errorf("%w: starting %s: %w", ErrCapture, l.cfg.Binary, startErr)
	}
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case runErr := <-done:
		if runErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCapture, l.cfg.Binary, runErr)
		}
	case <-time.After(l.cfg.Timeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return nil, fmt.Errorf("%w: %s timed out after %s", ErrCapture, l.cfg.Binary, l.cfg.Timeout)
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return nil, ctx.Err()
	}

	file, err := os.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading capture output: %w", ErrCapture, err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding capture output: %w", ErrCapture, err)
	}

	frame := FromImage(img, req.Channel)
	frame.Taken = time.Now()
	frame.Settings = req.Settings
	return frame, nil
}

// buildArgs assembles the libcamera-still invocation for a request.
func (l *Libcamera) buildArgs(req Request, outPath string) []string {
	args := []string{
		"-n",          // no preview window
		"--immediate", // skip the preview/AE settle phase, settings are manual
		"-e", "png",
		"-t", "1",
		"--width", strconv.Itoa(req.Width),
		"--height", strconv.Itoa(req.Height),
		"--shutter", strconv.FormatInt(req.Settings.Exposure.Microseconds(), 10),
		"--gain", strconv.FormatFloat(req.Settings.Gain, 'f', 2, 64),
		"--awbgains", formatAWBGains(req.Settings),
		"-o", outPath,
	}
	return args
}

func formatAWBGains(s Settings) string {
	return strconv.FormatFloat(s.AWBRed, 'f', 3, 64) + "," + strconv.FormatFloat(s.AWBBlue, 'f', 3, 64)
}

var _ Driver = (*Libcamera)(nil)
