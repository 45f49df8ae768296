package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AstroPlant/astroplant-camera-module/internal/light"
	"github.com/AstroPlant/astroplant-camera-module/internal/metrics"
)

// ErrCapture marks a hardware/driver capture failure.
var ErrCapture = errors.New("capture failed")

// Request describes a single capture.
type Request struct {
	Channel  light.Channel
	Settings Settings
	Width    int
	Height   int
}

// Driver abstracts the camera hardware behind a uniform
// capture-with-settings operation.
type Driver interface {
	// ID identifies the physical camera; persisted calibration settings
	// are keyed by it.
	ID() string

	// Capture takes a single frame with the requested settings.
	Capture(ctx context.Context, req Request) (*Frame, error)

	// Close releases the camera handle.
	Close() error
}

// retryDriver retries transient capture failures a bounded number of
// times before classifying the failure as a CaptureError.
type retryDriver struct {
	inner   Driver
	retries int
	logger  *slog.Logger
}

// WithRetry wraps a driver with bounded retries. Context cancellation is
// never retried.
func WithRetry(d Driver, retries int, logger *slog.Logger) Driver {
	if retries < 0 {
		retries = 0
	}
	return &retryDriver{inner: d, retries: retries, logger: logger}
}

func (r *retryDriver) ID() string { return r.inner.ID() }

func (r *retryDriver) Close() error { return r.inner.Close() }

func (r *retryDriver) Capture(ctx context.Context, req Request) (*Frame, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		frame, err := r.inner.Capture(ctx, req)
		if err == nil {
			metrics.CountCapture(string(req.Channel))
			return frame, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < r.retries {
			metrics.CountCaptureRetry()
			r.logger.Warn("Capture failed, retrying",
				"channel", req.Channel,
				"attempt", attempt+1,
				"error", err)
		}
	}

	if errors.Is(lastErr, ErrCapture) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %w", ErrCapture, lastErr)
}
