// Package calibration tunes per-channel camera settings against the
// actual scene and persists them between restarts.
package calibration

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/capture"
	"github.com/AstroPlant/astroplant-camera-module/internal/light"
	"github.com/AstroPlant/astroplant-camera-module/internal/metrics"
)

// Tuning bounds the calibration search.
type Tuning struct {
	// TargetLow and TargetHigh delimit the acceptable center-region
	// luminance band (0..255).
	TargetLow  float64
	TargetHigh float64

	MaxIterations   int
	InitialExposure time.Duration
	MinExposure     time.Duration
	MaxExposure     time.Duration

	InitialGain float64
	MinGain     float64
	MaxGain     float64

	// WBTolerance is the maximum accepted distance between the red or
	// blue channel mean and the green mean (0..255) under white light.
	WBTolerance     float64
	WBStep          float64
	WBMaxIterations int

	// Region is the centered fraction of the frame that brightness is
	// measured over; the edges are skipped to avoid vignetting.
	Region float64

	// Capture size used while tuning. Small frames keep the loop fast.
	Width  int
	Height int
}

// DefaultTuning returns the stock search bounds.
func DefaultTuning() Tuning {
	return Tuning{
		TargetLow:       110,
		TargetHigh:      150,
		MaxIterations:   8,
		InitialExposure: 20 * time.Millisecond,
		MinExposure:     time.Millisecond,
		MaxExposure:     500 * time.Millisecond,
		InitialGain:     1.0,
		MinGain:         1.0,
		MaxGain:         16.0,
		WBTolerance:     4.0,
		WBStep:          0.025,
		WBMaxIterations: 40,
		Region:          0.5,
		Width:           640,
		Height:          480,
	}
}

// ChannelReport records the outcome of tuning a single channel.
type ChannelReport struct {
	Channel    light.Channel
	Settings   capture.Settings
	Converged  bool
	Brightness float64
	Iterations int
}

// Report is the outcome of a full calibration or update run. Converged
// is false when any channel only reached its best-observed settings;
// those settings are still usable and still recorded.
type Report struct {
	CameraID    string
	CompletedAt time.Time
	Converged   bool
	Channels    []ChannelReport
	Settings    capture.SettingsMap
}

// Engine runs the calibration loops. It drives the light rail and the
// capture driver directly; callers hold whatever exclusivity the camera
// requires.
type Engine struct {
	rail   *light.Rail
	driver capture.Driver
	tuning Tuning
	logger *slog.Logger
}

// NewEngine creates a calibration engine.
func NewEngine(rail *light.Rail, driver capture.Driver, tuning Tuning, logger *slog.Logger) *Engine {
	return &Engine{
		rail:   rail,
		driver: driver,
		tuning: tuning,
		logger: logger,
	}
}

// Calibrate tunes every channel in the set from scratch: exposure is
// converged into the target luminance band, and the white channel
// additionally gets its white-balance gains balanced. Non-convergence
// within the iteration cap is not an error; the best observed
// settings are kept and the report flags the shortfall.
func (e *Engine) Calibrate(ctx context.Context, set *light.Set) (*Report, error) {
	report := &Report{
		CameraID:  e.driver.ID(),
		Converged: true,
		Settings:  make(capture.SettingsMap),
	}

	for _, ch := range set.Channels() {
		e.logger.Info("Calibrating channel", "channel", ch)
		cr, err := e.calibrateChannel(ctx, ch)
		if err != nil {
			return nil, err
		}
		metrics.SetCalibrationOutcome(string(ch), cr.Iterations, e.bandResidual(cr.Brightness))
		report.Channels = append(report.Channels, cr)
		report.Settings[ch] = cr.Settings
		if !cr.Converged {
			report.Converged = false
		}
	}

	report.CompletedAt = time.Now()
	return report, nil
}

// Update re-tunes gain only, keeping each channel's calibrated exposure
// and white balance. It is the cheap periodic refresh between full
// calibrations. Channels missing from prev (added to the set after the
// last calibration) fall back to a full tune.
func (e *Engine) Update(ctx context.Context, set *light.Set, prev capture.SettingsMap) (*Report, error) {
	report := &Report{
		CameraID:  e.driver.ID(),
		Converged: true,
		Settings:  make(capture.SettingsMap),
	}

	for _, ch := range set.Channels() {
		var (
			cr  ChannelReport
			err error
		)
		if s, ok := prev[ch]; ok {
			e.logger.Info("Updating channel gain", "channel", ch)
			cr, err = e.updateChannel(ctx, ch, s)
		} else {
			e.logger.Info("Channel has no stored settings, calibrating", "channel", ch)
			cr, err = e.calibrateChannel(ctx, ch)
		}
		if err != nil {
			return nil, err
		}
		metrics.SetCalibrationOutcome(string(ch), cr.Iterations, e.bandResidual(cr.Brightness))
		report.Channels = append(report.Channels, cr)
		report.Settings[ch] = cr.Settings
		if !cr.Converged {
			report.Converged = false
		}
	}

	report.CompletedAt = time.Now()
	return report, nil
}

// bandResidual is the distance of a measured brightness from the target
// band, zero inside it.
func (e *Engine) bandResidual(brightness float64) float64 {
	switch {
	case brightness < e.tuning.TargetLow:
		return e.tuning.TargetLow - brightness
	case brightness > e.tuning.TargetHigh:
		return brightness - e.tuning.TargetHigh
	}
	return 0
}

func (e *Engine) calibrateChannel(ctx context.Context, ch light.Channel) (ChannelReport, error) {
	report := ChannelReport{Channel: ch}
	if err := e.rail.Set(ctx, ch, true); err != nil {
		return report, err
	}
	defer func() {
		_ = e.rail.Set(context.WithoutCancel(ctx), ch, false)
	}()

	tun := e.tuning
	target := (tun.TargetLow + tun.TargetHigh) / 2
	s := capture.Settings{
		Exposure: tun.InitialExposure,
		Gain:     tun.InitialGain,
		AWBRed:   1.0,
		AWBBlue:  1.0,
	}

	best := s
	bestDist := math.Inf(1)

	for i := 1; i <= tun.MaxIterations; i++ {
		frame, err := e.capture(ctx, ch, s)
		if err != nil {
			return report, err
		}
		lum := centerLuminance(frame, tun.Region)
		report.Iterations = i

		if d := math.Abs(lum - target); d < bestDist {
			bestDist = d
			best = s
			report.Brightness = lum
		}
		if lum >= tun.TargetLow && lum <= tun.TargetHigh {
			report.Converged = true
			break
		}

		next := nextExposure(s.Exposure, lum, target, tun)
		e.logger.Debug("Exposure step",
			"channel", ch, "brightness", lum, "exposure", s.Exposure, "next", next)
		s.Exposure = next
	}
	if !report.Converged {
		e.logger.Warn("Channel brightness did not converge, keeping best observed",
			"channel", ch, "brightness", report.Brightness, "iterations", report.Iterations)
	}
	report.Settings = best

	// White balance only means anything under broadband light; the
	// monochromatic channels keep neutral gains.
	if ch == light.White {
		balanced, ok, err := e.balanceWhite(ctx, ch, report.Settings)
		if err != nil {
			return report, err
		}
		report.Settings = balanced
		if !ok {
			report.Converged = false
		}
	}
	return report, nil
}

func (e *Engine) updateChannel(ctx context.Context, ch light.Channel, prev capture.Settings) (ChannelReport, error) {
	report := ChannelReport{Channel: ch}
	if err := e.rail.Set(ctx, ch, true); err != nil {
		return report, err
	}
	defer func() {
		_ = e.rail.Set(context.WithoutCancel(ctx), ch, false)
	}()

	tun := e.tuning
	target := (tun.TargetLow + tun.TargetHigh) / 2
	s := prev

	best := s
	bestDist := math.Inf(1)

	for i := 1; i <= tun.MaxIterations; i++ {
		frame, err := e.capture(ctx, ch, s)
		if err != nil {
			return report, err
		}
		lum := centerLuminance(frame, tun.Region)
		report.Iterations = i

		if d := math.Abs(lum - target); d < bestDist {
			bestDist = d
			best = s
			report.Brightness = lum
		}
		if lum >= tun.TargetLow && lum <= tun.TargetHigh {
			report.Converged = true
			break
		}

		if lum <= 1 {
			s.Gain *= 2
		} else {
			s.Gain = s.Gain * target / lum
		}
		if s.Gain < tun.MinGain {
			s.Gain = tun.MinGain
		}
		if s.Gain > tun.MaxGain {
			s.Gain = tun.MaxGain
		}
	}
	if !report.Converged {
		e.logger.Warn("Gain update did not converge, keeping best observed",
			"channel", ch, "brightness", report.Brightness)
	}
	report.Settings = best
	return report, nil
}

// balanceWhite steps the red and blue white-balance gains until both
// channel means sit within tolerance of the green mean.
func (e *Engine) balanceWhite(ctx context.Context, ch light.Channel, s capture.Settings) (capture.Settings, bool, error) {
	tun := e.tuning

	best := s
	bestSkew := math.Inf(1)

	for i := 1; i <= tun.WBMaxIterations; i++ {
		frame, err := e.capture(ctx, ch, s)
		if err != nil {
			return best, false, err
		}
		x0, y0, x1, y1 := frame.Center(tun.Region)
		r, g, b := frame.MeanRGB(x0, y0, x1, y1)

		redSkew := r - g
		blueSkew := b - g
		skew := math.Max(math.Abs(redSkew), math.Abs(blueSkew))
		if skew < bestSkew {
			bestSkew = skew
			best = s
		}
		if math.Abs(redSkew) <= tun.WBTolerance && math.Abs(blueSkew) <= tun.WBTolerance {
			e.logger.Debug("White balance converged",
				"awb_red", s.AWBRed, "awb_blue", s.AWBBlue, "iterations", i)
			return s, true, nil
		}

		if math.Abs(redSkew) > tun.WBTolerance {
			if redSkew > 0 {
				s.AWBRed -= tun.WBStep
			} else {
				s.AWBRed += tun.WBStep
			}
		}
		if math.Abs(blueSkew) > tun.WBTolerance {
			if blueSkew > 0 {
				s.AWBBlue -= tun.WBStep
			} else {
				s.AWBBlue += tun.WBStep
			}
		}
	}

	e.logger.Warn("White balance did not converge, keeping best observed",
		"awb_red", best.AWBRed, "awb_blue", best.AWBBlue, "skew", bestSkew)
	return best, false, nil
}

func (e *Engine) capture(ctx context.Context, ch light.Channel, s capture.Settings) (*capture.Frame, error) {
	return e.driver.Capture(ctx, capture.Request{
		Channel:  ch,
		Settings: s,
		Width:    e.tuning.Width,
		Height:   e.tuning.Height,
	})
}

func centerLuminance(frame *capture.Frame, region float64) float64 {
	x0, y0, x1, y1 := frame.Center(region)
	r, g, b := frame.MeanRGB(x0, y0, x1, y1)
	return (r + g + b) / 3
}

// nextExposure scales exposure proportionally toward the target
// brightness, assuming a roughly linear sensor response.
func nextExposure(exp time.Duration, measured, target float64, tun Tuning) time.Duration {
	var next time.Duration
	if measured <= 1 {
		next = exp * 2
	} else {
		next = time.Duration(float64(exp) * target / measured)
	}
	if next < tun.MinExposure {
		next = tun.MinExposure
	}
	if next > tun.MaxExposure {
		next = tun.MaxExposure
	}
	return next
}
