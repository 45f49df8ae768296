// Package camera is the command engine: it owns the camera state
// machine, dispatches commands to the light rail, capture driver,
// calibration engine and sequencer, and shapes every outcome into a
// result record.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/calibration"
	"github.com/AstroPlant/astroplant-camera-module/internal/capture"
	"github.com/AstroPlant/astroplant-camera-module/internal/events"
	"github.com/AstroPlant/astroplant-camera-module/internal/light"
	"github.com/AstroPlant/astroplant-camera-module/internal/metrics"
	"github.com/AstroPlant/astroplant-camera-module/internal/ndvi"
	"github.com/AstroPlant/astroplant-camera-module/internal/sequence"
	"github.com/AstroPlant/astroplant-camera-module/internal/storage"
)

// Config wires a Camera from its collaborators.
type Config struct {
	Set       *light.Set
	Rail      *light.Rail
	Driver    capture.Driver
	Engine    *calibration.Engine
	Sequencer *sequence.Sequencer
	Photos    *storage.Photos

	// Store persists calibration between restarts. Nil disables
	// persistence; the camera then starts uncalibrated every boot.
	Store *calibration.Store

	// Bus receives state, command, photo and value events. A private
	// bus is created when nil.
	Bus *events.Bus

	NDVI ndvi.Config

	// MaxSettingsAge is how old settings may get before a shot command
	// triggers a gain refresh first. Zero selects the default day.
	MaxSettingsAge time.Duration

	Logger *slog.Logger
}

// Camera serializes commands and tracks calibration state. One command
// runs at a time; a second caller gets a busy error instead of queuing.
type Camera struct {
	set       *light.Set
	rail      *light.Rail
	driver    capture.Driver
	engine    *calibration.Engine
	sequencer *sequence.Sequencer
	store     *calibration.Store
	photos    *storage.Photos
	bus       *events.Bus
	ndviCfg   ndvi.Config
	maxAge    time.Duration
	logger    *slog.Logger

	// cmdMu is held for the whole duration of one command.
	cmdMu sync.Mutex

	mu           sync.RWMutex
	state        State
	settings     capture.SettingsMap
	calibratedAt time.Time
	converged    bool
}

// New creates a camera and loads any previously stored calibration for
// this capture hardware. A corrupt or foreign settings file is logged
// and ignored rather than blocking startup.
func New(cfg Config) (*Camera, error) {
	if cfg.Set == nil || cfg.Rail == nil || cfg.Driver == nil ||
		cfg.Engine == nil || cfg.Sequencer == nil || cfg.Photos == nil || cfg.Logger == nil {
		return nil, NewError(ErrCodeConfiguration, "camera wiring incomplete", nil)
	}

	bus := cfg.Bus
	if bus == nil {
		bus = events.New()
	}
	maxAge := cfg.MaxSettingsAge
	if maxAge == 0 {
		maxAge = calibration.DefaultMaxAge
	}

	c := &Camera{
		set:       cfg.Set,
		rail:      cfg.Rail,
		driver:    cfg.Driver,
		engine:    cfg.Engine,
		sequencer: cfg.Sequencer,
		store:     cfg.Store,
		photos:    cfg.Photos,
		bus:       bus,
		ndviCfg:   cfg.NDVI,
		maxAge:    maxAge,
		logger:    cfg.Logger,
		state:     StateUncalibrated,
		settings:  make(capture.SettingsMap),
	}

	if c.store != nil {
		stored, err := c.store.Load(c.driver.ID())
		switch {
		case err != nil:
			c.logger.Warn("Failed to load stored calibration, starting uncalibrated", "error", err)
		case stored != nil:
			c.settings = stored.Settings.Clone()
			c.calibratedAt = stored.CalibratedAt
			c.converged = stored.Converged
			c.state = StateReady
			c.logger.Info("Loaded stored calibration",
				"camera", stored.CameraID,
				"channels", len(stored.Settings),
				"age", time.Since(stored.CalibratedAt).Round(time.Second))
		default:
			c.logger.Info("No stored calibration for this camera, starting uncalibrated",
				"camera", c.driver.ID())
		}
	}
	metrics.SetCameraState(string(c.state))
	return c, nil
}

// Close forces every channel dark and releases the capture hardware.
// Switch failures during teardown are logged, not returned; the driver
// handle is released regardless.
func (c *Camera) Close() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	ctx := context.Background()
	for _, ch := range c.set.Channels() {
		if err := c.rail.Set(ctx, ch, false); err != nil {
			c.logger.Warn("Failed to switch channel off during shutdown", "channel", ch, "error", err)
		}
	}
	return c.driver.Close()
}

// State reports the current lifecycle state. It never blocks on a
// running command.
func (c *Camera) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Settings returns a copy of the active per-channel settings.
func (c *Camera) Settings() capture.SettingsMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Clone()
}

// CalibrationInfo reports when the active settings were produced and
// whether every channel converged.
func (c *Camera) CalibrationInfo() (at time.Time, converged bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calibratedAt, c.converged
}

// Channels returns the configured channel set.
func (c *Camera) Channels() []light.Channel {
	return c.set.Channels()
}

// LitChannels reports the last commanded switch state of every channel.
func (c *Camera) LitChannels() map[light.Channel]bool {
	channels := c.set.Channels()
	out := make(map[light.Channel]bool, len(channels))
	for _, ch := range channels {
		out[ch] = c.rail.IsLit(ch)
	}
	return out
}

// ID returns the capture hardware identity.
func (c *Camera) ID() string {
	return c.driver.ID()
}

// ApplySettings replaces the in-memory settings wholesale, as when the
// settings file changes on disk. An uncalibrated camera becomes ready;
// a faulted one stays faulted until recalibrated.
func (c *Camera) ApplySettings(stored *calibration.Stored) {
	if stored == nil || len(stored.Settings) == 0 {
		return
	}

	c.mu.Lock()
	c.settings = stored.Settings.Clone()
	c.calibratedAt = stored.CalibratedAt
	c.converged = stored.Converged
	wasUncalibrated := c.state == StateUncalibrated
	c.mu.Unlock()

	c.logger.Info("Calibration settings applied",
		"channels", len(stored.Settings), "calibrated_at", stored.CalibratedAt)
	if wasUncalibrated {
		c.setState(StateReady)
	}
}

// Do executes one command and returns its result record. Commands are
// rejected, not queued, while another is running. Soft outcomes set
// encountered_error on the record; hard failures return an *Error and
// no record.
func (c *Camera) Do(ctx context.Context, cmd Command) (*Result, error) {
	parsed, err := ParseCommand(string(cmd))
	if err != nil {
		return nil, err
	}
	cmd = parsed

	if !c.cmdMu.TryLock() {
		return nil, NewError(ErrCodeBusy, "a command is already executing", nil)
	}
	defer c.cmdMu.Unlock()

	switch entry := c.State(); {
	case entry == StateError && cmd != CommandCalibrate:
		return nil, NewError(ErrCodeCameraFault,
			"capture hardware faulted; a successful CALIBRATE recovers it", nil)
	case entry == StateUncalibrated && cmd != CommandCalibrate:
		return nil, NewError(ErrCodeNotCalibrated, "camera has no calibrated settings", nil)
	}

	start := time.Now()
	c.logger.Info("Executing command", "command", cmd)
	events.Publish(c.bus, events.CommandStartedEvent{
		Command:   string(cmd),
		Timestamp: start.Format(time.RFC3339),
	})
	c.setState(StateBusy)

	result, err := c.execute(ctx, cmd, start)
	duration := time.Since(start)

	if err != nil {
		cerr := c.classify(err)
		if cerr.Code == ErrCodeCaptureFailed {
			c.setState(StateError)
		} else {
			c.setState(c.idleState())
		}
		metrics.CountCommand(string(cmd), "error")
		c.logger.Error("Command failed", "command", cmd, "error", cerr, "duration", duration)
		events.Publish(c.bus, events.CommandCompletedEvent{
			Command:         string(cmd),
			Success:         false,
			Error:           cerr.Error(),
			DurationSeconds: duration.Seconds(),
			Timestamp:       time.Now().Format(time.RFC3339),
		})
		return nil, cerr
	}

	c.setState(c.idleState())
	status := "ok"
	if result.EncounteredError {
		status = "soft_error"
	}
	metrics.CountCommand(string(cmd), status)
	c.logger.Info("Command completed",
		"command", cmd, "duration", duration, "encountered_error", result.EncounteredError)
	events.Publish(c.bus, events.CommandCompletedEvent{
		Command:          string(cmd),
		Success:          true,
		EncounteredError: result.EncounteredError,
		DurationSeconds:  duration.Seconds(),
		Timestamp:        time.Now().Format(time.RFC3339),
	})
	return result, nil
}

func (c *Camera) execute(ctx context.Context, cmd Command, start time.Time) (*Result, error) {
	switch cmd {
	case CommandCalibrate:
		return c.runCalibrate(ctx, start)
	case CommandUpdate:
		return c.runUpdate(ctx, start)
	}

	if err := c.refreshStale(ctx); err != nil {
		return nil, err
	}

	switch cmd {
	case CommandWhitePhoto:
		return c.runPhoto(ctx, start, light.White, KindWhite, true)
	case CommandGrowthPhoto:
		return c.runPhoto(ctx, start, light.Growth, KindGrowth, false)
	case CommandNIRPhoto:
		return c.runPhoto(ctx, start, light.NIR, KindNIR, true)
	case CommandNDVIPhoto:
		return c.runIndex(ctx, start, indexPhoto)
	case CommandLeafMask:
		return c.runIndex(ctx, start, maskPhoto)
	case CommandNDVI:
		return c.runIndex(ctx, start, valueOnly)
	}
	return nil, NewError(ErrCodeUnknownCommand, string(cmd), nil)
}

// refreshStale re-tunes gain before a shot when the active settings
// have outlived their freshness window. LED output drifts with
// temperature, so day-old settings produce off-target exposures.
func (c *Camera) refreshStale(ctx context.Context) error {
	c.mu.RLock()
	stale := time.Since(c.calibratedAt) > c.maxAge
	c.mu.RUnlock()
	if !stale {
		return nil
	}

	c.logger.Info("Settings stale, refreshing gain before shooting", "max_age", c.maxAge)
	_, err := c.runUpdate(ctx, time.Now())
	return err
}

func (c *Camera) runPhoto(ctx context.Context, start time.Time, ch light.Channel, kind string, subtract bool) (*Result, error) {
	if err := c.requireChannels(ch); err != nil {
		return nil, err
	}

	shots := []sequence.Shot{{Channel: ch, Subtract: subtract}}
	frames, err := c.sequencer.Run(ctx, shots, c.Settings())
	if err != nil {
		return nil, err
	}

	result := newResult(start)
	path, err := c.photos.Save(frames[0], kind, result.Timestamp)
	if err != nil {
		return nil, NewError(ErrCodeStorageFailed, "failed to store photo", err)
	}
	result.addPhoto(kind, path)
	c.publishPhoto(kind, path, string(ch))
	return result, nil
}

// indexProduct selects what an NDVI run produces.
type indexProduct int

const (
	valueOnly indexProduct = iota
	indexPhoto
	maskPhoto
)

func (c *Camera) runIndex(ctx context.Context, start time.Time, product indexProduct) (*Result, error) {
	if err := c.requireChannels(light.NIR, light.Red); err != nil {
		return nil, err
	}

	shots := []sequence.Shot{
		{Channel: light.NIR, Subtract: true},
		{Channel: light.Red, Subtract: true},
	}
	frames, err := c.sequencer.Run(ctx, shots, c.Settings())
	if err != nil {
		return nil, err
	}

	analysis, err := ndvi.Analyze(frames[0], frames[1], c.ndviCfg)
	if err != nil {
		return nil, err
	}
	metrics.SetNDVI(analysis.Mean, analysis.Stddev)

	result := newResult(start)
	switch product {
	case indexPhoto:
		path, saveErr := c.photos.Save(analysis.RenderIndex(), KindNDVI, result.Timestamp)
		if saveErr != nil {
			return nil, NewError(ErrCodeStorageFailed, "failed to store photo", saveErr)
		}
		result.addPhoto(KindNDVI, path)
		c.publishPhoto(KindNDVI, path, "")
	case maskPhoto:
		path, saveErr := c.photos.Save(analysis.RenderMask(), KindLeafMask, result.Timestamp)
		if saveErr != nil {
			return nil, NewError(ErrCodeStorageFailed, "failed to store photo", saveErr)
		}
		result.addPhoto(KindLeafMask, path)
		c.publishPhoto(KindLeafMask, path, "")
	case valueOnly:
		result.addValue(KindNDVI, analysis.Mean, analysis.Stddev)
		events.Publish(c.bus, events.ValueMeasuredEvent{
			Kind:      KindNDVI,
			Value:     analysis.Mean,
			Error:     analysis.Stddev,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	if analysis.Empty() {
		c.logger.Warn("No plant pixels above the index threshold",
			"threshold", c.ndviCfg.Threshold)
		result.EncounteredError = true
	}
	return result, nil
}

func (c *Camera) runCalibrate(ctx context.Context, start time.Time) (*Result, error) {
	report, err := c.engine.Calibrate(ctx, c.set)
	if err != nil {
		return nil, err
	}
	if err := c.applyReport(report); err != nil {
		return nil, err
	}

	result := newResult(start)
	result.EncounteredError = !report.Converged
	return result, nil
}

func (c *Camera) runUpdate(ctx context.Context, start time.Time) (*Result, error) {
	report, err := c.engine.Update(ctx, c.set, c.Settings())
	if err != nil {
		return nil, err
	}
	if err := c.applyReport(report); err != nil {
		return nil, err
	}

	result := newResult(start)
	result.EncounteredError = !report.Converged
	return result, nil
}

// applyReport swaps the active settings for the report's, wholesale,
// and persists them. Partial merges are never done: a calibration run
// covers every channel, so its map is the complete truth.
func (c *Camera) applyReport(report *calibration.Report) error {
	c.mu.Lock()
	c.settings = report.Settings.Clone()
	c.calibratedAt = report.CompletedAt
	c.converged = report.Converged
	c.mu.Unlock()

	if c.store != nil {
		stored := &calibration.Stored{
			CameraID:     report.CameraID,
			CalibratedAt: report.CompletedAt,
			Converged:    report.Converged,
			Settings:     report.Settings,
		}
		if err := c.store.Save(stored); err != nil {
			return NewError(ErrCodeStorageFailed, "failed to persist calibration", err)
		}
	}

	events.Publish(c.bus, events.CalibrationCompletedEvent{
		CameraID:  report.CameraID,
		Converged: report.Converged,
		Channels:  len(report.Channels),
		Timestamp: report.CompletedAt.Format(time.RFC3339),
	})
	return nil
}

// requireChannels rejects a command up front when the kit's channel
// set cannot serve it, before any light is touched.
func (c *Camera) requireChannels(channels ...light.Channel) error {
	for _, ch := range channels {
		if !c.set.Available(ch) {
			return NewError(ErrCodeChannelUnavailable,
				fmt.Sprintf("channel %s not in the configured set", ch), light.ErrChannelUnavailable)
		}
	}
	return nil
}

func (c *Camera) publishPhoto(kind, path, channel string) {
	events.Publish(c.bus, events.PhotoStoredEvent{
		Kind:      kind,
		Path:      path,
		Channel:   channel,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (c *Camera) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	metrics.SetCameraState(string(s))
	if prev == s {
		return
	}

	c.logger.Info("State changed", "previous", prev, "current", s)
	events.Publish(c.bus, events.StateChangedEvent{
		Previous:  string(prev),
		Current:   string(s),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (c *Camera) idleState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.settings) == 0 {
		return StateUncalibrated
	}
	return StateReady
}

// classify maps an underlying failure to its camera error. Anything
// already shaped as a camera error passes through.
func (c *Camera) classify(err error) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	switch {
	case errors.Is(err, light.ErrChannelUnavailable):
		return NewError(ErrCodeChannelUnavailable, "channel not in the configured set", err)
	case errors.Is(err, light.ErrNoLightControl):
		return NewError(ErrCodeNoLightControl, "kit has no light control", err)
	case errors.Is(err, sequence.ErrMissingSettings):
		return NewError(ErrCodeNotCalibrated, "channel has no calibrated settings", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrCodeCancelled, "command cancelled", err)
	default:
		return NewError(ErrCodeCaptureFailed, "capture hardware failed", err)
	}
}
