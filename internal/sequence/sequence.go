// Package sequence orchestrates multi-shot capture runs: lighting one
// channel at a time, keeping the growth light out of the frame, and
// removing ambient light by dark-frame subtraction.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AstroPlant/astroplant-camera-module/internal/capture"
	"github.com/AstroPlant/astroplant-camera-module/internal/light"
)

// ErrMissingSettings means a shot's channel has no calibrated settings.
var ErrMissingSettings = errors.New("sequence: no settings for channel")

// Shot is one lit capture in a run. When Subtract is set, a lights-off
// reference is taken immediately after and subtracted from the lit
// frame to remove ambient light.
type Shot struct {
	Channel  light.Channel
	Subtract bool
}

// Sequencer runs shots against the light rail and capture driver.
type Sequencer struct {
	rail   *light.Rail
	driver capture.Driver
	width  int
	height int
	logger *slog.Logger
}

// New creates a sequencer producing frames of the given size.
func New(rail *light.Rail, driver capture.Driver, width, height int, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		rail:   rail,
		driver: driver,
		width:  width,
		height: height,
		logger: logger,
	}
}

// Run executes the shots in order and returns one frame per shot.
//
// If the growth light is on when the run starts it is switched off for
// the duration and restored afterwards, so it never contaminates a
// measurement. Within the run exactly one channel is ever lit at a
// time.
func (s *Sequencer) Run(ctx context.Context, shots []Shot, settings capture.SettingsMap) ([]*capture.Frame, error) {
	if s.rail.IsLit(light.Growth) {
		s.logger.Debug("Growth light on, going dark for the run")
		if err := s.rail.Set(ctx, light.Growth, false); err != nil {
			return nil, err
		}
		defer func() {
			_ = s.rail.Set(context.WithoutCancel(ctx), light.Growth, true)
		}()
	}

	frames := make([]*capture.Frame, 0, len(shots))
	for _, shot := range shots {
		frame, err := s.take(ctx, shot, settings)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (s *Sequencer) take(ctx context.Context, shot Shot, settings capture.SettingsMap) (*capture.Frame, error) {
	cs, ok := settings[shot.Channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingSettings, shot.Channel)
	}

	if err := s.rail.Set(ctx, shot.Channel, true); err != nil {
		return nil, err
	}
	lit, capErr := s.driver.Capture(ctx, s.request(shot.Channel, cs))
	offErr := s.rail.Set(context.WithoutCancel(ctx), shot.Channel, false)
	if capErr != nil {
		return nil, capErr
	}
	if offErr != nil {
		return nil, offErr
	}

	if !shot.Subtract {
		return lit, nil
	}

	// Ambient reference with every channel dark, same settings as the
	// lit shot so the two are comparable.
	dark, err := s.driver.Capture(ctx, s.request(shot.Channel, cs))
	if err != nil {
		return nil, err
	}
	return lit.Subtract(dark)
}

func (s *Sequencer) request(ch light.Channel, cs capture.Settings) capture.Request {
	return capture.Request{
		Channel:  ch,
		Settings: cs,
		Width:    s.width,
		Height:   s.height,
	}
}
