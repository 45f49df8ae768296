package capture

import (
	"context"
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/light"
)

// simReferenceExposure is the exposure at which the simulated scene
// renders its base reflectances unscaled.
const simReferenceExposure = 10 * time.Millisecond

type simColor struct {
	r, g, b float64
}

// Base reflectances (0..255 at reference exposure, gain 1) for the plant
// blob and the soil background under each channel. NIR energy shows up
// mostly in the red component, matching a NoIR sensor without an IR-cut
// filter.
var simPalette = map[light.Channel]struct{ plant, soil simColor }{
	light.White:  {plant: simColor{40, 140, 60}, soil: simColor{110, 90, 80}},
	light.Red:    {plant: simColor{35, 5, 3}, soil: simColor{70, 8, 5}},
	light.NIR:    {plant: simColor{210, 190, 180}, soil: simColor{90, 85, 80}},
	light.Growth: {plant: simColor{80, 60, 120}, soil: simColor{95, 70, 110}},
}

// simDarkColor approximates ambient leakage with all lights off.
var simDarkColor = simColor{6, 5, 5}

// Sim is a deterministic synthetic camera: a centered circular plant blob
// on a soil background, responding linearly to exposure and gain. It
// backs the "sim" driver configuration and the calibration and
// sequencing tests.
type Sim struct {
	id  string
	lit map[light.Channel]bool
}

// NewSim creates a simulated camera. The Switcher it exposes must be
// wired into the rail so captures see the currently lit channel.
func NewSim() *Sim {
	return &Sim{
		id:  "simulated-kit-cam",
		lit: make(map[light.Channel]bool),
	}
}

// Switch implements light.Switcher; the sim tracks lit channels so its
// frames reflect the rail state like a real darkbox would.
func (s *Sim) Switch(ch light.Channel, on bool) error {
	s.lit[ch] = on
	return nil
}

// ID returns the simulated camera identifier.
func (s *Sim) ID() string { return s.id }

// Close implements Driver.
func (s *Sim) Close() error { return nil }

// Capture renders the scene under the currently lit channel.
func (s *Sim) Capture(_ context.Context, req Request) (*Frame, error) {
	width, height := req.Width, req.Height
	if width <= 0 {
		width = 64
	}
	if height <= 0 {
		height = 48
	}

	frame := NewFrame(width, height, req.Channel)
	frame.Settings = req.Settings

	scale := 1.0
	if req.Settings.Exposure > 0 {
		scale = float64(req.Settings.Exposure) / float64(simReferenceExposure)
	}
	if req.Settings.Gain > 0 {
		scale *= req.Settings.Gain
	}
	awbRed := req.Settings.AWBRed
	if awbRed <= 0 {
		awbRed = 1
	}
	awbBlue := req.Settings.AWBBlue
	if awbBlue <= 0 {
		awbBlue = 1
	}

	palette, haveLight := s.litPalette()

	cx, cy := width/2, height/2
	radius := min(width, height) / 4

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var base simColor
			switch {
			case !haveLight:
				base = simDarkColor
			case inCircle(x, y, cx, cy, radius):
				base = palette.plant
			default:
				base = palette.soil
			}
			frame.SetRGB(x, y,
				clamp8(base.r*scale*awbRed),
				clamp8(base.g*scale),
				clamp8(base.b*scale*awbBlue))
		}
	}
	return frame, nil
}

func (s *Sim) litPalette() (struct{ plant, soil simColor }, bool) {
	for ch, on := range s.lit {
		if !on {
			continue
		}
		if p, ok := simPalette[ch]; ok {
			return p, true
		}
		// Custom channels render like white light at half energy.
		p := simPalette[light.White]
		p.plant = simColor{p.plant.r / 2, p.plant.g / 2, p.plant.b / 2}
		p.soil = simColor{p.soil.r / 2, p.soil.g / 2, p.soil.b / 2}
		return p, true
	}
	return struct{ plant, soil simColor }{}, false
}

func inCircle(x, y, cx, cy, r int) bool {
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

var _ Driver = (*Sim)(nil)
