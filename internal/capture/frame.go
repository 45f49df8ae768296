package capture

import (
	"fmt"
	"image"
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/light"
)

// Frame is a raw capture: a packed RGB buffer tagged with the channel it
// was taken under, the capture time, and the settings used. Frames are
// in-memory only; persistence is a collaborator concern.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8 // RGB, 3 bytes per pixel, row-major

	Channel  light.Channel
	Taken    time.Time
	Settings Settings
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int, ch light.Channel) *Frame {
	return &Frame{
		Width:   width,
		Height:  height,
		Pix:     make([]uint8, width*height*3),
		Channel: ch,
		Taken:   time.Now(),
	}
}

// At returns the pixel components at (x, y).
func (f *Frame) At(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// SetRGB sets the pixel components at (x, y).
func (f *Frame) SetRGB(x, y int, r, g, b uint8) {
	i := (y*f.Width + x) * 3
	f.Pix[i] = r
	f.Pix[i+1] = g
	f.Pix[i+2] = b
}

// MeanRGB computes per-component means over the half-open region
// [x0,x1) x [y0,y1).
func (f *Frame) MeanRGB(x0, y0, x1, y1 int) (r, g, b float64) {
	var sr, sg, sb float64
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			pr, pg, pb := f.At(x, y)
			sr += float64(pr)
			sg += float64(pg)
			sb += float64(pb)
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return sr / float64(n), sg / float64(n), sb / float64(n)
}

// Center returns a centered region covering the given fraction of each
// dimension. Calibration samples the scene center to avoid vignetting.
func (f *Frame) Center(frac float64) (x0, y0, x1, y1 int) {
	if frac <= 0 || frac > 1 {
		frac = 1
	}
	w := int(float64(f.Width) * frac)
	h := int(float64(f.Height) * frac)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x0 = (f.Width - w) / 2
	y0 = (f.Height - h) / 2
	return x0, y0, x0 + w, y0 + h
}

// Luminance returns the mean of (r+g+b)/3 over the whole frame, the
// brightness statistic calibration converges on.
func (f *Frame) Luminance() float64 {
	r, g, b := f.MeanRGB(0, 0, f.Width, f.Height)
	return (r + g + b) / 3
}

// Subtract returns a new frame with dark subtracted per component,
// saturating at zero. The result keeps the receiver's tags. Used for
// ambient-light removal: a lit frame minus an immediately following
// lights-off frame.
func (f *Frame) Subtract(dark *Frame) (*Frame, error) {
	if dark.Width != f.Width || dark.Height != f.Height {
		return nil, fmt.Errorf("frame size mismatch: %dx%d vs %dx%d",
			f.Width, f.Height, dark.Width, dark.Height)
	}

	out := &Frame{
		Width:    f.Width,
		Height:   f.Height,
		Pix:      make([]uint8, len(f.Pix)),
		Channel:  f.Channel,
		Taken:    f.Taken,
		Settings: f.Settings,
	}
	for i := range f.Pix {
		if f.Pix[i] > dark.Pix[i] {
			out.Pix[i] = f.Pix[i] - dark.Pix[i]
		}
	}
	return out, nil
}

// ToImage converts the frame to a stdlib RGBA image for encoding.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := f.At(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i] = r
			img.Pix[i+1] = g
			img.Pix[i+2] = b
			img.Pix[i+3] = 0xff
		}
	}
	return img
}

// FromImage converts a decoded image into a frame tagged with ch.
func FromImage(img image.Image, ch light.Channel) *Frame {
	bounds := img.Bounds()
	f := NewFrame(bounds.Dx(), bounds.Dy(), ch)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			f.SetRGB(x-bounds.Min.X, y-bounds.Min.Y, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return f
}
