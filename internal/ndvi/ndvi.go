// Package ndvi derives the normalized difference vegetation index from
// paired near-infrared and red captures.
package ndvi

import (
	"errors"
	"fmt"
	"math"

	"github.com/AstroPlant/astroplant-camera-module/internal/capture"
)

// DefaultThreshold is the NDVI floor a masked pixel must exceed to enter
// the averaged population; it rejects soil and other weak reflectors.
const DefaultThreshold = 0.2

// DefaultMinPlantNIR is the minimum NIR reflectance (0..1) for the stock
// leaf classifier. Plant tissue reflects NIR strongly; dark background
// does not.
const DefaultMinPlantNIR = 0.1

var errNilFrame = errors.New("ndvi: nil input frame")

// Classifier decides whether a pixel is plant material given its NIR and
// red reflectances (both normalized to 0..1). Kits with unusual scenes
// can swap in their own.
type Classifier func(nir, red float64) bool

// Config controls masking and averaging.
type Config struct {
	Threshold   float64
	MinPlantNIR float64
	Classifier  Classifier // nil selects the NIR-reflectance classifier
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		MinPlantNIR: DefaultMinPlantNIR,
	}
}

// Analysis is the outcome of one NDVI computation over a capture pair.
type Analysis struct {
	Mean        float64 // mean NDVI over the plant population
	Stddev      float64 // population standard deviation, the error bound
	PlantPixels int     // pixels that entered the average

	width, height int
	index         []float64 // per-pixel NDVI, NaN where excluded
	mask          []bool    // leaf classification
}

// Empty reports whether no plant pixels entered the average. An empty
// result is an expected operating condition (bare substrate, seedling
// not yet visible), not a failure.
func (a *Analysis) Empty() bool {
	return a.PlantPixels == 0
}

// Analyze masks both captures, computes per-pixel NDVI over the masked
// region and averages every pixel above the threshold. Pixels where
// NIR+RED is zero carry no signal and are excluded from both the mask
// and the average. Band energy is read from the red component of each
// capture, which is where a NoIR sensor accumulates it.
func Analyze(nir, red *capture.Frame, cfg Config) (*Analysis, error) {
	if nir == nil || red == nil {
		return nil, errNilFrame
	}
	if nir.Width != red.Width || nir.Height != red.Height {
		return nil, fmt.Errorf("ndvi: capture size mismatch: %dx%d vs %dx%d",
			nir.Width, nir.Height, red.Width, red.Height)
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinPlantNIR == 0 {
		cfg.MinPlantNIR = DefaultMinPlantNIR
	}
	classify := cfg.Classifier
	if classify == nil {
		minNIR := cfg.MinPlantNIR
		classify = func(n, _ float64) bool { return n >= minNIR }
	}

	a := &Analysis{
		width:  nir.Width,
		height: nir.Height,
		index:  make([]float64, nir.Width*nir.Height),
		mask:   make([]bool, nir.Width*nir.Height),
	}

	var sum, sumSq float64
	for y := 0; y < nir.Height; y++ {
		for x := 0; x < nir.Width; x++ {
			i := y*nir.Width + x
			a.index[i] = math.NaN()

			nr, _, _ := nir.At(x, y)
			rr, _, _ := red.At(x, y)
			n := float64(nr) / 255
			r := float64(rr) / 255

			if n+r == 0 {
				continue
			}
			if !classify(n, r) {
				continue
			}
			a.mask[i] = true

			idx := (n - r) / (n + r)
			a.index[i] = idx

			if idx > cfg.Threshold {
				sum += idx
				sumSq += idx * idx
				a.PlantPixels++
			}
		}
	}

	if a.PlantPixels > 0 {
		count := float64(a.PlantPixels)
		a.Mean = sum / count
		variance := sumSq/count - a.Mean*a.Mean
		if variance > 0 {
			a.Stddev = math.Sqrt(variance)
		}
	}
	return a, nil
}

// RenderIndex renders the NDVI matrix as a grayscale frame: the [-1, 1]
// range maps to [0, 255], excluded pixels render black.
func (a *Analysis) RenderIndex() *capture.Frame {
	frame := capture.NewFrame(a.width, a.height, "")
	for y := 0; y < a.height; y++ {
		for x := 0; x < a.width; x++ {
			idx := a.index[y*a.width+x]
			if math.IsNaN(idx) {
				continue
			}
			v := uint8(math.Round((idx + 1) / 2 * 255))
			frame.SetRGB(x, y, v, v, v)
		}
	}
	return frame
}

// RenderMask renders the leaf classification as a binary frame.
func (a *Analysis) RenderMask() *capture.Frame {
	frame := capture.NewFrame(a.width, a.height, "")
	for y := 0; y < a.height; y++ {
		for x := 0; x < a.width; x++ {
			if a.mask[y*a.width+x] {
				frame.SetRGB(x, y, 255, 255, 255)
			}
		}
	}
	return frame
}
