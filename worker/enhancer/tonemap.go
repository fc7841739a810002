package enhancer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const cpuDevice = "cpu"

// ToneMapEngine approximates an HDR look with a shadow lift, a gamma curve,
// contrast and saturation boosts and a final unsharp pass.
type ToneMapEngine struct {
	weightsPath string
	logger      *zap.Logger

	mu      sync.RWMutex
	weights *Weights
}

// NewToneMapEngine returns an unloaded engine. An empty weightsPath uses
// DefaultWeights.
func NewToneMapEngine(weightsPath string, logger *zap.Logger) *ToneMapEngine {
	return &ToneMapEngine{weightsPath: weightsPath, logger: logger}
}

func (e *ToneMapEngine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.weights != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w := DefaultWeights()
	if e.weightsPath != "" {
		loaded, err := LoadWeights(e.weightsPath)
		if err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}
		w = loaded
	}

	e.weights = &w
	e.logger.Info("Enhancement model loaded",
		zap.String("device", cpuDevice),
		zap.String("weights", e.weightsPath),
		zap.Float64("gamma", w.Gamma),
		zap.Float64("shadow_lift", w.ShadowLift),
	)
	return nil
}

func (e *ToneMapEngine) Enhance(ctx context.Context, img image.Image) (image.Image, error) {
	e.mu.RLock()
	w := e.weights
	e.mu.RUnlock()

	if w == nil {
		return nil, ErrNotLoaded
	}

	stages := []func(image.Image) *image.NRGBA{
		func(src image.Image) *image.NRGBA { return liftShadows(src, w.ShadowLift) },
		func(src image.Image) *image.NRGBA { return imaging.AdjustGamma(src, w.Gamma) },
		func(src image.Image) *image.NRGBA { return imaging.AdjustContrast(src, w.Contrast) },
		func(src image.Image) *image.NRGBA { return imaging.AdjustSaturation(src, w.Saturation) },
		func(src image.Image) *image.NRGBA { return imaging.Sharpen(src, w.SharpenSigma) },
	}

	out := img
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = stage(out)
	}
	return out, nil
}

func (e *ToneMapEngine) Device() string {
	return cpuDevice
}

// Close drops the loaded weights; a later Load reads them again.
func (e *ToneMapEngine) Close() error {
	e.mu.Lock()
	e.weights = nil
	e.mu.Unlock()
	return nil
}

// liftShadows raises dark values along x + 2*lift*x*(1-x)^2, which keeps 0
// and 1 fixed and stays monotonic for lift <= 1.
func liftShadows(img image.Image, lift float64) *image.NRGBA {
	if lift == 0 {
		return imaging.Clone(img)
	}

	var lut [256]uint8
	for i := range lut {
		x := float64(i) / 255
		y := x + 2*lift*x*(1-x)*(1-x)
		lut[i] = clamp(y * 255)
	}

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
