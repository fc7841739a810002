package enhancer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights parameterise the tone-mapping curve.
type Weights struct {
	// Gamma above 1 brightens midtones.
	Gamma float64 `yaml:"gamma"`
	// Contrast and Saturation are percentages as understood by imaging.
	Contrast   float64 `yaml:"contrast"`
	Saturation float64 `yaml:"saturation"`
	// ShadowLift in [0, 1] raises dark tones while leaving highlights alone.
	ShadowLift   float64 `yaml:"shadow_lift"`
	SharpenSigma float64 `yaml:"sharpen_sigma"`
}

func DefaultWeights() Weights {
	return Weights{
		Gamma:        1.1,
		Contrast:     12,
		Saturation:   15,
		ShadowLift:   0.25,
		SharpenSigma: 0.6,
	}
}

// LoadWeights reads a YAML weights file. Keys absent from the file keep their
// default values; unknown keys are rejected.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights: %w", err)
	}

	w := DefaultWeights()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil && !errors.Is(err, io.EOF) {
		return Weights{}, fmt.Errorf("parse weights %s: %w", path, err)
	}

	if err := w.Validate(); err != nil {
		return Weights{}, fmt.Errorf("invalid weights %s: %w", path, err)
	}
	return w, nil
}

func (w Weights) Validate() error {
	switch {
	case w.Gamma <= 0:
		return errors.New("gamma must be positive")
	case w.Contrast <= -100 || w.Contrast >= 100:
		return errors.New("contrast must be within (-100, 100)")
	case w.Saturation <= -100 || w.Saturation >= 500:
		return errors.New("saturation must be within (-100, 500)")
	case w.ShadowLift < 0 || w.ShadowLift > 1:
		return errors.New("shadow_lift must be within [0, 1]")
	case w.SharpenSigma < 0:
		return errors.New("sharpen_sigma must not be negative")
	}
	return nil
}
