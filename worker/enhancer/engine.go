// Package enhancer holds the inference engine that turns a decoded image into
// its enhanced version. The engine is created once per worker process and
// loaded lazily by the first job that needs it.
package enhancer

import (
	"context"
	"errors"
	"image"
)

var ErrNotLoaded = errors.New("engine not loaded")

type Engine interface {
	// Load prepares the engine. It is idempotent and may be retried after a
	// failure.
	Load(ctx context.Context) error
	Enhance(ctx context.Context, img image.Image) (image.Image, error)
	// Device names the compute device the engine runs on.
	Device() string
	Close() error
}
