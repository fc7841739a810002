package converter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"hdrEnhancer/pkg/task"
)

var ErrImageTooLarge = errors.New("image dimensions exceed limit")

type Converter struct {
	logger    *zap.Logger
	maxPixels int64
}

// NewConverter returns a codec that refuses to decode images with more than
// maxPixels pixels. A non-positive maxPixels disables the check.
func NewConverter(logger *zap.Logger, maxPixels int64) *Converter {
	return &Converter{logger: logger, maxPixels: maxPixels}
}

// Decode reads a JPEG, PNG or TIFF image and applies its EXIF orientation.
// The header is checked against the pixel limit before any pixel data is
// allocated.
func (c *Converter) Decode(r io.Reader) (image.Image, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		c.logger.Error("Failed to read image header", zap.Error(err))
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if c.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > c.maxPixels {
		err := fmt.Errorf("%w: %dx%d is over the %d pixel limit", ErrImageTooLarge, cfg.Width, cfg.Height, c.maxPixels)
		c.logger.Warn("Refusing to decode image", zap.Error(err))
		return nil, err
	}

	img, err := imaging.Decode(io.MultiReader(&header, r), imaging.AutoOrientation(true))
	if err != nil {
		c.logger.Error("Failed to decode image", zap.Error(err))
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.logger.Debug("Image decoded",
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)
	return img, nil
}

// Encode writes img to w in format. quality applies to JPEG only; values
// outside 1..100 fall back to the default.
func (c *Converter) Encode(w io.Writer, img image.Image, format task.Format, quality int) error {
	if quality < 1 || quality > 100 {
		quality = task.DefaultQuality
	}

	var err error
	switch format {
	case task.FormatJPEG:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case task.FormatPNG:
		err = imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
	case task.FormatTIFF:
		err = imaging.Encode(w, img, imaging.TIFF)
	default:
		err := fmt.Errorf("unsupported format: %s", format)
		c.logger.Error("Unsupported format", zap.Error(err))
		return err
	}

	if err != nil {
		c.logger.Error("Failed to encode image",
			zap.String("format", string(format)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}
