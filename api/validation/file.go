package validation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	_ "golang.org/x/image/tiff"

	"hdrEnhancer/pkg/task"
)

// MaxFilenameLength matches the original_filename column.
const MaxFilenameLength = 255

// Limits bounds an upload. Zero values disable the corresponding check.
type Limits struct {
	MaxFileSize int64
	MaxPixels   int64
}

var allowedContentTypes = map[string]task.Format{
	"image/jpeg": task.FormatJPEG,
	"image/png":  task.FormatPNG,
	"image/tiff": task.FormatTIFF,
}

var magicBytes = map[task.Format][][]byte{
	task.FormatPNG:  {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	task.FormatJPEG: {{0xFF, 0xD8, 0xFF}},
	task.FormatTIFF: {{0x49, 0x49, 0x2A, 0x00}, {0x4D, 0x4D, 0x00, 0x2A}},
}

// FormatForContentType maps a declared content type onto the allow-list.
func FormatForContentType(contentType string) (task.Format, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", ErrInvalidFileType
	}

	format, ok := allowedContentTypes[strings.ToLower(mediaType)]
	if !ok {
		return "", ErrInvalidFileType
	}
	return format, nil
}

func DetectFileType(file io.ReadSeeker) (task.Format, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	if n == 0 {
		return "", ErrEmptyFile
	}

	for fileType, signatures := range magicBytes {
		for _, signature := range signatures {
			if bytes.HasPrefix(buffer[:n], signature) {
				return fileType, nil
			}
		}
	}

	return "", ErrInvalidFileType
}

// ValidateUpload checks the declared content type against the allow-list, the
// size against the limit, the leading bytes against the declared type and the
// image dimensions read from the header against the pixel limit. file is
// rewound before returning.
func ValidateUpload(contentType string, size int64, file io.ReadSeeker, limits Limits) (task.Format, error) {
	declared, err := FormatForContentType(contentType)
	if err != nil {
		return "", err
	}

	if limits.MaxFileSize > 0 && size > limits.MaxFileSize {
		return "", ErrFileTooLarge
	}

	detected, err := DetectFileType(file)
	if err != nil {
		return "", err
	}

	if detected != declared {
		return "", ErrContentMismatch
	}

	if err := checkDimensions(file, limits.MaxPixels); err != nil {
		return "", err
	}

	return declared, nil
}

// checkDimensions decodes only the image header, so a small file that
// expands to a huge bitmap is refused before any worker allocates it.
func checkDimensions(file io.ReadSeeker, maxPixels int64) error {
	cfg, _, err := image.DecodeConfig(file)
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return seekErr
	}
	if err != nil {
		return ErrUnreadableImage
	}

	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return fmt.Errorf("%w: %dx%d is over the %d pixel limit", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// ValidateFilename rejects names the task store cannot hold.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: filename is required", ErrInvalidFilename)
	case !utf8.ValidString(name), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: filename must be valid UTF-8 text", ErrInvalidFilename)
	case utf8.RuneCountInString(name) > MaxFilenameLength:
		return fmt.Errorf("%w: filename longer than %d characters", ErrInvalidFilename, MaxFilenameLength)
	}
	return nil
}
