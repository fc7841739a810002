package validation

import "errors"

var (
	ErrInvalidFileType = errors.New("invalid file type. Only JPEG, PNG, and TIFF are allowed")
	ErrFileTooLarge    = errors.New("file size exceeds limit")
	ErrEmptyFile       = errors.New("file is empty")
	ErrContentMismatch = errors.New("file content does not match declared type")
	ErrUnreadableImage = errors.New("image header could not be read")
	ErrImageTooLarge   = errors.New("image dimensions exceed limit")
	ErrInvalidFilename = errors.New("invalid filename")
)
