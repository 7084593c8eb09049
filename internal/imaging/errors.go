package imaging

import (
	"errors"
	"fmt"
)

var (
	// ErrImageProcessing matches every *ImageProcessingError.
	ErrImageProcessing = errors.New("image processing failed")

	ErrUnsupportedFormat    = errors.New("unsupported image format")
	ErrCompressionExhausted = errors.New("compression attempts exhausted")
)

// ImageProcessingError describes which step of Process failed and on which file.
type ImageProcessingError struct {
	Op   string // stat, decode, encode, copy, ...
	Path string
	Err  error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}

func (e *ImageProcessingError) Is(target error) bool {
	return target == ErrImageProcessing
}

func opError(op, path string, err error) error {
	return &ImageProcessingError{Op: op, Path: path, Err: err}
}
