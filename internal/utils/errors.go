package utils

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is wrapped by load errors for unknown file types.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ImageProcessingError represents errors that can occur while acquiring or
// preparing an image. It is reported before any search starts.
type ImageProcessingError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image %s failed for %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("image %s failed: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// IsInputFault reports whether err came from image acquisition.
func IsInputFault(err error) bool {
	var ipe *ImageProcessingError
	return errors.As(err, &ipe)
}
