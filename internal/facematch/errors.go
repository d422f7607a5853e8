package facematch

import (
	"errors"
	"fmt"
)

// ErrNoFaceDetected is returned when an image contains no usable face.
var ErrNoFaceDetected = errors.New("no face detected")

// Side names the input of a comparison that failed.
type Side string

const (
	SideA     Side = "a"
	SideB     Side = "b"
	SideQuery Side = "query"
)

// NoFaceError reports which input had no face. It matches ErrNoFaceDetected with errors.Is.
type NoFaceError struct {
	Side Side
}

func (e *NoFaceError) Error() string {
	return fmt.Sprintf("no face detected in image %s", e.Side)
}

func (e *NoFaceError) Unwrap() error {
	return ErrNoFaceDetected
}

// withSide attaches side to a missing-face error and passes other errors through.
func withSide(err error, side Side) error {
	if errors.Is(err, ErrNoFaceDetected) {
		return &NoFaceError{Side: side}
	}
	return fmt.Errorf("image %s: %w", side, err)
}
