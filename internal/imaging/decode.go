// Package imaging validates, decodes and reshapes user-supplied photos.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/safefind/safefind/internal/constants"
)

// Format is the encoding of an image buffer.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

var (
	ErrUnsupportedFormat = errors.New("only JPEG and PNG images are allowed")
	ErrCorruptImage      = errors.New("corrupt image file")
	ErrTooSmall          = errors.New("image too small")
	ErrTooBlurry         = errors.New("image too blurry")
	ErrTooLarge          = errors.New("image dimensions too large")
)

// DetectFormat sniffs the magic bytes of data.
// Returns ErrUnsupportedFormat for anything other than JPEG or PNG.
func DetectFormat(data []byte) (Format, error) {
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return FormatJPEG, nil
	}
	if len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return FormatPNG, nil
	}
	return "", ErrUnsupportedFormat
}

// Decode checks the format and pixel dimensions of data and decodes it.
// Images with more than constants.MaxImagePixels pixels are rejected with
// ErrTooLarge before any pixel buffer is allocated.
func Decode(data []byte) (image.Image, Format, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > constants.MaxImagePixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels",
			ErrTooLarge, cfg.Width, cfg.Height, constants.MaxImagePixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	return img, format, nil
}

// MIMEType returns the content type for a format.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
