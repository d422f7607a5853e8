// Package facetest provides an in-process detector and model for tests that
// need a working Matcher without a model server.
package facetest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"

	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/facematch"
	"github.com/safefind/safefind/internal/imaging"
)

// ModelVersion is the version tag of embeddings produced by QuadrantModel.
const ModelVersion = "test/quadrant"

// UniformDetector treats any image with more than one distinct color as
// containing a single face that covers the central 80% of the frame.
type UniformDetector struct{}

func (UniformDetector) Detect(_ context.Context, img image.Image) ([]facematch.Detection, error) {
	b := img.Bounds()
	first := color.RGBAModel.Convert(img.At(b.Min.X, b.Min.Y))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.RGBAModel.Convert(img.At(x, y)) != first {
				inset := image.Pt(b.Dx()/10, b.Dy()/10)
				box := image.Rectangle{Min: b.Min.Add(inset), Max: b.Max.Sub(inset)}
				return []facematch.Detection{{Box: box, Score: 0.99}}, nil
			}
		}
	}
	return nil, nil
}

// QuadrantModel embeds a crop as the mean RGB of each of its four quadrants.
type QuadrantModel struct{}

func (QuadrantModel) Version() string {
	return ModelVersion
}

func (QuadrantModel) Infer(_ context.Context, crop *imaging.FaceCrop) ([]float32, error) {
	b := crop.Pixels.Bounds()
	halfX, halfY := b.Dx()/2, b.Dy()/2
	vec := make([]float32, 12)
	counts := make([]float32, 4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			q := 0
			if x-b.Min.X >= halfX {
				q++
			}
			if y-b.Min.Y >= halfY {
				q += 2
			}
			c := crop.Pixels.RGBAAt(x, y)
			vec[3*q] += float32(c.R)
			vec[3*q+1] += float32(c.G)
			vec[3*q+2] += float32(c.B)
			counts[q]++
		}
	}
	for i := range vec {
		vec[i] /= counts[i/3] * 255
	}
	return vec, nil
}

// NewMatcher returns a Matcher built from UniformDetector and QuadrantModel.
func NewMatcher(threshold float64, opts ...facematch.Option) *facematch.Matcher {
	cfg := config.MatchConfig{Threshold: threshold, CropSize: 16}
	locator := facematch.NewLocator(UniformDetector{}, cfg)
	extractor := embedding.NewExtractor(func(context.Context) (embedding.Model, error) {
		return QuadrantModel{}, nil
	})
	return facematch.NewMatcher(locator, extractor, threshold, opts...)
}

// Face renders a 64x64 PNG whose quadrants (top-left, top-right, bottom-left,
// bottom-right) have the given colors. Different quadrant layouts stand in for
// different people.
func Face(tl, tr, bl, br color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			c := tl
			switch {
			case x >= 32 && y < 32:
				c = tr
			case x < 32 && y >= 32:
				c = bl
			case x >= 32 && y >= 32:
				c = br
			}
			img.Set(x, y, c)
		}
	}
	return encode(img)
}

// Blank renders a 64x64 single-color PNG, which never contains a face.
func Blank() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			img.Set(x, y, color.White)
		}
	}
	return encode(img)
}

func encode(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
