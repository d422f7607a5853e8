package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// CenterSquare returns the largest centered square region of bounds.
func CenterSquare(bounds image.Rectangle) image.Rectangle {
	side := min(bounds.Dx(), bounds.Dy())
	x0 := bounds.Min.X + (bounds.Dx()-side)/2
	y0 := bounds.Min.Y + (bounds.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

// Resample copies region src of img into a new width x height RGBA image
// using Catmull-Rom interpolation.
func Resample(img image.Image, src image.Rectangle, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}

// FaceCrop is a square face region resampled to the model input size.
type FaceCrop struct {
	Pixels *image.RGBA
	Box    image.Rectangle // region of the source image the crop was taken from
}

// Size returns the side length of the crop in pixels.
func (c *FaceCrop) Size() int {
	return c.Pixels.Bounds().Dx()
}

// Tensor returns the crop as planar RGB floats in [0, 1] (all R, then G, then B).
func (c *FaceCrop) Tensor() []float32 {
	b := c.Pixels.Bounds()
	plane := b.Dx() * b.Dy()
	out := make([]float32, 3*plane)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := c.Pixels.PixOffset(x, y)
			out[i] = float32(c.Pixels.Pix[off]) / 255
			out[plane+i] = float32(c.Pixels.Pix[off+1]) / 255
			out[2*plane+i] = float32(c.Pixels.Pix[off+2]) / 255
			i++
		}
	}
	return out
}

// CropFace resamples region box of img into a size x size face crop.
func CropFace(img image.Image, box image.Rectangle, size int) *FaceCrop {
	return &FaceCrop{
		Pixels: Resample(img, box, size, size),
		Box:    box,
	}
}
