package imaging

import (
	"image"
	"image/color"
)

// grayPlane is an 8-bit luma image stored row-major.
type grayPlane struct {
	pix    []float32
	width  int
	height int
}

func (g grayPlane) at(x, y int) float64 {
	return float64(g.pix[y*g.width+x])
}

// toGrayscale converts an image to luma values using the ITU-R BT.601 weights,
// rounded the way 8-bit decoders do. Alpha is ignored: the straight (not
// premultiplied) color channels are used.
func toGrayscale(img image.Image) grayPlane {
	bounds := img.Bounds()
	g := grayPlane{
		pix:    make([]float32, bounds.Dx()*bounds.Dy()),
		width:  bounds.Dx(),
		height: bounds.Dy(),
	}

	for y := range g.height {
		row := g.pix[y*g.width : (y+1)*g.width]
		for x := range g.width {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			luma := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
			row[x] = float32(int(luma + 0.5))
		}
	}

	return g
}

// reflect101 maps an out-of-range index back into [0, n) by mirroring
// around the edge pixel (dcb|abcd|cba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

// LaplacianVariance returns the variance of the 4-neighbour Laplacian of the
// grayscale image. Sharp photos have strong edges and therefore a high variance.
func LaplacianVariance(img image.Image) float64 {
	g := toGrayscale(img)
	if g.width == 0 || g.height == 0 {
		return 0
	}

	var sum, sumSq float64
	for y := range g.height {
		up := reflect101(y-1, g.height)
		down := reflect101(y+1, g.height)
		for x := range g.width {
			lap := g.at(x, up) + g.at(x, down) +
				g.at(reflect101(x-1, g.width), y) + g.at(reflect101(x+1, g.width), y) -
				4*g.at(x, y)
			sum += lap
			sumSq += lap * lap
		}
	}

	n := float64(g.width * g.height)
	mean := sum / n
	return sumSq/n - mean*mean
}
