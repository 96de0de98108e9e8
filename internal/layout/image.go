package layout

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// DefaultWhiteThreshold is the channel value above which a pixel counts as
// white background.
const DefaultWhiteThreshold = 230

// toNRGBA copies img into a fresh NRGBA with bounds starting at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// RemoveWhiteBackground makes every pixel whose red, green and blue are
// all above threshold fully transparent.
func RemoveWhiteBackground(img image.Image, threshold uint8) *image.NRGBA {
	out := toNRGBA(img)
	transparent := color.NRGBA{R: 255, G: 255, B: 255, A: 0}
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := out.NRGBAAt(x, y)
			if c.R > threshold && c.G > threshold && c.B > threshold {
				out.SetNRGBA(x, y, transparent)
			}
		}
	}
	return out
}

// AutoCrop trims fully transparent borders. An image with no visible
// pixels is returned unchanged.
func AutoCrop(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y).A == 0 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return img
	}
	return toNRGBA(img.SubImage(image.Rect(minX, minY, maxX+1, maxY+1)))
}

// Resize scales img to exactly width×height.
func Resize(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// Fit cleans img and scales it into the grid's logo box.
func (g Grid) Fit(img image.Image, threshold uint8) *image.NRGBA {
	cropped := AutoCrop(RemoveWhiteBackground(img, threshold))
	b := cropped.Bounds()
	w, h := g.FitSize(b.Dx(), b.Dy())
	return Resize(cropped, w, h)
}
