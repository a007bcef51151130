// Package imagehash computes the three document hashes a seal attests to:
// an exact SHA-256 digest plus two perceptual hashes that survive lossy
// re-encoding of the carrier image.
//
// All three hashes are computed over the same exclusion-zone-blanked pixel
// buffer. The zone is the rectangle the QR visual occupies; blanking it
// first keeps the seal from altering its own attested content.
package imagehash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	xdraw "golang.org/x/image/draw"
)

const (
	// pHash: 16x16 luminance bitmap, one bit per pixel.
	pHashDim  = 16
	pHashBits = pHashDim * pHashDim

	// dHash: 7 columns downscaled, 6 right-neighbour comparisons per row.
	dHashCols = 7
	dHashRows = 6
	dHashBits = (dHashCols - 1) * dHashRows
)

// Hashes is the value produced by one hashing pass.
//
// Cryptographic is 64 lowercase hex characters. PHash and DHash are bit
// strings of '0'/'1', 256 and 36 characters respectively.
type Hashes struct {
	Cryptographic string `json:"cryptographic"`
	PHash         string `json:"pHash"`
	DHash         string `json:"dHash"`
}

// Zone is the exclusion rectangle in source-document pixel coordinates.
// FillColor is an RGB hex string, with or without the leading '#'.
type Zone struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FillColor string `json:"fillColor"`
}

type ErrInvalidZone struct {
	Reason string
}

func (e ErrInvalidZone) Error() string {
	return fmt.Sprintf("invalid exclusion zone: %s", e.Reason)
}

func (z *Zone) Validate() error {
	if z.X < 0 || z.Y < 0 {
		return ErrInvalidZone{Reason: fmt.Sprintf("negative position (%d,%d)", z.X, z.Y)}
	}
	if z.Width <= 0 || z.Height <= 0 {
		return ErrInvalidZone{Reason: fmt.Sprintf("non-positive size %dx%d", z.Width, z.Height)}
	}
	if _, err := z.fill(); err != nil {
		return err
	}
	return nil
}

func (z *Zone) fill() (color.RGBA, error) {
	s := strings.TrimPrefix(z.FillColor, "#")
	if len(s) != 6 {
		return color.RGBA{}, ErrInvalidZone{Reason: fmt.Sprintf("fill color %q is not RRGGBB", z.FillColor)}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return color.RGBA{}, ErrInvalidZone{Reason: fmt.Sprintf("fill color %q is not hex", z.FillColor)}
	}
	return color.RGBA{R: b[0], G: b[1], B: b[2], A: 0xff}, nil
}

// Rect returns the zone as an image.Rectangle.
func (z *Zone) Rect() image.Rectangle {
	return image.Rect(z.X, z.Y, z.X+z.Width, z.Y+z.Height)
}

// Compute hashes img with zone blanked first. The input image is never
// mutated; all work happens on a private RGBA copy. A nil zone hashes the
// image as-is (the PDF path carries no zone).
func Compute(img image.Image, zone *Zone) (Hashes, error) {
	if img == nil {
		return Hashes{}, ErrProcessing{Reason: "nil image"}
	}

	rgba := clone(img)

	if zone != nil {
		if err := zone.Validate(); err != nil {
			return Hashes{}, err
		}
		fill, err := zone.fill()
		if err != nil {
			return Hashes{}, err
		}
		rect := zone.Rect().Intersect(rgba.Bounds())
		draw.Draw(rgba, rect, &image.Uniform{C: fill}, image.Point{}, draw.Src)
	}

	sum := sha256.Sum256(rgba.Pix)

	return Hashes{
		Cryptographic: hex.EncodeToString(sum[:]),
		PHash:         averageHash(rgba),
		DHash:         differenceHash(rgba),
	}, nil
}

// clone normalizes any image into an RGBA buffer anchored at (0,0) so that
// the digest is independent of the source's in-memory representation.
func clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func averageHash(img *image.RGBA) string {
	lum := luminanceGrid(img, pHashDim, pHashDim)

	var mean float64
	for _, l := range lum {
		mean += l
	}
	mean /= float64(len(lum))

	var sb strings.Builder
	sb.Grow(pHashBits)
	for _, l := range lum {
		if l > mean {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func differenceHash(img *image.RGBA) string {
	lum := luminanceGrid(img, dHashCols, dHashRows)

	var sb strings.Builder
	sb.Grow(dHashBits)
	for row := 0; row < dHashRows; row++ {
		for col := 0; col < dHashCols-1; col++ {
			left := lum[row*dHashCols+col]
			right := lum[row*dHashCols+col+1]
			if left >= right {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	return sb.String()
}

// luminanceGrid downscales img to w x h and returns row-major luminance
// values using the 0.299/0.587/0.114 weighting.
func luminanceGrid(img *image.RGBA, w, h int) []float64 {
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	out := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := small.PixOffset(x, y)
			r := float64(small.Pix[i])
			g := float64(small.Pix[i+1])
			b := float64(small.Pix[i+2])
			out = append(out, 0.299*r+0.587*g+0.114*b)
		}
	}
	return out
}
