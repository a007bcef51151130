// Package barcode abstracts QR decoding behind one interface with two
// interchangeable engines: a baseline that is always available and an
// optional multi-format engine that is loaded lazily. Engine choice is a
// latency concern only; correctness never depends on the optional engine
// being present.
package barcode

import (
	"fmt"
	"image"

	"github.com/liyue201/goqr"
	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrgen "github.com/skip2/go-qrcode"
)

// ScanResult reports whether a code was found and its raw text payload.
// Not finding a code is a routine outcome, not an error.
type ScanResult struct {
	Found   bool
	Payload string
}

// Engine decodes a QR code from raster pixels.
type Engine interface {
	Name() string
	Decode(img image.Image) (*ScanResult, error)
}

// DecodeRegion crops img to a focus rectangle before decoding. Scanning a
// pre-cropped exclusion zone is much cheaper than scanning the whole page.
func DecodeRegion(e Engine, img image.Image, region image.Rectangle) (*ScanResult, error) {
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		if r := region.Intersect(img.Bounds()); !r.Empty() {
			return e.Decode(s.SubImage(r))
		}
	}
	return e.Decode(img)
}

// baselineEngine wraps goqr, the always-available pure-Go decoder.
type baselineEngine struct{}

func (baselineEngine) Name() string { return "goqr" }

func (baselineEngine) Decode(img image.Image) (*ScanResult, error) {
	codes, err := goqr.Recognize(img)
	if err != nil || len(codes) == 0 {
		// goqr reports "no code" through its error; that is a not-found,
		// not a failure.
		return &ScanResult{}, nil
	}
	return &ScanResult{Found: true, Payload: string(codes[0].Payload)}, nil
}

// NewBaselineEngine returns the synchronous fallback engine.
func NewBaselineEngine() Engine {
	return baselineEngine{}
}

// zxingEngine wraps the gozxing QR reader.
type zxingEngine struct {
	reader gozxing.Reader
}

func (z *zxingEngine) Name() string { return "gozxing" }

func (z *zxingEngine) Decode(img image.Image) (*ScanResult, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("build bitmap: %w", err)
	}
	result, err := z.reader.Decode(bmp, nil)
	if err != nil {
		// The reader errors on every non-detection (not found, bad format,
		// checksum); all of them are a not-found outcome for the caller.
		return &ScanResult{}, nil
	}
	return &ScanResult{Found: true, Payload: result.GetText()}, nil
}

func newZXingEngine() (Engine, error) {
	return &zxingEngine{reader: zxqrcode.NewQRCodeReader()}, nil
}

// EncodePNG renders a token as a PNG QR tile. Medium error correction
// keeps the symbol scannable after print-and-rescan without promoting the
// version more than necessary.
func EncodePNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	return qrgen.Encode(payload, qrgen.Medium, size)
}
