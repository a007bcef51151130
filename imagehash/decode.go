package imagehash

import (
	"fmt"
	"image"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

type ErrUnsupportedType struct {
	MimeType string
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported document type: %q", e.MimeType)
}

type ErrProcessing struct {
	Reason string
}

func (e ErrProcessing) Error() string {
	return fmt.Sprintf("image processing failed: %s", e.Reason)
}

// DecodeImage decodes a raster document. Non-image MIME types are rejected
// up front so callers can distinguish "wrong kind of document" from "corrupt
// image data".
func DecodeImage(r io.Reader, mimeType string) (image.Image, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, ErrUnsupportedType{MimeType: mimeType}
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, ErrProcessing{Reason: fmt.Sprintf("decode %s: %v", mimeType, err)}
	}
	return img, nil
}
