package osm

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

// Decoder implements ports.ImageDecoder for PNG, JPEG and WebP tiles.
type Decoder struct{}

func (Decoder) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewError(domain.KindDecode, "decode tile image", err)
	}
	return img, nil
}
