package imagepkg

import (
	"bytes"
	"image"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	minQRSize = 64
	maxQRSize = 2048
)

// ClampQRSize keeps a requested edge length within what is sensible to render.
func ClampQRSize(size int) int {
	if size < minQRSize {
		return minQRSize
	}
	if size > maxQRSize {
		return maxQRSize
	}
	return size
}

// GenerateQRPNG returns PNG bytes of a QR code for the given text. Long
// payloads such as big decklists drop to low error correction so they fit.
func GenerateQRPNG(text string, size int) ([]byte, error) {
	size = ClampQRSize(size)
	pngBytes, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		pngBytes, err = qrcode.Encode(text, qrcode.Low, size)
		if err != nil {
			return nil, err
		}
	}
	return pngBytes, nil
}

// GenerateQRImage returns an image.Image for further composition.
func GenerateQRImage(text string, size int) (image.Image, error) {
	b, err := GenerateQRPNG(text, size)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(b))
}
