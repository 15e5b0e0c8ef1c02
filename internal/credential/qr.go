package credential

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

// DefaultModulePixels matches a box size of 10 pixels per QR module.
const DefaultModulePixels = 10

// QREncoder renders payloads as PNG QR codes with low error correction and
// the standard four-module quiet zone.
type QREncoder struct {
	modulePixels int
}

func NewQREncoder(modulePixels int) *QREncoder {
	if modulePixels <= 0 {
		modulePixels = DefaultModulePixels
	}
	return &QREncoder{modulePixels: modulePixels}
}

// Encode is deterministic: the same payload always yields the same bytes.
func (e *QREncoder) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qr encode: empty payload")
	}
	q, err := qrcode.New(payload, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	// A negative size is interpreted by go-qrcode as pixels per module.
	png, err := q.PNG(-e.modulePixels)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return png, nil
}

// Decode reads the text of the first QR code found in a PNG or JPEG image.
func Decode(img []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return "", fmt.Errorf("qr decode: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(src)
	if err != nil {
		return "", fmt.Errorf("qr decode: %w", err)
	}
	res, err := zxingqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("qr decode: %w", err)
	}
	return res.GetText(), nil
}
