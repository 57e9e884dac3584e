// Package qr renders pairing codes as PNG data URLs for browser observers.
package qr

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length of the rendered image in pixels.
const DefaultSize = 256

// DataURL encodes code as a PNG QR image and returns it as a data URL.
func DataURL(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, DefaultSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
