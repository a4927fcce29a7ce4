package wallet

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultQRSize = 256

// ClaimLinkQR renders a claim link as a PNG QR code. Size is the image edge
// in pixels; non-positive sizes use the default.
func ClaimLinkQR(code string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRSize
	}

	png, err := qrcode.Encode(ClaimLink(code), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}
