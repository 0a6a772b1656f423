package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
)

const DefaultSize = 512

// Encoder renders configuration documents as PNG QR codes for mobile clients.
type Encoder struct {
	Level qrcode.RecoveryLevel
	Size  int
}

func NewEncoder() *Encoder {
	return &Encoder{Level: qrcode.Medium, Size: DefaultSize}
}

// Encode returns the PNG image of content.
func (e *Encoder) Encode(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, e.Level, e.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: qr code: %v", network.ErrEncode, err)
	}
	return png, nil
}
