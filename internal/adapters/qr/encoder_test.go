package qr

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestEncode(t *testing.T) {
	config := "[Interface]\nAddress = 10.99.99.2/24\nListenPort = 51820\n"

	png, err := NewEncoder().Encode(config)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Errorf("Expected PNG output, got header %x", png[:8])
	}
}

func TestEncodeDeterministic(t *testing.T) {
	encoder := NewEncoder()
	a, err := encoder.Encode("[Peer]\nEndpoint = vpn.example.org:51820\n")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, err := encoder.Encode("[Peer]\nEndpoint = vpn.example.org:51820\n")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Expected identical images for identical content")
	}
}

func TestEncodeTooLarge(t *testing.T) {
	_, err := NewEncoder().Encode(strings.Repeat("x", 8000))
	if !errors.Is(err, network.ErrEncode) {
		t.Errorf("Expected ErrEncode, got %v", err)
	}
}
