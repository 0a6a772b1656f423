package wireguard

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
)

// GenerateKeyPair returns a fresh clamped Curve25519 private key and its
// public key, both base64 encoded.
func GenerateKeyPair() (privateKey, publicKey string, err error) {
	private, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", "", err
	}
	return private.String(), private.PublicKey().String(), nil
}

// DerivePublicKey derives the public key from a base64 private key.
func DerivePublicKey(privateKey string) (string, error) {
	private, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return "", fmt.Errorf("decode private key: %w", err)
	}
	if len(private) != wgtypes.KeyLen {
		return "", fmt.Errorf("private key is %d bytes, want %d", len(private), wgtypes.KeyLen)
	}

	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("derive public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(public), nil
}

// GeneratePresharedKey generates a WireGuard preshared key
func GeneratePresharedKey() (string, error) {
	key, err := wgtypes.GenerateKey()
	if err != nil {
		return "", err
	}
	return key.String(), nil
}

// NativeProvider generates key material in-process.
type NativeProvider struct{}

// NewNativeProvider returns a provider that generates keys without external tools.
func NewNativeProvider() *NativeProvider { return &NativeProvider{} }

func (p *NativeProvider) GenerateKeyTriple(ctx context.Context, presharedKey bool) (network.KeyTriple, error) {
	if err := ctx.Err(); err != nil {
		return network.KeyTriple{}, err
	}

	private, public, err := GenerateKeyPair()
	if err != nil {
		return network.KeyTriple{}, fmt.Errorf("%w: %v", network.ErrProviderUnavailable, err)
	}
	triple := network.KeyTriple{PrivateKey: private, PublicKey: public}

	if presharedKey {
		psk, err := GeneratePresharedKey()
		if err != nil {
			return network.KeyTriple{}, fmt.Errorf("%w: %v", network.ErrProviderUnavailable, err)
		}
		triple.PresharedKey = psk
	}

	return triple, nil
}

var _ network.KeyProvider = (*NativeProvider)(nil)
