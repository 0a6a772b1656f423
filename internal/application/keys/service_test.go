package keys

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
)

// sequenceProvider hands out numbered keys and records call order.
type sequenceProvider struct {
	mu     sync.Mutex
	calls  int
	failOn int // 1-based call number to fail on, 0 never
	blank  bool
}

func (p *sequenceProvider) GenerateKeyTriple(ctx context.Context, presharedKey bool) (network.KeyTriple, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls == p.failOn {
		return network.KeyTriple{}, fmt.Errorf("%w: wg not installed", network.ErrProviderUnavailable)
	}
	n := p.calls - 1
	triple := network.KeyTriple{
		PrivateKey:   fmt.Sprintf("priv-%d", n),
		PublicKey:    fmt.Sprintf("pub-%d", n),
		PresharedKey: fmt.Sprintf("psk-%d", n),
	}
	if p.blank {
		triple.PublicKey = ""
	}
	return triple, nil
}

func TestCollect(t *testing.T) {
	provider := &sequenceProvider{}
	set, err := NewService(provider, 1).Collect(context.Background(), 4, true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(set) != 4 {
		t.Fatalf("Expected 4 triples, got %d", len(set))
	}
	for i, triple := range set {
		if triple.PublicKey != fmt.Sprintf("pub-%d", i) {
			t.Errorf("Party %d: expected pub-%d, got %s", i, i, triple.PublicKey)
		}
		if triple.PresharedKey != fmt.Sprintf("psk-%d", i) {
			t.Errorf("Party %d: expected psk-%d, got %s", i, i, triple.PresharedKey)
		}
	}
	if provider.calls != 4 {
		t.Errorf("Expected exactly one provider call per party, got %d calls", provider.calls)
	}
}

func TestCollectWithoutPresharedKeys(t *testing.T) {
	set, err := NewService(&sequenceProvider{}, 1).Collect(context.Background(), 2, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i, triple := range set {
		if triple.PresharedKey != "" {
			t.Errorf("Party %d: expected no preshared key, got %q", i, triple.PresharedKey)
		}
	}
}

func TestCollectProviderFailure(t *testing.T) {
	tests := []struct {
		name     string
		failOn   int
		expected int
	}{
		{"server fails", 1, 0},
		{"second peer fails", 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &sequenceProvider{failOn: tt.failOn}
			set, err := NewService(provider, 1).Collect(context.Background(), 5, true)
			if set != nil {
				t.Errorf("Expected no partial key set, got %d triples", len(set))
			}

			var providerErr *network.ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("Expected *network.ProviderError, got %v", err)
			}
			if providerErr.Party.Index != tt.expected {
				t.Errorf("Expected failing party %d, got %d", tt.expected, providerErr.Party.Index)
			}
			if !errors.Is(err, network.ErrProviderUnavailable) {
				t.Errorf("Expected ErrProviderUnavailable in chain, got %v", err)
			}
			if provider.calls != tt.failOn {
				t.Errorf("Expected collection to stop after call %d, got %d calls", tt.failOn, provider.calls)
			}
		})
	}
}

func TestCollectEmptyToken(t *testing.T) {
	_, err := NewService(&sequenceProvider{blank: true}, 1).Collect(context.Background(), 2, true)
	if !errors.Is(err, network.ErrEmptyKey) {
		t.Fatalf("Expected ErrEmptyKey, got %v", err)
	}
	var providerErr *network.ProviderError
	if !errors.As(err, &providerErr) || providerErr.Party.Index != 0 {
		t.Errorf("Expected failure attributed to the server, got %v", err)
	}
}

func TestCollectConcurrentKeepsPartyOrder(t *testing.T) {
	provider := &sequenceProvider{}
	set, err := NewService(provider, 8).Collect(context.Background(), 20, true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for i, triple := range set {
		if triple.PublicKey == "" {
			t.Fatalf("Party %d has no key material", i)
		}
		if seen[triple.PublicKey] {
			t.Errorf("Public key %s handed to two parties", triple.PublicKey)
		}
		seen[triple.PublicKey] = true
		if triple.PrivateKey[len("priv-"):] != triple.PublicKey[len("pub-"):] {
			t.Errorf("Party %d mixes triples: %+v", i, triple)
		}
	}
	if provider.calls != 20 {
		t.Errorf("Expected 20 calls, got %d", provider.calls)
	}
}

func TestCollectRequiresServer(t *testing.T) {
	if _, err := NewService(&sequenceProvider{}, 1).Collect(context.Background(), 0, true); err == nil {
		t.Error("Expected error for zero parties")
	}
}
