package keys

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
)

// Service collects key material for every party from a KeyProvider.
type Service struct {
	provider network.KeyProvider
	workers  int
}

// NewService constructs a collector. workers bounds concurrent provider calls;
// values below 2 call the provider strictly in party order.
func NewService(provider network.KeyProvider, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{provider: provider, workers: workers}
}

// Collect calls the provider once per party, server first, and returns the
// triples indexed by party. The first failure aborts the whole collection:
// a partial set is never returned.
func (s *Service) Collect(ctx context.Context, partyCount int, presharedKeys bool) (network.KeySet, error) {
	if partyCount < 1 {
		return nil, fmt.Errorf("%w: at least the server party is required", network.ErrInvalidSpec)
	}
	set := make(network.KeySet, partyCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, party := range network.Parties(partyCount - 1) {
		party := party
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			triple, err := s.provider.GenerateKeyTriple(gctx, presharedKeys)
			if err != nil {
				return &network.ProviderError{Party: party, Err: err}
			}
			if err := checkTriple(triple, presharedKeys); err != nil {
				return &network.ProviderError{Party: party, Err: err}
			}
			if !presharedKeys {
				triple.PresharedKey = ""
			}
			set[party.Index] = triple
			log.Debug().Int("party", party.Index).Str("public_key", triple.PublicKey).Msg("collected key material")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

func checkTriple(triple network.KeyTriple, presharedKey bool) error {
	switch {
	case triple.PrivateKey == "":
		return fmt.Errorf("%w: private key", network.ErrEmptyKey)
	case triple.PublicKey == "":
		return fmt.Errorf("%w: public key", network.ErrEmptyKey)
	case presharedKey && triple.PresharedKey == "":
		return fmt.Errorf("%w: preshared key", network.ErrEmptyKey)
	}
	return nil
}
