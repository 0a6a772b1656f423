package memory

import (
	"context"
	"fmt"

	"github.com/pbengert/wireguard-config-generator/internal/domain/ipam"

	goipam "github.com/metal-stack/go-ipam"
)

// IPAMRepository is an in-memory implementation of ipam.Repository backed by go-ipam.
type IPAMRepository struct {
	engine goipam.Ipamer
}

// NewIPAMRepository creates a new in-memory IPAM repository.
func NewIPAMRepository(ctx context.Context) *IPAMRepository {
	return &IPAMRepository{engine: goipam.New(ctx)}
}

// EnsurePrefix ensures a prefix exists (creates if missing).
func (r *IPAMRepository) EnsurePrefix(ctx context.Context, cidr string) (*ipam.Prefix, error) {
	p, err := r.engine.PrefixFrom(ctx, cidr)
	if err != nil {
		p, err = r.engine.NewPrefix(ctx, cidr)
		if err != nil {
			return nil, fmt.Errorf("ensure prefix: %w", err)
		}
	}
	return toPrefix(p), nil
}

func (r *IPAMRepository) AcquireSpecificIP(ctx context.Context, cidr string, ip string) (string, error) {
	ipObj, err := r.engine.AcquireSpecificIP(ctx, cidr, ip)
	if err != nil {
		return "", err
	}
	return ipObj.IP.String(), nil
}

func (r *IPAMRepository) Usage(ctx context.Context, cidr string) (*ipam.Prefix, error) {
	p, err := r.engine.PrefixFrom(ctx, cidr)
	if err != nil {
		return nil, fmt.Errorf("prefix not found: %w", err)
	}
	return toPrefix(p), nil
}

func toPrefix(p *goipam.Prefix) *ipam.Prefix {
	usage := p.Usage()
	return &ipam.Prefix{CIDR: p.Cidr, UsableHosts: int(usage.AvailableIPs - usage.AcquiredIPs)} // #nosec G115 - bounded by a /0 IPv4 prefix
}

// Interface compliance assertion
var _ ipam.Repository = (*IPAMRepository)(nil)
