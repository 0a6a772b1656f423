package ipam

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/pbengert/wireguard-config-generator/internal/domain/ipam"
	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
)

// LedgerFactory returns an empty ledger. Every allocation gets its own ledger,
// so Allocate has no state that outlives the call.
type LedgerFactory func(ctx context.Context) ipam.Repository

// Service turns a network spec into an address plan.
type Service struct {
	newLedger LedgerFactory
}

// NewService constructs an allocator reserving addresses through ledgers
// produced by newLedger.
func NewService(newLedger LedgerFactory) *Service { return &Service{newLedger: newLedger} }

// Allocate assigns the server host 1 of the subnet and peer i host 1+i.
// Hosts are counted in the last octet only: a plan that would need to carry
// into the third octet fails with ErrSubnetTooSmall instead of wrapping.
func (s *Service) Allocate(ctx context.Context, spec *network.Spec) (network.AddressPlan, error) {
	if spec.PrefixLength < 0 || spec.PrefixLength > 32 {
		return network.AddressPlan{}, &network.AllocationError{
			Field: "PrefixLength",
			Value: strconv.Itoa(spec.PrefixLength),
			Err:   network.ErrInvalidPrefix,
		}
	}
	if !spec.BaseAddress.Is4() {
		return network.AddressPlan{}, &network.AllocationError{
			Field: "BaseAddress",
			Value: spec.BaseAddress.String(),
			Err:   network.ErrNotIPv4,
		}
	}
	if spec.PeerCount < 0 {
		return network.AddressPlan{}, &network.AllocationError{
			Field: "PeerCount",
			Value: strconv.Itoa(spec.PeerCount),
			Err:   fmt.Errorf("%w: peer count must not be negative", network.ErrInvalidSpec),
		}
	}

	subnet := netip.PrefixFrom(spec.BaseAddress, spec.PrefixLength).Masked()
	hosts := spec.PartyCount()

	if uint64(hosts) > UsableHosts(spec.PrefixLength) {
		return network.AddressPlan{}, tooSmall(subnet, hosts, fmt.Sprintf("%d usable hosts", UsableHosts(spec.PrefixLength)))
	}
	first := subnet.Addr().As4()
	if int(first[3])+hosts > 255 {
		return network.AddressPlan{}, tooSmall(subnet, hosts, fmt.Sprintf("last octet would exceed 255 starting from .%d", first[3]))
	}

	ledger := s.newLedger(ctx)
	before, err := ledger.EnsurePrefix(ctx, subnet.String())
	if err != nil {
		return network.AddressPlan{}, fmt.Errorf("prepare ledger for %s: %w", subnet, err)
	}

	plan := network.AddressPlan{Subnet: subnet, Addresses: make([]netip.Addr, 0, hosts)}
	for i := 0; i < hosts; i++ {
		octets := first
		octets[3] += byte(1 + i)
		addr := netip.AddrFrom4(octets)
		if _, err := ledger.AcquireSpecificIP(ctx, subnet.String(), addr.String()); err != nil {
			return network.AddressPlan{}, &network.AllocationError{
				Field: "PeerCount",
				Value: strconv.Itoa(spec.PeerCount),
				Hint:  fmt.Sprintf("%s unavailable: %v", addr, err),
				Err:   network.ErrSubnetTooSmall,
			}
		}
		plan.Addresses = append(plan.Addresses, addr)
	}

	after, err := ledger.Usage(ctx, subnet.String())
	if err != nil {
		return network.AddressPlan{}, fmt.Errorf("read ledger for %s: %w", subnet, err)
	}
	if reserved := before.UsableHosts - after.UsableHosts; reserved != hosts {
		return network.AddressPlan{}, fmt.Errorf("ledger for %s reports %d reserved addresses, want %d", subnet, reserved, hosts)
	}

	return plan, nil
}

// UsableHosts is the number of assignable hosts in an IPv4 prefix of the given
// length, excluding the network and broadcast addresses.
func UsableHosts(prefixLen int) uint64 {
	if prefixLen < 0 || prefixLen > 30 {
		return 0
	}
	return (uint64(1) << (32 - prefixLen)) - 2
}

// SuggestPrefix returns the longest prefix length whose subnet holds at least
// hosts assignable addresses, or -1 when no IPv4 subnet can.
func SuggestPrefix(hosts int) int {
	// Usable hosts = 2^(32-prefix) - 2
	prefixLen := 30
	for prefixLen >= 0 {
		if UsableHosts(prefixLen) >= uint64(hosts) {
			return prefixLen
		}
		prefixLen--
	}
	return -1
}

func tooSmall(subnet netip.Prefix, hosts int, reason string) error {
	hint := reason
	if p := SuggestPrefix(hosts); p >= 0 {
		hint = fmt.Sprintf("%s; %d hosts need at least a /%d", reason, hosts, p)
	}
	return &network.AllocationError{
		Field: "PeerCount",
		Value: fmt.Sprintf("%d in %s", hosts-1, subnet),
		Hint:  hint,
		Err:   network.ErrSubnetTooSmall,
	}
}
