package ipam

import (
	"context"
)

// Prefix describes a subnet held by the ledger.
type Prefix struct {
	CIDR        string
	UsableHosts int
}

// Repository records which host addresses of a subnet are taken.
// Network and broadcast addresses are never handed out. Usage reports the
// free hosts left, so callers can confirm what a series of reservations took.
type Repository interface {
	EnsurePrefix(ctx context.Context, cidr string) (*Prefix, error)
	AcquireSpecificIP(ctx context.Context, cidr string, ip string) (string, error)
	Usage(ctx context.Context, cidr string) (*Prefix, error)
}
