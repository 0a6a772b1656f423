package network

import (
	"context"
	"fmt"
	"net/netip"
)

// Party is either the server (Index 0) or peer Index (1..N).
type Party struct {
	Index int `json:"index"`
}

// Server is the party owning the listening interface.
var Server = Party{Index: 0}

// Peer returns peer i, counted from 1.
func Peer(i int) Party { return Party{Index: i} }

// IsServer reports whether p is the server party.
func (p Party) IsServer() bool { return p.Index == 0 }

func (p Party) String() string {
	if p.IsServer() {
		return "server"
	}
	return fmt.Sprintf("peer %d", p.Index)
}

// Parties lists the server followed by every peer in ascending order.
func Parties(peerCount int) []Party {
	out := make([]Party, 0, peerCount+1)
	for i := 0; i <= peerCount; i++ {
		out = append(out, Party{Index: i})
	}
	return out
}

// AddressPlan holds one host address per party, indexed by Party.Index.
type AddressPlan struct {
	Subnet    netip.Prefix
	Addresses []netip.Addr
}

// Address returns the address assigned to p.
func (a AddressPlan) Address(p Party) netip.Addr {
	return a.Addresses[p.Index]
}

// ServerAddress returns the server's address.
func (a AddressPlan) ServerAddress() netip.Addr {
	return a.Addresses[0]
}

// Len is the number of addressed parties.
func (a AddressPlan) Len() int { return len(a.Addresses) }

// KeyTriple is the key material of one party. Tokens are opaque and only echoed.
// PresharedKey is empty when preshared keys are disabled.
type KeyTriple struct {
	PrivateKey   string `json:"-"`
	PublicKey    string `json:"public_key"`
	PresharedKey string `json:"-"`
}

// KeySet is the key material of every party, indexed by Party.Index.
type KeySet []KeyTriple

// For returns the triple owned by p.
func (k KeySet) For(p Party) KeyTriple { return k[p.Index] }

// KeyProvider produces a fresh key triple per call. Implementations must be
// safe for concurrent use.
type KeyProvider interface {
	GenerateKeyTriple(ctx context.Context, presharedKey bool) (KeyTriple, error)
}

// Document is one rendered configuration file.
type Document struct {
	Party   Party
	Stem    string // File name without extension
	Content string
}

// PeerStem is the file stem used for peer i.
func PeerStem(i int) string {
	return fmt.Sprintf("client_%d", i)
}
