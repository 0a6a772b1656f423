package wireguard

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
)

// RenderServer renders the server interface with one [Peer] section per peer.
func RenderServer(spec *network.Spec, plan network.AddressPlan, keys network.KeySet) (network.Document, error) {
	if err := checkInputs(spec, plan, keys); err != nil {
		return network.Document{}, err
	}

	var sb strings.Builder
	server := keys.For(network.Server)

	// [Interface] section
	sb.WriteString("[Interface]\n")
	sb.WriteString(fmt.Sprintf("# Name: %s\n", spec.ServerName))
	sb.WriteString(fmt.Sprintf("Address = %s/%d\n", plan.ServerAddress(), spec.PrefixLength))
	sb.WriteString(fmt.Sprintf("ListenPort = %d\n", spec.ListenPort))
	sb.WriteString(fmt.Sprintf("PrivateKey = %s\n", server.PrivateKey))
	if spec.NATInterface != "" {
		sb.WriteString(fmt.Sprintf("PostUp = %s\n", natRules("-A", spec.NATInterface)))
		sb.WriteString(fmt.Sprintf("PostDown = %s\n", natRules("-D", spec.NATInterface)))
	}

	// The server only routes a peer's own host address
	for _, peer := range network.Parties(spec.PeerCount)[1:] {
		triple := keys.For(peer)
		sb.WriteString("[Peer]\n")
		sb.WriteString(fmt.Sprintf("# Name: %s\n", network.PeerStem(peer.Index)))
		sb.WriteString(fmt.Sprintf("PublicKey = %s\n", triple.PublicKey))
		if spec.PresharedKeys {
			sb.WriteString(fmt.Sprintf("PresharedKey = %s\n", triple.PresharedKey))
		}
		sb.WriteString(fmt.Sprintf("AllowedIPs = %s/32\n", plan.Address(peer)))
	}

	return network.Document{Party: network.Server, Stem: spec.ServerName, Content: sb.String()}, nil
}

// RenderPeer renders the document of peer i (1..PeerCount).
func RenderPeer(spec *network.Spec, plan network.AddressPlan, keys network.KeySet, i int) (network.Document, error) {
	if err := checkInputs(spec, plan, keys); err != nil {
		return network.Document{}, err
	}
	if i < 1 || i > spec.PeerCount {
		return network.Document{}, fmt.Errorf("peer index %d out of range 1..%d", i, spec.PeerCount)
	}

	var sb strings.Builder
	peer := network.Peer(i)
	own := keys.For(peer)

	// [Interface] section
	sb.WriteString("[Interface]\n")
	sb.WriteString(fmt.Sprintf("Address = %s/%d\n", plan.Address(peer), spec.PeerPrefixLength))
	sb.WriteString(fmt.Sprintf("ListenPort = %d\n", spec.ListenPort))
	sb.WriteString(fmt.Sprintf("PrivateKey = %s\n", own.PrivateKey))
	if spec.DNSServer != "" {
		sb.WriteString(fmt.Sprintf("DNS = %s\n", spec.DNSServer))
	}

	// [Peer] section for the server
	sb.WriteString("[Peer]\n")
	sb.WriteString(fmt.Sprintf("# Name: %s\n", spec.ServerName))
	sb.WriteString(fmt.Sprintf("PublicKey = %s\n", keys.For(network.Server).PublicKey))
	if spec.PresharedKeys {
		sb.WriteString(fmt.Sprintf("PresharedKey = %s\n", own.PresharedKey))
	}
	sb.WriteString(fmt.Sprintf("AllowedIPs = %s\n", strings.Join(peerAllowedIPs(spec, plan), ", ")))
	sb.WriteString(fmt.Sprintf("Endpoint = %s\n", spec.Endpoint()))

	return network.Document{Party: peer, Stem: network.PeerStem(i), Content: sb.String()}, nil
}

// RenderAll renders the server document followed by every peer document.
func RenderAll(spec *network.Spec, plan network.AddressPlan, keys network.KeySet) ([]network.Document, error) {
	docs := make([]network.Document, 0, spec.PartyCount())

	server, err := RenderServer(spec, plan, keys)
	if err != nil {
		return nil, err
	}
	docs = append(docs, server)

	for i := 1; i <= spec.PeerCount; i++ {
		doc, err := RenderPeer(spec, plan, keys, i)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// peerAllowedIPs determines the AllowedIPs a peer routes through the server
func peerAllowedIPs(spec *network.Spec, plan network.AddressPlan) []string {
	if spec.RouteAllTraffic {
		return []string{network.CatchAllRoute}
	}
	allowedIPs := spec.AllowedIPList()
	return append(allowedIPs, plan.ServerAddress().String()+"/32")
}

// natRules builds the forwarding and masquerade rules; op is -A to add or -D to delete.
// %i is expanded by wg-quick to the interface name.
func natRules(op, iface string) string {
	return fmt.Sprintf("iptables %s FORWARD -i %%i -j ACCEPT; iptables -t nat %s POSTROUTING -o %s -j MASQUERADE", op, op, iface)
}

func checkInputs(spec *network.Spec, plan network.AddressPlan, keys network.KeySet) error {
	if plan.Len() != spec.PartyCount() {
		return fmt.Errorf("address plan has %d entries, want %d", plan.Len(), spec.PartyCount())
	}
	if len(keys) != spec.PartyCount() {
		return fmt.Errorf("key set has %d entries, want %d", len(keys), spec.PartyCount())
	}
	return nil
}

// RedactKeys redacts PrivateKey and PresharedKey values for logging.
func RedactKeys(cfg string) string {
	scanner := bufio.NewScanner(strings.NewReader(cfg))
	var b strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch trimmed := strings.TrimSpace(line); {
		case strings.HasPrefix(trimmed, "PrivateKey ="):
			b.WriteString("PrivateKey = <redacted>\n")
		case strings.HasPrefix(trimmed, "PresharedKey ="):
			b.WriteString("PresharedKey = <redacted>\n")
		default:
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
