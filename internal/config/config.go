package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	env "github.com/hashicorp/go-envparse"
	"gopkg.in/yaml.v3"

	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
)

// ErrInvalidOption is returned for any option that cannot be parsed.
var ErrInvalidOption = errors.New("invalid option")

// Environment variables
const (
	EnvListenPort          = "WG_LISTEN_PORT"
	EnvEndpointHost        = "WG_ENDPOINT_HOST"
	EnvClients             = "WG_CLIENTS"
	EnvPresharedKey        = "WG_PRESHARED_KEY"
	EnvDNS                 = "WG_DNS"
	EnvTunnelNetwork       = "WG_TUNNEL_NETWORK"
	EnvAllowedIPs          = "WG_ALLOWED_IPS"
	EnvRouteAll            = "WG_ROUTE_ALL"
	EnvNATInterface        = "WG_NAT_INTERFACE"
	EnvServerName          = "WG_SERVER_NAME"
	EnvInterfaceOutputPath = "WG_INTERFACE_OUTPUT_PATH"
	EnvPeerOutputPath      = "WG_PEER_OUTPUT_PATH"
	EnvPeerPrefixLength    = "WG_PEER_PREFIX_LENGTH"
	EnvKeyProvider         = "WG_KEY_PROVIDER"
)

// EnvKeys lists every recognized environment variable.
var EnvKeys = []string{
	EnvListenPort, EnvEndpointHost, EnvClients, EnvPresharedKey, EnvDNS,
	EnvTunnelNetwork, EnvAllowedIPs, EnvRouteAll, EnvNATInterface, EnvServerName,
	EnvInterfaceOutputPath, EnvPeerOutputPath, EnvPeerPrefixLength, EnvKeyProvider,
}

// Key providers
const (
	ProviderNative = "native"
	ProviderTool   = "wg"
)

// Options is one configuration layer. Fields are pointers so a layer only
// overrides what it actually sets.
type Options struct {
	ListenPort          *int    `yaml:"listenPort"`
	EndpointHost        *string `yaml:"endpointHost"`
	Clients             *int    `yaml:"clients"`
	PresharedKeys       *bool   `yaml:"presharedKeys"`
	DNS                 *string `yaml:"dns"`           // Empty disables the DNS line
	TunnelNetwork       *string `yaml:"tunnelNetwork"` // CIDR, e.g. 10.99.99.0/24
	AllowedIPs          *string `yaml:"allowedIPs"`
	RouteAll            *bool   `yaml:"routeAll"`
	NATInterface        *string `yaml:"natInterface"` // Empty disables PostUp/PostDown
	ServerName          *string `yaml:"serverName"`
	InterfaceOutputPath *string `yaml:"interfaceOutputPath"`
	PeerOutputPath      *string `yaml:"peerOutputPath"`
	PeerPrefixLength    *int    `yaml:"peerPrefixLength"`
	KeyProvider         *string `yaml:"keyProvider" validate:"omitempty,oneof=native wg"`
}

func ptr[T any](v T) *T { return &v }

// Defaults returns the built-in configuration.
func Defaults() Options {
	return Options{
		ListenPort:          ptr(51820),
		EndpointHost:        ptr("example.myip.com"),
		Clients:             ptr(3),
		PresharedKeys:       ptr(true),
		DNS:                 ptr("1.1.1.1"),
		TunnelNetwork:       ptr("10.99.99.0/24"),
		AllowedIPs:          ptr("192.168.1.0/24"),
		RouteAll:            ptr(false),
		NATInterface:        ptr(""),
		ServerName:          ptr("server"),
		InterfaceOutputPath: ptr("."),
		PeerOutputPath:      ptr("."),
		PeerPrefixLength:    ptr(24),
		KeyProvider:         ptr(ProviderNative),
	}
}

// ReadFile reads a YAML configuration layer. Unknown keys are rejected.
func ReadFile(path string) (Options, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to open config file: %w", err)
	}

	var opts Options
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return Options{}, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return opts, nil
}

// ReadEnvFile reads a KEY=VALUE file using the same variables as the
// process environment.
func ReadEnvFile(path string) (Options, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to open env file: %w", err)
	}

	values, err := env.Parse(bytes.NewReader(content))
	if err != nil {
		return Options{}, fmt.Errorf("failed to load env file %s: %w", path, err)
	}

	var opts Options
	for key, value := range values {
		if err := opts.Set(key, value); err != nil {
			return Options{}, err
		}
	}
	return opts, nil
}

// FromEnvironment builds a layer from the recognized variables found by lookup,
// usually os.LookupEnv.
func FromEnvironment(lookup func(string) (string, bool)) (Options, error) {
	var opts Options
	for _, key := range EnvKeys {
		value, ok := lookup(key)
		if !ok {
			continue
		}
		if err := opts.Set(key, value); err != nil {
			return Options{}, err
		}
	}
	return opts, nil
}

// Set applies one environment variable. An empty value clears the optional
// DNS and NAT fields and is ignored for everything else.
func (o *Options) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case EnvDNS:
		o.DNS = ptr(value)
		return nil
	case EnvNATInterface:
		o.NATInterface = ptr(value)
		return nil
	}
	if value == "" {
		if !isKnown(key) {
			return fmt.Errorf("%w: key %v is invalid", ErrInvalidOption, key)
		}
		return nil
	}

	var err error
	switch key {
	case EnvListenPort:
		o.ListenPort, err = parseInt(key, value)
	case EnvClients:
		o.Clients, err = parseInt(key, value)
	case EnvPeerPrefixLength:
		o.PeerPrefixLength, err = parseInt(key, value)
	case EnvPresharedKey:
		o.PresharedKeys, err = parseBool(key, value)
	case EnvRouteAll:
		o.RouteAll, err = parseBool(key, value)
	case EnvEndpointHost:
		o.EndpointHost = ptr(value)
	case EnvTunnelNetwork:
		o.TunnelNetwork = ptr(value)
	case EnvAllowedIPs:
		o.AllowedIPs = ptr(value)
	case EnvServerName:
		o.ServerName = ptr(value)
	case EnvInterfaceOutputPath:
		o.InterfaceOutputPath = ptr(value)
	case EnvPeerOutputPath:
		o.PeerOutputPath = ptr(value)
	case EnvKeyProvider:
		o.KeyProvider = ptr(value)
	default:
		return fmt.Errorf("%w: key %v is invalid", ErrInvalidOption, key)
	}
	return err
}

func isKnown(key string) bool {
	for _, k := range EnvKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Merge layers options in precedence order: the last layer wins.
func Merge(layers ...Options) Options {
	var result Options

	for _, l := range layers {
		if l.ListenPort != nil {
			result.ListenPort = l.ListenPort
		}
		if l.EndpointHost != nil {
			result.EndpointHost = l.EndpointHost
		}
		if l.Clients != nil {
			result.Clients = l.Clients
		}
		if l.PresharedKeys != nil {
			result.PresharedKeys = l.PresharedKeys
		}
		if l.DNS != nil {
			result.DNS = l.DNS
		}
		if l.TunnelNetwork != nil {
			result.TunnelNetwork = l.TunnelNetwork
		}
		if l.AllowedIPs != nil {
			result.AllowedIPs = l.AllowedIPs
		}
		if l.RouteAll != nil {
			result.RouteAll = l.RouteAll
		}
		if l.NATInterface != nil {
			result.NATInterface = l.NATInterface
		}
		if l.ServerName != nil {
			result.ServerName = l.ServerName
		}
		if l.InterfaceOutputPath != nil {
			result.InterfaceOutputPath = l.InterfaceOutputPath
		}
		if l.PeerOutputPath != nil {
			result.PeerOutputPath = l.PeerOutputPath
		}
		if l.PeerPrefixLength != nil {
			result.PeerPrefixLength = l.PeerPrefixLength
		}
		if l.KeyProvider != nil {
			result.KeyProvider = l.KeyProvider
		}
	}

	return result
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Spec resolves the options over the defaults into a network spec.
func (o Options) Spec() (*network.Spec, error) {
	r := Merge(Defaults(), o)

	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOption, EnvKeyProvider, err)
	}

	base, bits, err := ParseTunnelNetwork(*r.TunnelNetwork)
	if err != nil {
		return nil, err
	}

	return &network.Spec{
		BaseAddress:         base,
		PrefixLength:        bits,
		PeerCount:           *r.Clients,
		ListenPort:          *r.ListenPort,
		EndpointHost:        *r.EndpointHost,
		DNSServer:           *r.DNS,
		AllowedIPs:          *r.AllowedIPs,
		RouteAllTraffic:     *r.RouteAll,
		NATInterface:        *r.NATInterface,
		PresharedKeys:       *r.PresharedKeys,
		ServerName:          *r.ServerName,
		InterfaceOutputPath: *r.InterfaceOutputPath,
		PeerOutputPath:      *r.PeerOutputPath,
		PeerPrefixLength:    *r.PeerPrefixLength,
	}, nil
}

// Provider returns the resolved key provider name.
func (o Options) Provider() string {
	return *Merge(Defaults(), o).KeyProvider
}

// ParseTunnelNetwork splits a CIDR into base address and prefix length.
// The prefix length is only checked for being a number; its range is
// enforced by the allocator.
func ParseTunnelNetwork(cidr string) (netip.Addr, int, error) {
	addr, bits, ok := strings.Cut(strings.TrimSpace(cidr), "/")
	if !ok {
		return netip.Addr{}, 0, fmt.Errorf("%w: %s=%q: missing prefix length", ErrInvalidOption, EnvTunnelNetwork, cidr)
	}
	base, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("%w: %s=%q: %v", ErrInvalidOption, EnvTunnelNetwork, cidr, err)
	}
	n, err := strconv.Atoi(bits)
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("%w: %s=%q: prefix length is not a number", ErrInvalidOption, EnvTunnelNetwork, cidr)
	}
	return base, n, nil
}

// ParseBool accepts true, false, 1 and 0 (case-insensitive) and nothing else.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%q is not one of true, false, 1, 0", s)
}

func parseBool(key, value string) (*bool, error) {
	b, err := ParseBool(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOption, key, err)
	}
	return &b, nil
}

func parseInt(key, value string) (*int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidOption, key, value)
	}
	return &n, nil
}
