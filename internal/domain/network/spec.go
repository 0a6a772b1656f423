package network

import (
	"errors"
	"fmt"
	"net/netip"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/miekg/dns"

	"github.com/pbengert/wireguard-config-generator/internal/infrastructure/validation"
)

// CatchAllRoute is the AllowedIPs value emitted for full-tunnel peers.
const CatchAllRoute = "0.0.0.0/0"

// Spec is the immutable description of one provisioning run.
type Spec struct {
	BaseAddress         netip.Addr `json:"base_address"`
	PrefixLength        int        `json:"prefix_length"`
	PeerCount           int        `json:"peer_count" validate:"gte=0"`
	ListenPort          int        `json:"listen_port" validate:"gte=1,lte=65535"`
	EndpointHost        string     `json:"endpoint_host" validate:"required"`
	DNSServer           string     `json:"dns_server,omitempty"` // Empty disables the DNS line
	AllowedIPs          string     `json:"allowed_ips"`         // Comma separated CIDRs, ignored when RouteAllTraffic
	RouteAllTraffic     bool       `json:"route_all_traffic"`
	NATInterface        string     `json:"nat_interface,omitempty"` // Empty disables PostUp/PostDown
	PresharedKeys       bool       `json:"preshared_keys"`
	ServerName          string     `json:"server_name" validate:"required,ifname"`
	InterfaceOutputPath string     `json:"interface_output_path" validate:"required"`
	PeerOutputPath      string     `json:"peer_output_path" validate:"required"`
	PeerPrefixLength    int        `json:"peer_prefix_length" validate:"gte=0,lte=32"` // Address width written into peer documents
}

// Endpoint returns the host:port peers dial.
func (s *Spec) Endpoint() string {
	return fmt.Sprintf("%s:%d", s.EndpointHost, s.ListenPort)
}

// PartyCount is the number of parties (server plus peers).
func (s *Spec) PartyCount() int {
	return s.PeerCount + 1
}

// AllowedIPList returns the configured allowed ranges, trimmed, in input order.
func (s *Spec) AllowedIPList() []string {
	var out []string
	for _, r := range strings.Split(s.AllowedIPs, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// ifname: usable as file stem and wg-quick interface name
	_ = v.RegisterValidation("ifname", func(fl validator.FieldLevel) bool {
		return validation.ValidateInterfaceName(fl.Field().String()) == nil
	})
	return v
}

// Validate checks every field of the spec. Errors name the offending field.
// Prefix and subnet-fit checks belong to the allocator and are not repeated here.
func (s *Spec) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &SpecError{Field: fe.Field(), Value: fmt.Sprint(fe.Value()), Err: fmt.Errorf("%w: failed %q check", ErrInvalidSpec, fe.Tag())}
		}
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	if !s.BaseAddress.IsValid() || !s.BaseAddress.Is4() {
		return &SpecError{Field: "BaseAddress", Value: s.BaseAddress.String(), Err: ErrNotIPv4}
	}

	if err := validateHost(s.EndpointHost); err != nil {
		return &SpecError{Field: "EndpointHost", Value: s.EndpointHost, Err: err}
	}

	if s.DNSServer != "" {
		if _, err := netip.ParseAddr(s.DNSServer); err != nil {
			return &SpecError{Field: "DNSServer", Value: s.DNSServer, Err: fmt.Errorf("%w: %v", ErrInvalidSpec, err)}
		}
	}

	if filepath.Clean(s.InterfaceOutputPath) == filepath.Clean(s.PeerOutputPath) {
		for i := 1; i <= s.PeerCount; i++ {
			if s.ServerName == PeerStem(i) {
				return &SpecError{Field: "ServerName", Value: s.ServerName, Err: fmt.Errorf("%w: same file as peer %d in %s", ErrInvalidSpec, i, s.PeerOutputPath)}
			}
		}
	}

	if !s.RouteAllTraffic {
		ranges := s.AllowedIPList()
		if len(ranges) == 0 {
			return &SpecError{Field: "AllowedIPs", Value: s.AllowedIPs, Err: fmt.Errorf("%w: at least one range is required unless all traffic is routed", ErrInvalidSpec)}
		}
		for _, r := range ranges {
			if _, err := netip.ParsePrefix(r); err != nil {
				return &SpecError{Field: "AllowedIPs", Value: r, Err: fmt.Errorf("%w: %v", ErrInvalidSpec, err)}
			}
		}
	}

	return nil
}

// validateHost accepts an IP literal or a syntactically valid domain name.
func validateHost(host string) error {
	if _, err := netip.ParseAddr(host); err == nil {
		return nil
	}
	if strings.ContainsAny(host, " :/") {
		return fmt.Errorf("%w: %q is neither an IP address nor a host name", ErrInvalidSpec, host)
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return fmt.Errorf("%w: %q is not a valid host name", ErrInvalidSpec, host)
	}
	return nil
}
