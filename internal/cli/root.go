// Package cli wires the configuration layers, the provisioning service and
// the console output into a single cobra command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pbengert/wireguard-config-generator/internal/adapters/db/memory"
	"github.com/pbengert/wireguard-config-generator/internal/adapters/qr"
	"github.com/pbengert/wireguard-config-generator/internal/adapters/wg"
	appipam "github.com/pbengert/wireguard-config-generator/internal/application/ipam"
	appkeys "github.com/pbengert/wireguard-config-generator/internal/application/keys"
	"github.com/pbengert/wireguard-config-generator/internal/application/provision"
	"github.com/pbengert/wireguard-config-generator/internal/config"
	domainipam "github.com/pbengert/wireguard-config-generator/internal/domain/ipam"
	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
	"github.com/pbengert/wireguard-config-generator/pkg/wireguard"
)

// Exit codes
const (
	ExitOK      = 0
	ExitFatal   = 1 // invalid configuration, allocation or key collection failure
	ExitPartial = 2 // at least one document could not be written or encoded
)

// ExitError carries the process exit code of a failed run.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// Output formats
const (
	OutputTable = "table"
	OutputYAML  = "yaml"
	OutputNone  = "none"
)

// Dependencies are the side-effecting collaborators of the command.
type Dependencies struct {
	LookupEnv   func(string) (string, bool)
	NewProvider func(name string) (network.KeyProvider, error)
	Writer      provision.Writer
	Encoder     provision.Encoder
}

// DefaultDependencies reads the process environment and writes real files.
func DefaultDependencies() Dependencies {
	return Dependencies{
		LookupEnv:   os.LookupEnv,
		NewProvider: NewKeyProvider,
		Writer:      wg.NewWriter(),
		Encoder:     qr.NewEncoder(),
	}
}

// NewKeyProvider returns the key provider registered under name.
func NewKeyProvider(name string) (network.KeyProvider, error) {
	switch name {
	case config.ProviderNative:
		return wireguard.NewNativeProvider(), nil
	case config.ProviderTool:
		return wireguard.NewToolProvider(""), nil
	}
	return nil, fmt.Errorf("%w: unknown key provider %q", config.ErrInvalidOption, name)
}

// flagValues holds raw flag values; only flags marked Changed are applied.
type flagValues struct {
	useDefaults   bool
	configPath    string
	envFile       string
	debug         bool
	print         bool
	output        string
	keyWorkers    int
	writeWorkers  int
	listenPort    int
	endpointHost  string
	clients       int
	presharedKeys bool
	dns           string
	tunnel        string
	allowedIPs    string
	routeAll      bool
	natInterface  string
	serverName    string
	interfacePath string
	peerPath      string
	peerPrefix    int
	keyProvider   string
}

// NewRootCommand builds the command with the default dependencies.
func NewRootCommand() *cobra.Command {
	return newRootCommand(DefaultDependencies())
}

func newRootCommand(deps Dependencies) *cobra.Command {
	v := &flagValues{}

	cmd := &cobra.Command{
		Use:   "wgconfgen",
		Short: "Generate WireGuard configurations for a server and its peers",
		Long: `wgconfgen allocates tunnel addresses, generates key material and writes one
wg-quick configuration (plus a QR code image) for the server and every peer.

Options are resolved from, lowest to highest precedence: built-in defaults,
--config, --env-file, WG_* environment variables and command line flags.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, deps, v)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&v.useDefaults, "default", false, "ignore command line overrides; --config, --env-file and WG_* environment values still apply over the defaults")
	f.StringVarP(&v.configPath, "config", "c", "", "YAML file with configuration values")
	f.StringVarP(&v.envFile, "env-file", "e", "", "file of WG_* KEY=VALUE lines")
	f.BoolVarP(&v.debug, "debug", "d", false, "print debug logs too")
	f.BoolVarP(&v.print, "print", "p", false, "echo every rendered configuration to stdout with keys redacted")
	f.StringVarP(&v.output, "output", "o", OutputTable, "summary format: table, yaml or none")
	f.IntVar(&v.keyWorkers, "key-workers", 1, "number of parties whose key material is generated concurrently")
	f.IntVar(&v.writeWorkers, "write-workers", 1, "number of documents persisted concurrently")

	f.IntVar(&v.listenPort, "listen-port", 0, "UDP port of the server and the peers")
	f.StringVar(&v.endpointHost, "endpoint", "", "public host name or address peers connect to")
	f.IntVarP(&v.clients, "clients", "n", 0, "number of peers")
	f.VarPF(&strictBool{value: &v.presharedKeys}, "preshared-key", "k", "generate a preshared key per peer (true|false|1|0)").NoOptDefVal = "true"
	f.StringVar(&v.dns, "dns", "", "DNS server written into peer configurations, empty to omit")
	f.StringVarP(&v.tunnel, "tunnel", "t", "", "tunnel network in CIDR notation")
	f.StringVarP(&v.allowedIPs, "allowed-ips", "a", "", "comma separated ranges peers route through the server")
	f.VarPF(&strictBool{value: &v.routeAll}, "route-all", "r", "route all peer traffic through the server (true|false|1|0)").NoOptDefVal = "true"
	f.StringVar(&v.natInterface, "nat", "", "server interface to masquerade peer traffic on, empty to disable")
	f.StringVar(&v.serverName, "server-name", "", "server label and file name")
	f.StringVarP(&v.interfacePath, "interface-path", "i", "", "directory for the server configuration")
	f.StringVarP(&v.peerPath, "peer-path", "P", "", "directory for the peer configurations")
	f.IntVar(&v.peerPrefix, "peer-prefix", 0, "prefix length of the address written into peer configurations")
	f.StringVar(&v.keyProvider, "key-provider", "", "key material source: native or wg")

	return cmd
}

func run(cmd *cobra.Command, deps Dependencies, v *flagValues) error {
	cmd.SilenceUsage = true
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if v.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if !validOutput(v.output) {
		return &ExitError{Code: ExitFatal, Err: fmt.Errorf("%w: --output must be one of %s, %s or %s, not %q", config.ErrInvalidOption, OutputTable, OutputYAML, OutputNone, v.output)}
	}

	opts, err := resolveOptions(cmd, deps, v)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: fmt.Errorf("%w (see --help)", err)}
	}
	spec, err := opts.Spec()
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: fmt.Errorf("%w (see --help)", err)}
	}
	provider, err := deps.NewProvider(opts.Provider())
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	allocator := appipam.NewService(func(ctx context.Context) domainipam.Repository {
		return memory.NewIPAMRepository(ctx)
	})
	svc := provision.NewService(allocator, appkeys.NewService(provider, v.keyWorkers), deps.Writer, deps.Encoder).
		WithWorkers(v.writeWorkers)

	result, err := svc.Run(cmd.Context(), spec)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	out := cmd.OutOrStdout()
	if v.print {
		printDocuments(out, result.Documents)
	}
	if err := writeSummary(out, v.output, result); err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	if err := result.Err(); err != nil {
		return &ExitError{Code: ExitPartial, Err: err}
	}
	return nil
}

// resolveOptions layers defaults, files, environment and flags.
func resolveOptions(cmd *cobra.Command, deps Dependencies, v *flagValues) (config.Options, error) {
	layers := []config.Options{config.Defaults()}

	if v.configPath != "" {
		opts, err := config.ReadFile(v.configPath)
		if err != nil {
			return config.Options{}, err
		}
		layers = append(layers, opts)
	}
	if v.envFile != "" {
		opts, err := config.ReadEnvFile(v.envFile)
		if err != nil {
			return config.Options{}, err
		}
		layers = append(layers, opts)
	}

	environ, err := config.FromEnvironment(deps.LookupEnv)
	if err != nil {
		return config.Options{}, err
	}
	layers = append(layers, environ)

	if v.useDefaults {
		log.Debug().Msg("--default set, ignoring command line overrides")
	} else {
		layers = append(layers, flagOptions(cmd, v))
	}

	return config.Merge(layers...), nil
}

func flagOptions(cmd *cobra.Command, v *flagValues) config.Options {
	var opts config.Options
	changed := cmd.Flags().Changed

	if changed("listen-port") {
		opts.ListenPort = &v.listenPort
	}
	if changed("endpoint") {
		opts.EndpointHost = &v.endpointHost
	}
	if changed("clients") {
		opts.Clients = &v.clients
	}
	if changed("preshared-key") {
		opts.PresharedKeys = &v.presharedKeys
	}
	if changed("dns") {
		opts.DNS = &v.dns
	}
	if changed("tunnel") {
		opts.TunnelNetwork = &v.tunnel
	}
	if changed("allowed-ips") {
		opts.AllowedIPs = &v.allowedIPs
	}
	if changed("route-all") {
		opts.RouteAll = &v.routeAll
	}
	if changed("nat") {
		opts.NATInterface = &v.natInterface
	}
	if changed("server-name") {
		opts.ServerName = &v.serverName
	}
	if changed("interface-path") {
		opts.InterfaceOutputPath = &v.interfacePath
	}
	if changed("peer-path") {
		opts.PeerOutputPath = &v.peerPath
	}
	if changed("peer-prefix") {
		opts.PeerPrefixLength = &v.peerPrefix
	}
	if changed("key-provider") {
		opts.KeyProvider = &v.keyProvider
	}

	return opts
}

func validOutput(format string) bool {
	switch format {
	case OutputTable, OutputYAML, OutputNone:
		return true
	}
	return false
}

// strictBool is a boolean flag accepting only true, false, 1 and 0.
type strictBool struct {
	value *bool
}

func (b *strictBool) String() string {
	if b.value == nil {
		return "false"
	}
	return strconv.FormatBool(*b.value)
}

func (b *strictBool) Set(s string) error {
	parsed, err := config.ParseBool(s)
	if err != nil {
		return err
	}
	*b.value = parsed
	return nil
}

func (b *strictBool) Type() string { return "bool" }

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return execute(NewRootCommand(), os.Stderr)
}

func execute(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code == ExitPartial {
			log.Warn().Err(exitErr.Err).Msg("some documents could not be written")
		} else {
			log.Error().Err(exitErr.Err).Msg("provisioning failed")
		}
		return exitErr.Code
	}

	// Flag parsing errors
	fmt.Fprintf(stderr, "Error: %v\nRun '%s --help' for usage.\n", err, cmd.CommandPath())
	return ExitFatal
}
