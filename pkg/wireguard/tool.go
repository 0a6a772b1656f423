package wireguard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
)

// CommandRunner runs name with args, feeding stdin, and returns stdout.
type CommandRunner func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

// ToolProvider obtains key material from the wg(8) command line tool.
type ToolProvider struct {
	Binary string
	run    CommandRunner
}

// NewToolProvider returns a provider calling binary (default "wg").
func NewToolProvider(binary string) *ToolProvider {
	if binary == "" {
		binary = "wg"
	}
	return &ToolProvider{Binary: binary, run: execRunner}
}

// WithRunner replaces the command runner, mainly for tests.
func (p *ToolProvider) WithRunner(run CommandRunner) *ToolProvider {
	p.run = run
	return p
}

func (p *ToolProvider) GenerateKeyTriple(ctx context.Context, presharedKey bool) (network.KeyTriple, error) {
	private, err := p.key(ctx, nil, "genkey")
	if err != nil {
		return network.KeyTriple{}, err
	}
	public, err := p.key(ctx, strings.NewReader(private+"\n"), "pubkey")
	if err != nil {
		return network.KeyTriple{}, err
	}
	triple := network.KeyTriple{PrivateKey: private, PublicKey: public}

	if presharedKey {
		psk, err := p.key(ctx, nil, "genpsk")
		if err != nil {
			return network.KeyTriple{}, err
		}
		triple.PresharedKey = psk
	}

	return triple, nil
}

// key runs one wg subcommand and checks its output is a well-formed key.
func (p *ToolProvider) key(ctx context.Context, stdin io.Reader, sub string) (string, error) {
	out, err := p.run(ctx, stdin, p.Binary, sub)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %v", network.ErrProviderUnavailable, p.Binary, sub, err)
	}
	key := strings.TrimSpace(string(out))
	if _, err := wgtypes.ParseKey(key); err != nil {
		return "", fmt.Errorf("%w: %s %s returned a malformed key: %v", network.ErrProviderUnavailable, p.Binary, sub, err)
	}
	return key, nil
}

func execRunner(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, name, args...) // #nosec G204
	var out, errBuf bytes.Buffer
	c.Stdin = stdin
	c.Stdout = &out
	c.Stderr = &errBuf
	if err := c.Run(); err != nil {
		return nil, fmt.Errorf("%v stderr=%s", err, strings.TrimSpace(errBuf.String()))
	}
	return out.Bytes(), nil
}

var _ network.KeyProvider = (*ToolProvider)(nil)
