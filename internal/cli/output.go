package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/pbengert/wireguard-config-generator/internal/application/provision"
	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
	"github.com/pbengert/wireguard-config-generator/pkg/wireguard"
)

// printDocuments echoes every document between banners. Secrets are redacted.
func printDocuments(w io.Writer, docs []network.Document) {
	for _, doc := range docs {
		if doc.Party.IsServer() {
			fmt.Fprintln(w, "********** Server-Conf **********")
		} else {
			fmt.Fprintf(w, "********** Client-Conf %d **********\n", doc.Party.Index)
		}
		fmt.Fprint(w, wireguard.RedactKeys(doc.Content))
		fmt.Fprintln(w)
	}
}

type summaryRow struct {
	Party     int    `yaml:"party"`
	Name      string `yaml:"name"`
	Address   string `yaml:"address"`
	PublicKey string `yaml:"public_key"`
	Config    string `yaml:"config,omitempty"`
	Image     string `yaml:"image,omitempty"`
	Status    string `yaml:"status"`
}

type summary struct {
	RunID     string       `yaml:"run_id"`
	Subnet    string       `yaml:"subnet"`
	Documents []summaryRow `yaml:"documents"`
}

func newSummary(result *provision.Result) summary {
	s := summary{RunID: result.RunID, Subnet: result.Plan.Subnet.String()}
	for _, o := range result.Outcomes {
		s.Documents = append(s.Documents, summaryRow{
			Party:     o.Party.Index,
			Name:      o.Name,
			Address:   o.Address,
			PublicKey: o.PublicKey,
			Config:    o.ConfigPath,
			Image:     o.ImagePath,
			Status:    o.Status(),
		})
	}
	return s
}

func writeSummary(w io.Writer, format string, result *provision.Result) error {
	s := newSummary(result)

	switch format {
	case OutputNone:
		return nil
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		return enc.Close()
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Party", "Name", "Address", "Public key", "Config", "Image", "Status"})
	for _, row := range s.Documents {
		t.AppendRow(table.Row{
			row.Party,
			row.Name,
			row.Address,
			row.PublicKey,
			dash(row.Config),
			dash(row.Image),
			row.Status,
		})
	}
	t.AppendFooter(table.Row{"", "", s.Subnet, "", "", "", result.Summary()})
	t.SetStyle(table.StyleLight)

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
