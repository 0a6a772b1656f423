package provision

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pbengert/wireguard-config-generator/internal/domain/network"
	"github.com/pbengert/wireguard-config-generator/pkg/wireguard"
)

// File extensions of the produced artifacts
const (
	ConfigExt = ".conf"
	ImageExt  = ".png"
)

// Allocator builds the address plan for a spec.
type Allocator interface {
	Allocate(ctx context.Context, spec *network.Spec) (network.AddressPlan, error)
}

// KeyCollector gathers one key triple per party.
type KeyCollector interface {
	Collect(ctx context.Context, partyCount int, presharedKeys bool) (network.KeySet, error)
}

// Writer persists bytes at path, creating or truncating it.
type Writer interface {
	Write(path string, data []byte) error
}

// Encoder turns document text into an image.
type Encoder interface {
	Encode(content string) ([]byte, error)
}

// Service is the only component allowed to perform I/O during a run.
type Service struct {
	allocator Allocator
	keys      KeyCollector
	writer    Writer
	encoder   Encoder
	workers   int
}

// NewService constructs a provisioning service. Documents are persisted one
// at a time unless WithWorkers raises the limit.
func NewService(allocator Allocator, keys KeyCollector, writer Writer, encoder Encoder) *Service {
	return &Service{
		allocator: allocator,
		keys:      keys,
		writer:    writer,
		encoder:   encoder,
		workers:   1,
	}
}

// WithWorkers sets how many documents are persisted concurrently.
func (s *Service) WithWorkers(n int) *Service {
	if n < 1 {
		n = 1
	}
	s.workers = n
	return s
}

// DocumentResult is the outcome of persisting one document.
type DocumentResult struct {
	Party      network.Party
	Name       string
	Address    string
	PublicKey  string
	ConfigPath string
	ImagePath  string
	Errors     []error
}

// OK reports whether both artifacts of the document were written.
func (d *DocumentResult) OK() bool { return len(d.Errors) == 0 }

// Status is a short human readable outcome.
func (d *DocumentResult) Status() string {
	if d.OK() {
		return "ok"
	}
	return d.Errors[0].Error()
}

// Result summarizes a run that got past allocation and key collection.
type Result struct {
	RunID     string
	Plan      network.AddressPlan
	Documents []network.Document
	Outcomes  []*DocumentResult
	errs      *multierror.Error
}

// Err aggregates every per-document failure, or nil when all artifacts were written.
func (r *Result) Err() error {
	return r.errs.ErrorOrNil()
}

// Failed counts documents with at least one failed artifact.
func (r *Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// Run validates spec, allocates addresses, collects keys, renders every
// document and persists each one. A returned error is fatal and means nothing
// was written; per-document failures are reported through Result.Err.
func (s *Service) Run(ctx context.Context, spec *network.Spec) (*Result, error) {
	runID := uuid.New().String()
	logger := log.With().Str("run_id", runID).Logger()

	if err := spec.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid network spec")
		return nil, err
	}

	plan, err := s.allocator.Allocate(ctx, spec)
	if err != nil {
		logger.Error().Err(err).Msg("address allocation failed")
		return nil, err
	}
	logger.Debug().Str("subnet", plan.Subnet.String()).Int("parties", plan.Len()).Msg("allocated addresses")

	keys, err := s.keys.Collect(ctx, spec.PartyCount(), spec.PresharedKeys)
	if err != nil {
		logger.Error().Err(err).Msg("key collection failed")
		return nil, err
	}

	docs, err := wireguard.RenderAll(spec, plan, keys)
	if err != nil {
		logger.Error().Err(err).Msg("rendering failed")
		return nil, err
	}

	result := &Result{
		RunID:     runID,
		Plan:      plan,
		Documents: docs,
		Outcomes:  make([]*DocumentResult, len(docs)),
	}

	// Every document is attempted; failures stay local to their slot.
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, doc := range docs {
		doc := doc
		outcome := &DocumentResult{
			Party:     doc.Party,
			Name:      doc.Stem,
			Address:   plan.Address(doc.Party).String(),
			PublicKey: keys.For(doc.Party).PublicKey,
		}
		result.Outcomes[i] = outcome
		dir := outputDir(spec, doc.Party)
		g.Go(func() error {
			s.persist(logger, dir, doc, outcome)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range result.Outcomes {
		for _, e := range o.Errors {
			result.errs = multierror.Append(result.errs, e)
		}
	}

	if err := result.Err(); err != nil {
		logger.Warn().Int("failed", result.Failed()).Int("documents", len(docs)).Msg("provisioning finished with errors")
	} else {
		logger.Info().Int("documents", len(docs)).Msg("provisioning finished")
	}
	return result, nil
}

func (s *Service) persist(logger zerolog.Logger, dir string, doc network.Document, outcome *DocumentResult) {
	confPath := filepath.Join(dir, doc.Stem+ConfigExt)
	if err := s.writer.Write(confPath, []byte(doc.Content)); err != nil {
		outcome.Errors = append(outcome.Errors, &network.DocumentError{Party: doc.Party, Stage: network.StageWrite, Path: confPath, Err: err})
		logger.Warn().Err(err).Str("path", confPath).Msg("failed to write config")
	} else {
		outcome.ConfigPath = confPath
		logger.Debug().Str("path", confPath).Msg("wrote config")
	}

	imgPath := filepath.Join(dir, doc.Stem+ImageExt)
	img, err := s.encoder.Encode(doc.Content)
	if err != nil {
		outcome.Errors = append(outcome.Errors, &network.DocumentError{Party: doc.Party, Stage: network.StageEncode, Path: imgPath, Err: err})
		logger.Warn().Err(err).Str("party", doc.Party.String()).Msg("failed to encode config")
		return
	}
	if err := s.writer.Write(imgPath, img); err != nil {
		outcome.Errors = append(outcome.Errors, &network.DocumentError{Party: doc.Party, Stage: network.StageWrite, Path: imgPath, Err: err})
		logger.Warn().Err(err).Str("path", imgPath).Msg("failed to write qr code")
		return
	}
	outcome.ImagePath = imgPath
}

func outputDir(spec *network.Spec, p network.Party) string {
	if p.IsServer() {
		return spec.InterfaceOutputPath
	}
	return spec.PeerOutputPath
}

// Summary is a one line description of the outcome.
func (r *Result) Summary() string {
	return fmt.Sprintf("run %s: %d of %d documents written", r.RunID, len(r.Outcomes)-r.Failed(), len(r.Outcomes))
}
