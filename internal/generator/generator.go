// Package generator ties the change-set resolver, the service extractor and
// the pipeline assembler together into one generation run.
package generator

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"svcpipe/internal/changeset"
	"svcpipe/internal/config"
	"svcpipe/internal/core"
	"svcpipe/internal/ledger"
	"svcpipe/internal/services"
	"svcpipe/internal/storage"
	"svcpipe/pkg/utils"
)

// Generator runs resolve, diff, extract and assemble.
type Generator struct {
	Git       changeset.Git
	Resolver  *changeset.Resolver
	Extractor *services.Extractor
	Assembler *core.Assembler
	Scheduler *core.Scheduler
	logger    *zap.Logger
	now       func() time.Time
}

// New wires a Generator for the repository at repoDir.
func New(repoDir string, s config.Settings, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	git := changeset.NewExecGit(repoDir, s.GitTimeout)
	return &Generator{
		Git:       git,
		Resolver:  changeset.NewResolver(git, s.ResolverOptions(), logger.Named("changeset")),
		Extractor: services.NewExtractor(os.DirFS(repoDir), s.ExtractorOptions(), logger.Named("services")),
		Assembler: core.NewAssembler(core.NewBuilder(s.BuildOptions()), s.Variables, logger.Named("assembler")),
		Scheduler: core.NewScheduler(),
		logger:    logger,
		now:       time.Now,
	}
}

// Detection is the outcome of change detection.
type Detection struct {
	Ref          changeset.ChangeRef
	ChangedFiles []string
	Services     []core.ServiceID
}

// Outcome is one complete generation.
type Outcome struct {
	Detection
	Pipeline *core.Pipeline
	Document []byte
}

// Detect resolves the comparison range and maps it onto services. A full
// change ref selects every service.
func (g *Generator) Detect(ctx context.Context, sig changeset.Signals) (*Detection, error) {
	ref, err := g.Resolver.Resolve(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("resolve change set: %w", err)
	}

	d := &Detection{Ref: ref}
	if ref.Full {
		d.Services = g.Extractor.ListAll()
	} else {
		files, err := changeset.ChangedFiles(ctx, g.Git, ref)
		if err != nil {
			return nil, err
		}
		d.ChangedFiles = files
		d.Services = g.Extractor.Extract(files)
	}

	g.logger.Info("Detected changed services",
		zap.String("ref", ref.String()),
		zap.Int("files", len(d.ChangedFiles)),
		zap.Int("services", len(d.Services)))
	if len(d.Services) == 0 {
		g.logger.Warn("No services changed")
	}
	return d, nil
}

// Generate detects changes and renders the pipeline document.
func (g *Generator) Generate(ctx context.Context, sig changeset.Signals) (*Outcome, error) {
	d, err := g.Detect(ctx, sig)
	if err != nil {
		return nil, err
	}
	out, err := g.Render(d.Services)
	if err != nil {
		return nil, err
	}
	out.Detection = *d
	return out, nil
}

// Render assembles and encodes the pipeline for an explicit service set.
func (g *Generator) Render(svcs []core.ServiceID) (*Outcome, error) {
	p := g.Assembler.Assemble(svcs)
	normalized := core.NormalizeServices(svcs)
	if err := g.Scheduler.CheckNeeds(p, normalized); err != nil {
		return nil, fmt.Errorf("generated pipeline is inconsistent: %w", err)
	}
	doc, err := core.Encode(p)
	if err != nil {
		return nil, err
	}

	counts := g.Scheduler.StageCounts(p)
	fields := []zap.Field{zap.Int("jobs", p.JobCount()), zap.Int("services", len(normalized))}
	for _, st := range p.Stages {
		fields = append(fields, zap.Int(string(st), counts[st]))
	}
	g.logger.Info("Generated pipeline", fields...)
	g.logger.Debug("Pipeline document", zap.ByteString("document", doc))

	return &Outcome{Detection: Detection{Services: normalized}, Pipeline: p, Document: doc}, nil
}

// RenderChangedFiles maps explicit paths onto services and renders them.
func (g *Generator) RenderChangedFiles(paths []string) (*Outcome, error) {
	svcs := g.Extractor.Extract(paths)
	out, err := g.Render(svcs)
	if err != nil {
		return nil, err
	}
	out.ChangedFiles = paths
	return out, nil
}

// WriteServices writes the service list one per line. Nothing is written for
// an empty list.
func (g *Generator) WriteServices(path string, svcs []core.ServiceID) (bool, error) {
	if len(svcs) == 0 {
		g.logger.Warn("No services to write", zap.String("path", path))
		return false, nil
	}
	if err := storage.WriteFile(path, []byte(storage.FormatLines(svcs))); err != nil {
		return false, fmt.Errorf("write services list: %w", err)
	}
	return true, nil
}

// WriteDocument writes the rendered pipeline document.
func (g *Generator) WriteDocument(path string, out *Outcome) error {
	if err := storage.WriteFile(path, out.Document); err != nil {
		return fmt.Errorf("write pipeline document: %w", err)
	}
	g.logger.Info("Wrote pipeline document",
		zap.String("path", path),
		zap.String("sha256", utils.ShortHash(utils.HashBytes(out.Document))))
	return nil
}

// Record appends the outcome to the generation ledger.
func (g *Generator) Record(l *ledger.Ledger, priv ed25519.PrivateKey, pub ed25519.PublicKey, out *Outcome) (*ledger.Entry, error) {
	names := make([]string, len(out.Services))
	for i, s := range out.Services {
		names[i] = string(s)
	}
	e, err := ledger.NewEntry(out.Ref.String(), names, out.Document, g.now())
	if err != nil {
		return nil, err
	}
	if err := l.Append(e, priv, pub); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}
	g.logger.Info("Ledger entry appended",
		zap.Int("index", e.Index),
		zap.String("run_id", e.RunID),
		zap.String("hash", utils.ShortHash(e.Hash)))
	return e, nil
}
