package inventory

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"svcpipe/internal/storage"
)

// Default output paths for the combined inventories.
const (
	DefaultK3sOutput    = "ansible/k3s/inventory/hosts.yml"
	DefaultMergedOutput = "ansible/inventory/all-hosts.yml"
)

// Outputs names where the combined inventories go, relative to the repository root.
type Outputs struct {
	K3s    string
	Merged string
}

// Write renders res and writes every non-empty inventory under repoDir.
// It returns the paths written.
func Write(repoDir string, res *Result, out Outputs, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out.K3s == "" {
		out.K3s = DefaultK3sOutput
	}
	if out.Merged == "" {
		out.Merged = DefaultMergedOutput
	}

	var written []string
	write := func(rel string, data []byte) error {
		path := filepath.Join(repoDir, filepath.FromSlash(rel))
		if err := storage.WriteFile(path, data); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	for _, ph := range res.Projects {
		data, err := ProjectDocument(ph.Project.Group, ph.Hosts)
		if err != nil {
			return written, fmt.Errorf("render %s: %w", ph.Project.Group, err)
		}
		if err := write(ph.Project.OutputFile, data); err != nil {
			return written, err
		}
		logger.Info("Wrote inventory", zap.String("group", ph.Project.Group), zap.Int("hosts", len(ph.Hosts)))
	}

	if len(res.Masters)+len(res.Workers) > 0 {
		data, err := K3sDocument(res.Masters, res.Workers)
		if err != nil {
			return written, fmt.Errorf("render k3s: %w", err)
		}
		if err := write(out.K3s, data); err != nil {
			return written, err
		}
		logger.Info("Wrote k3s inventory",
			zap.Int("masters", len(res.Masters)), zap.Int("workers", len(res.Workers)))
	}

	if len(res.All) == 0 {
		logger.Warn("No hosts collected, merged inventory not written")
		return written, nil
	}
	data, err := MergedDocument(res.All)
	if err != nil {
		return written, fmt.Errorf("render merged: %w", err)
	}
	if err := write(out.Merged, data); err != nil {
		return written, err
	}
	logger.Info("Wrote merged inventory", zap.Int("hosts", len(res.All)))
	return written, nil
}
