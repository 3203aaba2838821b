package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/semmidev/custos/internal/adapter/compressor"
	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
)

// Kuzu backs up the embedded graph database by archiving its directory.
// The database should be idle or checkpointed while the copy runs.
type Kuzu struct {
	config     *config.KuzuConfig
	compressor domain.Compressor
	artifacts  *Artifacts
	logger     Logger
}

func NewKuzu(cfg *config.KuzuConfig, comp domain.Compressor, artifacts *Artifacts, logger Logger) *Kuzu {
	return &Kuzu{config: cfg, compressor: comp, artifacts: artifacts, logger: logger}
}

func (k *Kuzu) Name() string {
	return domain.EngineKuzu
}

func (k *Kuzu) CreateBackup(ctx context.Context, name string, strategy domain.Strategy) (string, int64, error) {
	if strategy != domain.StrategyFull {
		k.logger.Warnf("[kuzu] Strategy %s not supported for filesystem copies, taking a full copy", strategy)
	}

	dir, cleanup, err := stagingDir(k.Name())
	if err != nil {
		return "", 0, err
	}
	defer cleanup()

	backupID := name + ".tar.gz"
	outputPath := filepath.Join(dir, backupID)
	if err := k.compressor.ArchiveDir(k.config.DatabasePath, outputPath); err != nil {
		return "", 0, fmt.Errorf("failed to archive database: %w", err)
	}

	size, err := k.artifacts.Store(ctx, outputPath, backupID)
	if err != nil {
		return "", 0, err
	}

	k.logger.Infof("[kuzu] Archive %s stored (%d bytes)", backupID, size)
	return backupID, size, nil
}

func (k *Kuzu) ValidateBackup(ctx context.Context, backupID string) (map[string]any, error) {
	path, err := k.artifacts.Path(backupID)
	if err != nil {
		return nil, err
	}

	stats, err := compressor.InspectArchive(path)
	if err != nil {
		return nil, err
	}
	if stats.Files == 0 {
		return nil, fmt.Errorf("archive %s contains no files", backupID)
	}

	return map[string]any{
		"valid":         true,
		"files":         stats.Files,
		"directories":   stats.Directories,
		"content_bytes": stats.ContentBytes,
	}, nil
}

func (k *Kuzu) CleanupOldBackups(ctx context.Context) ([]string, error) {
	return k.artifacts.Prune(ctx)
}
