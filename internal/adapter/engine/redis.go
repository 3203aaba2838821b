package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/semmidev/custos/internal/adapter/compressor"
	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
)

var rdbMagic = []byte("REDIS")

// Snapshotter is the part of the redis client used to take a snapshot.
type Snapshotter interface {
	BgSave(ctx context.Context) *redis.StatusCmd
	LastSave(ctx context.Context) *redis.IntCmd
	Info(ctx context.Context, section ...string) *redis.StringCmd
}

type Redis struct {
	config     *config.RedisConfig
	client     Snapshotter
	compressor domain.Compressor
	artifacts  *Artifacts
	logger     Logger
}

func NewRedis(cfg *config.RedisConfig, client Snapshotter, comp domain.Compressor, artifacts *Artifacts, logger Logger) *Redis {
	return &Redis{
		config:     cfg,
		client:     client,
		compressor: comp,
		artifacts:  artifacts,
		logger:     logger,
	}
}

// NewRedisClient builds the go-redis client for cfg.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func (r *Redis) Name() string {
	return domain.EngineRedis
}

// CreateBackup triggers BGSAVE, waits for it to finish and archives the
// resulting RDB file. RDB snapshots are always full.
func (r *Redis) CreateBackup(ctx context.Context, name string, strategy domain.Strategy) (string, int64, error) {
	if strategy != domain.StrategyFull {
		r.logger.Warnf("[redis] Strategy %s not supported for RDB snapshots, taking a full snapshot", strategy)
	}

	if err := r.snapshot(ctx); err != nil {
		return "", 0, err
	}

	dir, cleanup, err := stagingDir(r.Name())
	if err != nil {
		return "", 0, err
	}
	defer cleanup()

	backupID := name + ".rdb.gz"
	outputPath := filepath.Join(dir, backupID)
	if err := r.compressor.Compress(r.config.RDBPath, outputPath); err != nil {
		return "", 0, fmt.Errorf("failed to compress rdb: %w", err)
	}

	size, err := r.artifacts.Store(ctx, outputPath, backupID)
	if err != nil {
		return "", 0, err
	}

	r.logger.Infof("[redis] Snapshot %s stored (%d bytes)", backupID, size)
	return backupID, size, nil
}

func (r *Redis) snapshot(ctx context.Context) error {
	timeout := r.config.SaveTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	interval := r.config.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	before, err := r.client.LastSave(ctx).Result()
	if err != nil {
		return fmt.Errorf("LASTSAVE failed: %w", err)
	}

	// A snapshot already running was not started by us, so only LASTSAVE can
	// tell when a fresh one lands.
	accepted := true
	if err := r.client.BgSave(ctx).Err(); err != nil {
		if !strings.Contains(err.Error(), "already in progress") {
			return fmt.Errorf("BGSAVE failed: %w", err)
		}
		accepted = false
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for BGSAVE: %w", ctx.Err())
		case <-ticker.C:
			last, err := r.client.LastSave(ctx).Result()
			if err != nil {
				return fmt.Errorf("LASTSAVE failed: %w", err)
			}
			if last > before {
				return nil
			}
			// LASTSAVE has one-second resolution.
			if accepted {
				done, err := r.bgsaveDone(ctx)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}
		}
	}
}

func (r *Redis) bgsaveDone(ctx context.Context) (bool, error) {
	info, err := r.client.Info(ctx, "persistence").Result()
	if err != nil {
		return false, fmt.Errorf("INFO persistence failed: %w", err)
	}
	fields := parseInfo(info)
	if fields["rdb_bgsave_in_progress"] != "0" {
		return false, nil
	}
	if status := fields["rdb_last_bgsave_status"]; status != "ok" {
		return false, fmt.Errorf("BGSAVE failed: rdb_last_bgsave_status:%s", status)
	}
	return true, nil
}

// parseInfo reads the key:value lines of an INFO reply.
func parseInfo(info string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			fields[key] = value
		}
	}
	return fields
}

func (r *Redis) ValidateBackup(ctx context.Context, backupID string) (map[string]any, error) {
	path, err := r.artifacts.Path(backupID)
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := stagingDir(r.Name())
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// Decompressing the whole stream checks the gzip trailer as well as the header.
	rdbPath := filepath.Join(dir, "dump.rdb")
	if err := r.compressor.Decompress(path, rdbPath); err != nil {
		return nil, fmt.Errorf("corrupt snapshot archive: %w", err)
	}

	header, err := compressor.Peek(path, len(rdbMagic)+4)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(header, rdbMagic) {
		return nil, fmt.Errorf("not an RDB file")
	}

	info, err := os.Stat(rdbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rdb: %w", err)
	}

	return map[string]any{
		"valid":       true,
		"rdb_version": string(header[len(rdbMagic):]),
		"rdb_bytes":   info.Size(),
	}, nil
}

func (r *Redis) CleanupOldBackups(ctx context.Context) ([]string, error) {
	return r.artifacts.Prune(ctx)
}
