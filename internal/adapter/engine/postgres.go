package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
)

// pgDumpMagic opens every pg_dump custom-format archive.
var pgDumpMagic = []byte("PGDMP")

type Postgres struct {
	config    *config.PostgresConfig
	artifacts *Artifacts
	logger    Logger
}

func NewPostgres(cfg *config.PostgresConfig, artifacts *Artifacts, logger Logger) *Postgres {
	return &Postgres{config: cfg, artifacts: artifacts, logger: logger}
}

func (p *Postgres) Name() string {
	return domain.EnginePostgres
}

func (p *Postgres) connString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.config.Username, p.config.Password),
		Host:   p.config.Host + ":" + strconv.Itoa(p.config.Port),
		Path:   "/" + p.config.Database,
	}
	if p.config.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.config.SSLMode}}.Encode()
	}
	return u.String()
}

func (p *Postgres) Ping(ctx context.Context) error {
	_, err := p.serverVersion(ctx)
	return err
}

func (p *Postgres) serverVersion(ctx context.Context) (string, error) {
	conn, err := pgx.Connect(ctx, p.connString())
	if err != nil {
		return "", fmt.Errorf("postgresql connect failed: %w", err)
	}
	defer conn.Close(context.Background())

	var version string
	if err := conn.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", fmt.Errorf("postgresql ping failed: %w", err)
	}
	return version, nil
}

// CreateBackup runs pg_dump in custom format. pg_dump has no incremental
// mode, so every strategy produces a full dump.
func (p *Postgres) CreateBackup(ctx context.Context, name string, strategy domain.Strategy) (string, int64, error) {
	if strategy != domain.StrategyFull {
		p.logger.Warnf("[postgres] Strategy %s not supported by pg_dump, taking a full dump", strategy)
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	dir, cleanup, err := stagingDir(p.Name())
	if err != nil {
		return "", 0, err
	}
	defer cleanup()

	backupID := name + ".dump"
	outputPath := filepath.Join(dir, backupID)

	cmd := exec.CommandContext(ctx, p.config.PgDumpBinary,
		fmt.Sprintf("--host=%s", p.config.Host),
		fmt.Sprintf("--port=%d", p.config.Port),
		fmt.Sprintf("--username=%s", p.config.Username),
		"--format=custom",
		"--compress=9",
		"--no-password",
		fmt.Sprintf("--file=%s", outputPath),
		p.config.Database,
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", p.config.Password))

	if output, err := cmd.CombinedOutput(); err != nil {
		return "", 0, fmt.Errorf("pg_dump failed: %w, output: %s", err, bytes.TrimSpace(output))
	}

	size, err := p.artifacts.Store(ctx, outputPath, backupID)
	if err != nil {
		return "", 0, err
	}

	p.logger.Infof("[postgres] Dump %s stored (%d bytes)", backupID, size)
	return backupID, size, nil
}

func (p *Postgres) ValidateBackup(ctx context.Context, backupID string) (map[string]any, error) {
	path, err := p.artifacts.Path(backupID)
	if err != nil {
		return nil, err
	}

	result, err := inspectDump(path)
	if err != nil {
		return nil, err
	}

	if version, err := p.serverVersion(ctx); err != nil {
		result["server_reachable"] = false
	} else {
		result["server_reachable"] = true
		result["server_version"] = version
	}
	return result, nil
}

func (p *Postgres) CleanupOldBackups(ctx context.Context) ([]string, error) {
	return p.artifacts.Prune(ctx)
}

// inspectDump checks the custom-format header and fingerprints the file.
func inspectDump(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(pgDumpMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("dump too short: %w", err)
	}
	if !bytes.Equal(header, pgDumpMagic) {
		return nil, fmt.Errorf("not a pg_dump custom archive")
	}

	h := sha256.New()
	h.Write(header)
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump: %w", err)
	}

	return map[string]any{
		"valid":      true,
		"format":     "custom",
		"size_bytes": n + int64(len(header)),
		"sha256":     hex.EncodeToString(h.Sum(nil)),
	}, nil
}
