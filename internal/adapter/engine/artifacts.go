package engine

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"github.com/semmidev/custos/internal/adapter/storage"
	"github.com/semmidev/custos/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Artifacts is the per-engine artifact store: a local directory that is the
// source of truth, mirrored best-effort to the upload targets.
type Artifacts struct {
	engine        string
	local         *storage.LocalStorage
	mirrors       []domain.MirrorTarget
	retentionDays int
	logger        Logger
	now           func() time.Time
}

func NewArtifacts(engine string, local *storage.LocalStorage, mirrors []domain.MirrorTarget, retentionDays int, logger Logger) *Artifacts {
	return &Artifacts{
		engine:        engine,
		local:         local,
		mirrors:       mirrors,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}
}

// Store copies srcPath into the local directory under name, then mirrors it.
// Mirror failures are logged and do not fail the store.
func (a *Artifacts) Store(ctx context.Context, srcPath, name string) (int64, error) {
	if err := a.local.Upload(ctx, srcPath, name); err != nil {
		return 0, fmt.Errorf("failed to store artifact: %w", err)
	}

	info, err := a.local.Stat(name)
	if err != nil {
		return 0, err
	}

	var wg conc.WaitGroup
	for _, m := range a.mirrors {
		wg.Go(func() {
			a.logger.Infof("[%s] Uploading %s to %s", a.engine, name, m.Name)
			if err := m.Storage.Upload(ctx, srcPath, name); err != nil {
				a.logger.Errorf("[%s] Failed to upload %s to %s: %v", a.engine, name, m.Name, err)
				return
			}
			a.logger.Infof("[%s] Uploaded %s to %s", a.engine, name, m.Name)
		})
	}
	wg.Wait()

	return info.Size(), nil
}

// Path returns the local path of a stored artifact, failing if it is missing.
func (a *Artifacts) Path(name string) (string, error) {
	if _, err := a.local.Stat(name); err != nil {
		return "", err
	}
	return a.local.GetPath(name), nil
}

// Prune deletes artifacts older than the retention window and returns the
// names removed locally. A retention of zero days keeps everything.
func (a *Artifacts) Prune(ctx context.Context) ([]string, error) {
	if a.retentionDays <= 0 {
		return nil, nil
	}
	cutoff := a.now().AddDate(0, 0, -a.retentionDays)

	oldFiles, err := a.local.GetOldFiles(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list local artifacts: %w", err)
	}

	var removed []string
	var errs error
	for _, name := range oldFiles {
		if err := a.local.Delete(ctx, name); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		removed = append(removed, name)
	}

	var wg conc.WaitGroup
	for _, m := range a.mirrors {
		wg.Go(func() { a.pruneMirror(ctx, m, cutoff) })
	}
	wg.Wait()

	if len(removed) > 0 {
		a.logger.Infof("[%s] Removed %d expired artifact(s)", a.engine, len(removed))
	}
	return removed, errs
}

func (a *Artifacts) pruneMirror(ctx context.Context, m domain.MirrorTarget, cutoff time.Time) {
	oldFiles, err := m.Storage.GetOldFiles(ctx, cutoff)
	if err != nil {
		a.logger.Warnf("[%s] GetOldFiles failed on %s, falling back to names: %v", a.engine, m.Name, err)
		oldFiles, err = a.oldFilesByName(ctx, m, cutoff)
		if err != nil {
			a.logger.Errorf("[%s] Failed to list old files on %s: %v", a.engine, m.Name, err)
			return
		}
	}
	for _, name := range oldFiles {
		if err := m.Storage.Delete(ctx, name); err != nil {
			a.logger.Warnf("[%s] Failed to delete %s from %s: %v", a.engine, name, m.Name, err)
		}
	}
}

// oldFilesByName dates artifacts by the timestamp embedded in their name.
func (a *Artifacts) oldFilesByName(ctx context.Context, m domain.MirrorTarget, cutoff time.Time) ([]string, error) {
	files, err := m.Storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	var oldFiles []string
	for _, name := range files {
		ts, err := extractTimestamp(name)
		if err != nil {
			a.logger.Warnf("[%s] Could not parse timestamp from %s: %v", a.engine, name, err)
			continue
		}
		if ts.Before(cutoff) {
			oldFiles = append(oldFiles, name)
		}
	}
	return oldFiles, nil
}

var timestampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)

func extractTimestamp(name string) (time.Time, error) {
	matches := timestampPattern.FindStringSubmatch(name)
	if len(matches) < 3 {
		return time.Time{}, fmt.Errorf("no timestamp in %q", name)
	}
	return time.ParseInLocation("20060102_150405", matches[1]+"_"+matches[2], time.UTC)
}

// stagingDir creates a scratch directory for producing an artifact.
func stagingDir(engine string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "custos-"+engine+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}
