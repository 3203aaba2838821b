package usecase

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/semmidev/custos/internal/domain"
)

// Cleanup enforces retention on every configured engine. Each engine applies
// its own window; one engine failing does not stop the rest.
type Cleanup struct {
	engines map[string]domain.Engine
	logger  Logger
}

func NewCleanup(engines map[string]domain.Engine, logger Logger) *Cleanup {
	return &Cleanup{engines: engines, logger: logger}
}

// Execute returns the removed backup ids per engine and the combined errors of
// the engines that failed. An engine that failed part way still reports the
// ids it removed.
func (uc *Cleanup) Execute(ctx context.Context) (map[string][]string, error) {
	names := make([]string, 0, len(uc.engines))
	for name := range uc.engines {
		names = append(names, name)
	}
	sort.Strings(names)

	uc.logger.Infof("Starting cleanup for %d engine(s)", len(names))

	removed := make(map[string][]string, len(names))
	var errs error
	for _, name := range names {
		ids, err := uc.engines[name].CleanupOldBackups(ctx)
		if err != nil {
			uc.logger.Errorf("Cleanup failed for %s: %v", name, err)
			errs = multierr.Append(errs, fmt.Errorf("%s cleanup failed: %w", name, err))
			if len(ids) > 0 {
				removed[name] = ids
				uc.logger.Infof("Deleted %d old backup(s) from %s before the failure", len(ids), name)
			}
			continue
		}
		if ids == nil {
			ids = []string{}
		}
		removed[name] = ids
		uc.logger.Infof("Deleted %d old backup(s) from %s", len(ids), name)
	}

	uc.logger.Infof("Cleanup completed")
	return removed, errs
}
