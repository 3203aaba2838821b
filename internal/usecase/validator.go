package usecase

import (
	"context"
	"sort"

	"github.com/semmidev/custos/internal/domain"
)

// Validator checks every backup an execution produced. A failing engine is
// reported as {"error": msg} and does not stop the others.
type Validator struct {
	engines map[string]domain.Engine
	logger  Logger
}

func NewValidator(engines map[string]domain.Engine, logger Logger) *Validator {
	return &Validator{engines: engines, logger: logger}
}

func (uc *Validator) Validate(ctx context.Context, backupIDs map[string]string) map[string]map[string]any {
	names := make([]string, 0, len(backupIDs))
	for name := range backupIDs {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]map[string]any, len(names))
	for _, name := range names {
		engine, ok := uc.engines[name]
		if !ok {
			results[name] = map[string]any{"error": "engine not configured"}
			continue
		}

		result, err := engine.ValidateBackup(ctx, backupIDs[name])
		if err != nil {
			uc.logger.Warnf("Validation of %s backup %s failed: %v", name, backupIDs[name], err)
			results[name] = map[string]any{"error": err.Error()}
			continue
		}
		if result == nil {
			result = map[string]any{}
		}
		results[name] = result
	}
	return results
}
