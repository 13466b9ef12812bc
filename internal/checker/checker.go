package checker

import (
	"context"

	"go.uber.org/zap"

	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

// Collector is the interface every static posture check must satisfy
type Collector interface {
	// Collect evaluates one category against the policy. Observation, parse and
	// transport failures are reported inside the result; a non-nil error means the
	// collector itself could not run.
	Collect(ctx context.Context, p policy.Policy) (posture.CategoryResult, error)

	// Category returns the slot this collector fills (e.g. "interface", "dns")
	Category() posture.Category
}

func nopIfNil(logger *zap.SugaredLogger) *zap.SugaredLogger {
	if logger == nil {
		return zap.NewNop().Sugar()
	}
	return logger
}
