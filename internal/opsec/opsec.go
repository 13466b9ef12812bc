// Package opsec runs operational-security checks that catch identity or routing
// exposure the network checks cannot see: tampered hosts files and risky
// environment variables.
package opsec

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
)

// Tester runs the opsec checks.
type Tester struct {
	Logger  *zap.SugaredLogger
	Environ func() []string
}

// NewTester returns a tester reading the real process environment.
func NewTester(logger *zap.SugaredLogger) *Tester {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Tester{Logger: logger, Environ: os.Environ}
}

// Category implements checker.Collector.
func (t *Tester) Category() posture.Category { return posture.CategoryOpsec }

// Collect implements checker.Collector.
func (t *Tester) Collect(_ context.Context, p policy.Policy) (posture.CategoryResult, error) {
	return t.Run(p), nil
}

// Run performs every opsec check and concatenates the findings in check order.
func (t *Tester) Run(p policy.Policy) *posture.OpsecResult {
	result := &posture.OpsecResult{}

	hostsPath := p.HostsPath
	if hostsPath == "" {
		hostsPath = policy.DefaultHostsPath
	}
	result.HostsFindings = CheckHostsFile(hostsPath, p.DisallowedHostsEntries)

	environ := t.Environ
	if environ == nil {
		environ = os.Environ
	}
	result.EnvFindings = CheckEnvironment(environ(), p.DisallowedEnvVars)

	result.AllFindings = append(result.AllFindings, result.HostsFindings...)
	result.AllFindings = append(result.AllFindings, result.EnvFindings...)

	if len(result.AllFindings) == 0 {
		t.Logger.Info("opsec tests completed with no findings")
	} else {
		t.Logger.Warnw("opsec tests completed with findings", "count", len(result.AllFindings))
	}
	return result
}
