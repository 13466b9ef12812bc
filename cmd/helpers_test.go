package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/khanhnv2901/netguard/cmd/testutil"
	"github.com/khanhnv2901/netguard/internal/application"
	"github.com/khanhnv2901/netguard/internal/checker"
	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
	"github.com/khanhnv2901/netguard/internal/supervisor"
)

// resetCommandState restores every package-level knob a command invocation can touch.
func resetCommandState(t *testing.T) {
	t.Helper()

	originalApp := globalAppContext
	originalFactory := newVerifySupervisor
	originalPrivileges := hasCapturePrivileges
	originalNoColor := color.NoColor

	reset := func() {
		viper.Reset()
		cfgFile = ""
		operator = ""
		logLevel = "info"
		exitCode = supervisor.ExitOK
		// flags are bound to fields of *cliConfig, so reset in place
		*cliConfig = *newCLIConfig()
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}

	reset()
	color.NoColor = true
	t.Cleanup(func() {
		reset()
		globalAppContext = originalApp
		newVerifySupervisor = originalFactory
		hasCapturePrivileges = originalPrivileges
		color.NoColor = originalNoColor
	})
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with args and returns what it printed.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// writeTestConfig writes a YAML config pointing the results dir at env.
func writeTestConfig(env *testutil.TestEnv, body string) string {
	content := fmt.Sprintf("results_dir: %s\ndefaults:\n  operator: %s\n%s", env.ResultsDir, env.Operator, body)
	return env.WriteConfig("netguard.yaml", content)
}

func newTestAppContext(t *testing.T, env *testutil.TestEnv) *AppContext {
	t.Helper()

	logger := zap.NewNop().Sugar()
	services, err := application.NewContainer(env.ResultsDir, logger)
	if err != nil {
		t.Fatalf("failed to initialize services: %v", err)
	}
	return &AppContext{
		Logger:     logger,
		Operator:   env.Operator,
		ResultsDir: env.ResultsDir,
		Config:     cliConfig,
		Services:   services,
	}
}

// stubCollector returns a fixed result or error for one category.
type stubCollector struct {
	category posture.Category
	result   posture.CategoryResult
	err      error
}

func (s stubCollector) Category() posture.Category { return s.category }

func (s stubCollector) Collect(context.Context, policy.Policy) (posture.CategoryResult, error) {
	return s.result, s.err
}

func healthyStubs() []stubCollector {
	up := true
	return []stubCollector{
		{category: posture.CategoryInterface, result: &posture.InterfaceCheckResult{
			Name: "tun0", Found: true, Up: &up, Running: &up,
			IPNetworkMatch: posture.IPNetworkMatch, ExternalIP: posture.ExternalIPDisabled,
		}},
		{category: posture.CategoryDNS, result: &posture.DNSCheckResult{Status: posture.DNSMatch}},
		{category: posture.CategoryHostAudit, result: &posture.HostAuditResult{}},
		{category: posture.CategoryOpsec, result: &posture.OpsecResult{}},
	}
}

func failingStubs() []stubCollector {
	var out []stubCollector
	for _, c := range []posture.Category{posture.CategoryInterface, posture.CategoryDNS, posture.CategoryHostAudit, posture.CategoryOpsec} {
		out = append(out, stubCollector{category: c, err: fmt.Errorf("%s unavailable", c)})
	}
	return out
}

// useStubSupervisor swaps the verify supervisor for one built from stubs and
// records the policy each run received.
func useStubSupervisor(stubs []stubCollector, seen *policy.Policy) {
	newVerifySupervisor = func(appCtx *AppContext, p policy.Policy) *supervisor.Supervisor {
		if seen != nil {
			*seen = p
		}
		collectors := make([]checker.Collector, 0, len(stubs))
		for _, s := range stubs {
			collectors = append(collectors, s)
		}
		sup := supervisor.New(p, collectors, nil, appCtx.Logger)
		sup.Repository = appCtx.Services.ReportRepo
		sup.Operator = appCtx.Operator
		sup.Hostname = "test-host"
		return sup
	}
}

// onlyRunID returns the single run directory created under the results dir.
func onlyRunID(t *testing.T, env *testutil.TestEnv) string {
	t.Helper()

	entries, err := os.ReadDir(env.ResultsDir)
	if err != nil {
		t.Fatalf("failed to read results dir: %v", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	if len(ids) != 1 {
		t.Fatalf("expected exactly one run directory, got %v", ids)
	}
	return ids[0]
}
