package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/netguard/cmd/testutil"
	"github.com/khanhnv2901/netguard/internal/supervisor"
)

func TestStoreAndGetAppContext(t *testing.T) {
	original := globalAppContext
	defer func() {
		globalAppContext = original
	}()

	cmd := &cobra.Command{Use: "root"}
	appCtx := &AppContext{Operator: "tester"}

	storeAppContext(cmd, appCtx)

	got := getAppContext(cmd)
	if got != appCtx {
		t.Fatalf("expected stored app context to be returned")
	}
}

func TestGetAppContextFallsBackToGlobal(t *testing.T) {
	original := globalAppContext
	defer func() {
		globalAppContext = original
	}()

	globalAppContext = &AppContext{Operator: "global"}
	cmd := &cobra.Command{Use: "root"}
	cmd.SetContext(context.Background())

	if got := getAppContext(cmd); got == nil || got.Operator != "global" {
		t.Fatalf("expected global app context, got %+v", got)
	}
	if got := getAppContext(nil); got == nil || got.Operator != "global" {
		t.Fatalf("expected global app context for nil command, got %+v", got)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"", "info", "debug", "WARN", "error"} {
		if _, err := newLogger(level); err != nil {
			t.Fatalf("newLogger(%q) returned error: %v", level, err)
		}
	}
	if _, err := newLogger("chatty"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestRootPersistentPreRunBuildsAppContext(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t).WithOperator("config-operator")
	defer env.Cleanup()

	cfg := writeTestConfig(env, "")
	if _, err := executeCommand(t, "--config", cfg, "report", "list"); err != nil {
		t.Fatalf("report list failed: %v", err)
	}

	appCtx := globalAppContext
	if appCtx == nil || appCtx.Services == nil {
		t.Fatal("expected app context with services")
	}
	if appCtx.Operator != "config-operator" {
		t.Errorf("expected operator from config, got %q", appCtx.Operator)
	}
	if appCtx.ResultsDir != env.ResultsDir {
		t.Errorf("expected results dir %s, got %s", env.ResultsDir, appCtx.ResultsDir)
	}
}

func TestOperatorFlagWinsOverConfig(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg := writeTestConfig(env, "")
	if _, err := executeCommand(t, "--config", cfg, "--operator", "flag-operator", "report", "list"); err != nil {
		t.Fatalf("report list failed: %v", err)
	}
	if globalAppContext.Operator != "flag-operator" {
		t.Fatalf("expected flag operator, got %q", globalAppContext.Operator)
	}
}

func TestMissingExplicitConfigFails(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	_, err := executeCommand(t, "--config", env.TmpDir+"/missing.yaml", "report", "list")
	if err == nil || !strings.Contains(err.Error(), "failed to read config") {
		t.Fatalf("expected config read error, got %v", err)
	}
}

func TestExecuteExitsWithCommandStatus(t *testing.T) {
	resetCommandState(t)
	originalExit := osExit
	defer func() { osExit = originalExit }()

	var got = -1
	osExit = func(code int) { got = code }

	rootCmd.SetArgs([]string{"version"})
	Execute()
	if got != supervisor.ExitOK {
		t.Fatalf("expected exit 0 for version, got %d", got)
	}

	rootCmd.SetArgs([]string{"no-such-command"})
	Execute()
	if got != supervisor.ExitError {
		t.Fatalf("expected exit %d for unknown command, got %d", supervisor.ExitError, got)
	}
}

func TestVersionCommand(t *testing.T) {
	resetCommandState(t)

	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "netguard version dev") {
		t.Fatalf("unexpected version output: %q", out)
	}

	out, err = executeCommand(t, "version", "--verbose")
	if err != nil {
		t.Fatalf("version --verbose failed: %v", err)
	}
	if !strings.Contains(out, "Go Version:") || !strings.Contains(out, "Capture:") {
		t.Fatalf("expected verbose output, got %q", out)
	}
}
