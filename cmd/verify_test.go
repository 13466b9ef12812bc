package cmd

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/khanhnv2901/netguard/cmd/testutil"
	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
	"github.com/khanhnv2901/netguard/internal/supervisor"
)

func TestVerifyHealthyRun(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	useStubSupervisor(healthyStubs(), nil)
	cfg := writeTestConfig(env, "")

	out, err := executeCommand(t, "--config", cfg, "verify", "--telemetry")
	if err != nil {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}
	if exitCode != supervisor.ExitOK {
		t.Fatalf("expected exit %d, got %d\n%s", supervisor.ExitOK, exitCode, out)
	}

	runID := onlyRunID(t, env)
	for _, name := range []string{
		"results/" + runID + "/report.json",
		"results/" + runID + "/report.json.sha256",
		"results/audit.csv",
		"results/" + telemetryFileName,
	} {
		env.MustExist(name)
	}

	for _, want := range []string{
		"Confidence: 100.0/100 (HIGH)",
		"State:      EXIT_OK (exit 0)",
		"Report saved to " + env.RunPath(runID),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}

	audit := string(env.ReadFile("results/audit.csv"))
	if !strings.Contains(audit, runID) || !strings.Contains(audit, ",verify,EXIT_OK,0,") {
		t.Errorf("unexpected audit log:\n%s", audit)
	}
}

func TestVerifyLowConfidenceExitsOne(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	useStubSupervisor(failingStubs(), nil)
	cfg := writeTestConfig(env, "")

	out, err := executeCommand(t, "--config", cfg, "verify")
	if err != nil {
		t.Fatalf("verify returned error: %v\n%s", err, out)
	}
	if exitCode != supervisor.ExitLowConfidence {
		t.Fatalf("expected exit %d, got %d\n%s", supervisor.ExitLowConfidence, exitCode, out)
	}
	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "unavailable") {
		t.Errorf("expected failed categories in summary\n%s", out)
	}

	// telemetry is off unless requested
	env.MustNotExist("results/" + telemetryFileName)
}

func TestVerifyRejectsInvalidPolicy(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		args    []string
		wantErr error
	}{
		{name: "zero port", body: "policy:\n  allowed_listening_tcp_ports: [0]\n", wantErr: sharedErrors.ErrInvalidPort},
		{name: "negative duration", args: []string{"--duration", "-5s"}, wantErr: sharedErrors.ErrInvalidPolicy},
		{name: "enforce without modules", body: "policy:\n  enforce_required_modules_only: true\n", wantErr: sharedErrors.ErrRequiredModulesUnset},
		{name: "unknown category", args: []string{"--skip", "bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetCommandState(t)
			env := testutil.NewTestEnv(t)
			defer env.Cleanup()

			called := false
			newVerifySupervisor = func(*AppContext, policy.Policy) *supervisor.Supervisor {
				called = true
				return nil
			}
			cfg := writeTestConfig(env, tt.body)

			_, err := executeCommand(t, append([]string{"--config", cfg, "verify"}, tt.args...)...)
			var policyErr *PolicyError
			if !errors.As(err, &policyErr) {
				t.Fatalf("expected PolicyError, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if called {
				t.Fatal("supervisor should not be built for an invalid policy")
			}
		})
	}
}

func TestVerifyFlagsOverrideConfig(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	var seen policy.Policy
	useStubSupervisor(healthyStubs(), &seen)
	hasCapturePrivileges = func() bool { return true }

	cfg := writeTestConfig(env, `policy:
  vpn_interface: wg0
  physical_interfaces: [eth1]
  monitor_duration: 1m
`)

	out, err := executeCommand(t, "--config", cfg, "verify",
		"--interface", "wg5", "--monitor", "eth0,wlan0", "--duration", "2s", "--progress=false")
	if err != nil {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}

	if seen.VPNInterface != "wg5" {
		t.Errorf("expected --interface to win, got %s", seen.VPNInterface)
	}
	if !reflect.DeepEqual(seen.PhysicalInterfaces, []string{"eth0", "wlan0"}) {
		t.Errorf("expected --monitor to win, got %v", seen.PhysicalInterfaces)
	}
	if seen.MonitorDuration != 2*time.Second {
		t.Errorf("expected --duration to win, got %s", seen.MonitorDuration)
	}
	if !strings.Contains(out, "Monitoring eth0, wlan0 for 2s") {
		t.Errorf("expected monitoring banner\n%s", out)
	}
	if strings.Contains(out, "CAP_NET_RAW") {
		t.Errorf("unexpected privilege warning\n%s", out)
	}
}

func TestVerifyUsesConfiguredPolicyWithoutFlags(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	var seen policy.Policy
	useStubSupervisor(healthyStubs(), &seen)
	hasCapturePrivileges = func() bool { return false }

	cfg := writeTestConfig(env, `policy:
  vpn_interface: wg0
  physical_interfaces: [eth1]
  monitor_duration: 1m
`)

	out, err := executeCommand(t, "--config", cfg, "verify", "--progress=false")
	if err != nil {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}

	if seen.VPNInterface != "wg0" || seen.MonitorDuration != time.Minute {
		t.Errorf("expected configured policy, got interface=%s duration=%s", seen.VPNInterface, seen.MonitorDuration)
	}
	if !reflect.DeepEqual(seen.PhysicalInterfaces, []string{"eth1"}) {
		t.Errorf("expected configured interfaces, got %v", seen.PhysicalInterfaces)
	}
	if !strings.Contains(out, "CAP_NET_RAW") {
		t.Errorf("expected privilege warning\n%s", out)
	}
}

func TestVerifySkipMarksCategoriesSkipped(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	useStubSupervisor(healthyStubs(), nil)
	cfg := writeTestConfig(env, "")

	out, err := executeCommand(t, "--config", cfg, "verify", "--skip", "host_audit,OPSEC")
	if err != nil {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}
	if exitCode != supervisor.ExitOK {
		t.Fatalf("expected exit 0, got %d\n%s", exitCode, out)
	}
	if got := strings.Count(out, "disabled by operator"); got != 2 {
		t.Errorf("expected two categories disabled by operator, got %d\n%s", got, out)
	}
}

func TestParseCategories(t *testing.T) {
	got, err := parseCategories([]string{"DNS", " opsec ", "dns", ""})
	if err != nil {
		t.Fatalf("parseCategories returned error: %v", err)
	}
	want := []posture.Category{posture.CategoryDNS, posture.CategoryOpsec}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, err := parseCategories([]string{"firewall"}); err == nil || !strings.Contains(err.Error(), "traffic_monitor") {
		t.Fatalf("expected error listing valid categories, got %v", err)
	}

	if got, err := parseCategories(nil); err != nil || got != nil {
		t.Fatalf("expected nil for no categories, got %v, %v", got, err)
	}
}

func TestVerifyHonorsConfigDefaults(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	useStubSupervisor(healthyStubs(), nil)
	cfg := env.WriteConfig("netguard.yaml", fmt.Sprintf(`results_dir: %s
defaults:
  operator: config-operator
  telemetry: true
  progress: false
  hash_algorithm: SHA512
`, env.ResultsDir))

	out, err := executeCommand(t, "--config", cfg, "verify")
	if err != nil {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}

	runID := onlyRunID(t, env)
	env.MustExist("results/" + runID + "/report.json.sha512")
	env.MustNotExist("results/" + runID + "/report.json.sha256")
	env.MustExist("results/" + telemetryFileName)
	if !strings.Contains(out, "Operator:   config-operator@test-host") {
		t.Errorf("expected configured operator in summary\n%s", out)
	}
	if cliConfig.Verify.ProgressEnabled {
		t.Error("expected defaults.progress to disable progress output")
	}
}
