package cmd

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/netguard/cmd/testutil"
)

// runStubVerify performs one stubbed verify run with telemetry on and returns its config and run ID.
func runStubVerify(t *testing.T, env *testutil.TestEnv, stubs []stubCollector) (string, string) {
	t.Helper()

	useStubSupervisor(stubs, nil)
	cfg := writeTestConfig(env, "")
	if out, err := executeCommand(t, "--config", cfg, "verify", "--telemetry"); err != nil {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}
	runID := onlyRunID(t, env)

	resetCommandState(t)
	return cfg, runID
}

func TestReportListAndShow(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg, runID := runStubVerify(t, env, healthyStubs())

	out, err := executeCommand(t, "--config", cfg, "report", "list")
	if err != nil {
		t.Fatalf("report list failed: %v", err)
	}
	if !strings.Contains(out, "RUN ID") || !strings.Contains(out, runID) || !strings.Contains(out, "test-host") {
		t.Fatalf("unexpected report list output:\n%s", out)
	}

	resetCommandState(t)
	out, err = executeCommand(t, "--config", cfg, "report", "show", runID)
	if err != nil {
		t.Fatalf("report show failed: %v", err)
	}
	for _, want := range []string{"Run:        " + runID, "Operator:   test-operator@test-host", "✓ No findings"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected text output to contain %q\n%s", want, out)
		}
	}
}

func TestReportShowFormats(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg, runID := runStubVerify(t, env, healthyStubs())

	out, err := executeCommand(t, "--config", cfg, "report", "show", runID, "--format", "json")
	if err != nil {
		t.Fatalf("report show json failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("json output does not parse: %v\n%s", err, out)
	}
	if doc["id"] != runID || doc["state"] != "EXIT_OK" {
		t.Fatalf("unexpected json document: %v", doc)
	}

	resetCommandState(t)
	out, err = executeCommand(t, "--config", cfg, "report", "show", runID, "--format", "YAML")
	if err != nil {
		t.Fatalf("report show yaml failed: %v", err)
	}
	var ydoc map[string]any
	if err := yaml.Unmarshal([]byte(out), &ydoc); err != nil {
		t.Fatalf("yaml output does not parse: %v\n%s", err, out)
	}
	if ydoc["id"] != runID {
		t.Fatalf("unexpected yaml document: %v", ydoc)
	}
	if !strings.HasPrefix(out, "id: ") {
		t.Fatalf("expected stored key order to survive, got:\n%s", out)
	}

	resetCommandState(t)
	if _, err := executeCommand(t, "--config", cfg, "report", "show", runID, "--format", "xml"); err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestReportShowErrors(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg := writeTestConfig(env, "")

	for _, format := range []string{"text", "json"} {
		resetCommandState(t)
		_, err := executeCommand(t, "--config", cfg, "report", "show", testRunID, "--format", format)
		var notFound *ReportNotFoundError
		if !errors.As(err, &notFound) || notFound.ID != testRunID {
			t.Errorf("%s: expected ReportNotFoundError, got %v", format, err)
		}
	}

	resetCommandState(t)
	if _, err := executeCommand(t, "--config", cfg, "report", "show", "../../etc/passwd", "--format", "json"); err == nil {
		t.Error("expected invalid run ID to be rejected")
	}
}

func TestReportListEmpty(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg := writeTestConfig(env, "")
	out, err := executeCommand(t, "--config", cfg, "report", "list")
	if err != nil {
		t.Fatalf("report list failed: %v", err)
	}
	if !strings.Contains(out, "No run reports found in "+env.ResultsDir) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestReportTelemetry(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg, runID := runStubVerify(t, env, healthyStubs())

	out, err := executeCommand(t, "--config", cfg, "report", "telemetry")
	if err != nil {
		t.Fatalf("report telemetry failed: %v", err)
	}
	if !strings.Contains(out, "Confidence Score Trend") || !strings.Contains(out, strings.Repeat("#", 40)) {
		t.Fatalf("unexpected ascii output:\n%s", out)
	}

	resetCommandState(t)
	out, err = executeCommand(t, "--config", cfg, "report", "telemetry", "--format", "json")
	if err != nil {
		t.Fatalf("report telemetry json failed: %v", err)
	}
	var records []telemetryRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("telemetry json does not parse: %v\n%s", err, out)
	}
	if len(records) != 1 || records[0].RunID != runID || records[0].Score != 100 {
		t.Fatalf("unexpected telemetry records: %+v", records)
	}

	resetCommandState(t)
	if _, err := executeCommand(t, "--config", cfg, "report", "telemetry", "--format", "csv"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestJSONToYAMLKeepsKeyOrder(t *testing.T) {
	out, err := jsonToYAML([]byte(`{"zeta":1,"alpha":{"b":[1,2],"a":"x"}}`))
	if err != nil {
		t.Fatalf("jsonToYAML returned error: %v", err)
	}
	want := "zeta: 1\nalpha:\n  b:\n    - 1\n    - 2\n  a: x\n"
	if string(out) != want {
		t.Fatalf("unexpected yaml:\n%s\nwant:\n%s", out, want)
	}
}
