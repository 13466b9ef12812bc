package cmd

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/khanhnv2901/netguard/cmd/testutil"
	"github.com/khanhnv2901/netguard/internal/domain/policy"
)

func TestConfigInitWritesLoadableTemplate(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg := writeTestConfig(env, "")
	const rel = "generated/.netguard.toml"
	target := filepath.Join(env.TmpDir, rel)

	out, err := executeCommand(t, "--config", cfg, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Wrote configuration template to "+target) {
		t.Fatalf("unexpected output: %s", out)
	}
	env.MustExist(rel)

	content := string(env.ReadFile(rel))
	if !strings.HasPrefix(content, "# netguard configuration") {
		t.Fatalf("expected template header, got:\n%s", content)
	}

	v := viper.New()
	v.SetConfigFile(target)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("generated config does not parse: %v", err)
	}
	loaded, err := loadPolicy(v)
	if err != nil {
		t.Fatalf("generated policy does not load: %v", err)
	}
	if !reflect.DeepEqual(loaded, policy.Default()) {
		t.Fatalf("generated policy differs from the default:\n got %+v\nwant %+v", loaded, policy.Default())
	}
	if v.GetString("defaults.hash_algorithm") != "sha256" || !v.GetBool("defaults.progress") {
		t.Fatalf("unexpected defaults section: %v", v.AllSettings()["defaults"])
	}
}

func TestConfigInitRefusesToOverwrite(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg := writeTestConfig(env, "")
	target := env.CreateFile("existing.toml", []byte("keep me\n"))

	if _, err := executeCommand(t, "--config", cfg, "config", "init", "--path", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
	if got := string(env.ReadFile("existing.toml")); got != "keep me\n" {
		t.Fatalf("existing file was modified: %q", got)
	}

	resetCommandState(t)
	if out, err := executeCommand(t, "--config", cfg, "config", "init", "--path", target, "--force"); err != nil {
		t.Fatalf("config init --force failed: %v\n%s", err, out)
	}
	if got := string(env.ReadFile("existing.toml")); !strings.Contains(got, "[policy]") {
		t.Fatalf("expected template after --force, got:\n%s", got)
	}
}

func TestConfigShowPrintsEffectivePolicy(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg := writeTestConfig(env, "policy:\n  vpn_interface: wg0\n  expected_dns_servers: []\n")

	out, err := executeCommand(t, "--config", cfg, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v\n%s", err, out)
	}

	for _, want := range []string{
		"# config file: " + cfg,
		"results_dir: " + env.ResultsDir,
		"operator: test-operator",
		"vpn_interface: wg0",
		"resolver_path: /etc/resolv.conf",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "expected_dns_servers") {
		t.Errorf("expected disabled DNS comparison to be omitted\n%s", out)
	}
}

func TestConfigShowRejectsInvalidPolicy(t *testing.T) {
	resetCommandState(t)
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	cfg := writeTestConfig(env, "policy:\n  vpn_server_ips: [bogus]\n")

	_, err := executeCommand(t, "--config", cfg, "config", "show")
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
}
