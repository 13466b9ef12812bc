package cmd

import (
	"errors"
	"net/netip"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/netguard/internal/domain/policy"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
)

func viperFromYAML(t *testing.T, content string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	return v
}

func TestApplyFlagDefaultInt(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("timeout", 0, "")

	var applied int
	applyFlagDefault(flags, "timeout", 15, func(v int) {
		applied = v
	})
	if applied != 15 {
		t.Fatalf("expected setter to receive 15, got %d", applied)
	}

	// When flag already set, setter should not run.
	if err := flags.Set("timeout", "7"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	applied = 0
	applyFlagDefault(flags, "timeout", 20, func(v int) {
		applied = v
	})
	if applied != 0 {
		t.Fatalf("setter should not run when flag overridden, got %d", applied)
	}
}

func TestApplyFlagDefaultBool(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("telemetry", false, "")

	applied := false
	applyFlagDefault(flags, "telemetry", true, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatal("expected setter to run with true")
	}

	if err := flags.Set("telemetry", "false"); err != nil {
		t.Fatalf("failed to set bool flag: %v", err)
	}
	applied = true
	applyFlagDefault(flags, "telemetry", false, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatalf("setter should not change value when flag already set")
	}
}

func TestSetStringFlagIfUnset(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("operator", "", "")

	setStringFlagIfUnset(flags, "operator", "default-operator")
	if got := flags.Lookup("operator").Value.String(); got != "default-operator" {
		t.Fatalf("expected operator to be default, got %s", got)
	}

	if err := flags.Set("operator", "user-provided"); err != nil {
		t.Fatalf("failed to set operator: %v", err)
	}
	setStringFlagIfUnset(flags, "operator", "new-default")
	if got := flags.Lookup("operator").Value.String(); got != "user-provided" {
		t.Fatalf("expected operator to remain user-provided, got %s", got)
	}
}

func TestDetectOperatorFromEnv(t *testing.T) {
	t.Setenv("USER", "env-user")
	if got := detectOperatorFromEnv(); got != "env-user" {
		t.Fatalf("expected env-user, got %s", got)
	}

	t.Setenv("USER", "")
	t.Setenv("LOGNAME", "log-user")
	if got := detectOperatorFromEnv(); got != "log-user" {
		t.Fatalf("expected log-user, got %s", got)
	}
}

func TestNewCLIConfigDefaults(t *testing.T) {
	cfg := newCLIConfig()
	if cfg.Verify.VPNInterface != policy.DefaultVPNInterface {
		t.Fatalf("unexpected default interface: %s", cfg.Verify.VPNInterface)
	}
	if cfg.Verify.HashAlgorithm != "sha256" || cfg.Defaults.HashAlgorithm != "sha256" {
		t.Fatalf("unexpected default hash algorithm: %+v", cfg)
	}
	if cfg.Verify.TelemetryEnabled {
		t.Fatal("expected telemetry to be disabled by default")
	}
	if !cfg.Verify.ProgressEnabled {
		t.Fatal("expected progress to be enabled by default")
	}
}

func TestLoadPolicyWithoutKeysKeepsDefault(t *testing.T) {
	p, err := loadPolicy(viper.New())
	if err != nil {
		t.Fatalf("loadPolicy returned error: %v", err)
	}
	if !reflect.DeepEqual(p, policy.Default()) {
		t.Fatalf("expected default policy, got %+v", p)
	}
}

func TestLoadPolicyOverrides(t *testing.T) {
	v := viperFromYAML(t, `
policy:
  vpn_interface: wg0
  expected_vpn_network: 10.8.0.14/24
  expected_dns_servers: ["1.1.1.1", "::ffff:1.0.0.1"]
  physical_interfaces: [eth0, " wlan0 "]
  allowed_listening_tcp_ports: [22, 443]
  allowed_leak_ports: [123]
  monitor_duration: 45s
  enforce_required_modules_only: true
  required_kernel_modules: [wireguard]
  check_firewall: false
`)

	p, err := loadPolicy(v)
	if err != nil {
		t.Fatalf("loadPolicy returned error: %v", err)
	}

	if p.VPNInterface != "wg0" {
		t.Errorf("expected wg0, got %s", p.VPNInterface)
	}
	if p.ExpectedVPNNetwork == nil || p.ExpectedVPNNetwork.String() != "10.8.0.0/24" {
		t.Errorf("expected masked 10.8.0.0/24, got %v", p.ExpectedVPNNetwork)
	}
	wantDNS := []netip.Addr{netip.MustParseAddr("1.1.1.1"), netip.MustParseAddr("1.0.0.1")}
	if !reflect.DeepEqual(p.ExpectedDNSServers, wantDNS) {
		t.Errorf("expected %v, got %v", wantDNS, p.ExpectedDNSServers)
	}
	if !reflect.DeepEqual(p.PhysicalInterfaces, []string{"eth0", "wlan0"}) {
		t.Errorf("unexpected physical interfaces: %v", p.PhysicalInterfaces)
	}
	if !reflect.DeepEqual(p.AllowedListeningTCPPorts, []uint16{22, 443}) {
		t.Errorf("unexpected listening tcp ports: %v", p.AllowedListeningTCPPorts)
	}
	if !reflect.DeepEqual(p.AllowedLeakPorts, []uint16{123}) {
		t.Errorf("unexpected leak ports: %v", p.AllowedLeakPorts)
	}
	if !reflect.DeepEqual(p.AllowedListeningUDPPorts, []uint16{68}) {
		t.Errorf("expected default listening udp ports, got %v", p.AllowedListeningUDPPorts)
	}
	if p.MonitorDuration != 45*time.Second {
		t.Errorf("expected 45s, got %s", p.MonitorDuration)
	}
	if !p.EnforceRequiredModulesOnly || p.CheckFirewall {
		t.Errorf("unexpected booleans: enforce=%v firewall=%v", p.EnforceRequiredModulesOnly, p.CheckFirewall)
	}
	// untouched keys keep defaults
	if !reflect.DeepEqual(p.DisallowedProcesses, policy.Default().DisallowedProcesses) {
		t.Errorf("expected default disallowed processes, got %v", p.DisallowedProcesses)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("expected loaded policy to validate: %v", err)
	}
}

func TestLoadPolicyExplicitEmptyListDisablesComparison(t *testing.T) {
	v := viperFromYAML(t, `
policy:
  expected_dns_servers: []
  disallowed_processes: []
  allowed_listening_udp_ports: []
`)

	p, err := loadPolicy(v)
	if err != nil {
		t.Fatalf("loadPolicy returned error: %v", err)
	}
	if p.ExpectedDNSServers != nil {
		t.Errorf("expected nil DNS servers, got %v", p.ExpectedDNSServers)
	}
	if p.DisallowedProcesses != nil {
		t.Errorf("expected nil disallowed processes, got %v", p.DisallowedProcesses)
	}
	if p.AllowedListeningUDPPorts != nil {
		t.Errorf("expected nil listening udp ports, got %v", p.AllowedListeningUDPPorts)
	}
}

func TestLoadPolicyRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
		wantErr error
	}{
		{"bad address", "policy:\n  expected_dns_servers: [not-an-ip]\n", keyExpectedDNSServers, nil},
		{"bad network", "policy:\n  expected_vpn_network: 10.8.0.0/99\n", keyExpectedVPNNetwork, nil},
		{"bad subnet", "policy:\n  local_subnets: [10.0.0.0]\n", keyLocalSubnets, nil},
		{"zero port", "policy:\n  allowed_leak_ports: [0]\n", keyAllowedLeakPorts, sharedErrors.ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadPolicy(viperFromYAML(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("expected error to name %s, got %v", tt.wantKey, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadPolicyFromEnvironment(t *testing.T) {
	t.Setenv("NETGUARD_POLICY_VPN_INTERFACE", "wg7")
	t.Setenv("NETGUARD_POLICY_CHECK_EXTERNAL_IP", "true")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	p, err := loadPolicy(v)
	if err != nil {
		t.Fatalf("loadPolicy returned error: %v", err)
	}
	if p.VPNInterface != "wg7" {
		t.Errorf("expected wg7 from env, got %s", p.VPNInterface)
	}
	if !p.CheckExternalIP {
		t.Error("expected check_external_ip from env")
	}
}

func TestApplyVerifyOverrides(t *testing.T) {
	flags := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	cfg := &VerifyRuntimeConfig{VPNInterface: policy.DefaultVPNInterface}
	bindVerifyFlags(flags, cfg)

	p := policy.Default()
	p.VPNInterface = "wg0"
	p.PhysicalInterfaces = []string{"eth0"}
	p.MonitorDuration = time.Minute

	if err := flags.Parse([]string{"--interface", "wg9", "--duration", "5s"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	applyVerifyOverrides(flags, cfg, &p)

	if p.VPNInterface != "wg9" {
		t.Errorf("expected flag interface wg9, got %s", p.VPNInterface)
	}
	if p.MonitorDuration != 5*time.Second {
		t.Errorf("expected flag duration 5s, got %s", p.MonitorDuration)
	}
	if !reflect.DeepEqual(p.PhysicalInterfaces, []string{"eth0"}) {
		t.Errorf("expected configured interfaces to survive, got %v", p.PhysicalInterfaces)
	}
	if p.CheckExternalIP {
		t.Error("expected check_external_ip to stay off")
	}
	if cfg.VPNInterface != "wg9" || !reflect.DeepEqual(cfg.PhysicalInterfaces, []string{"eth0"}) {
		t.Errorf("runtime config not back-filled: %+v", cfg)
	}
}

func TestApplyVerifyOverridesEmptyMonitorDisablesCapture(t *testing.T) {
	flags := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	cfg := &VerifyRuntimeConfig{}
	bindVerifyFlags(flags, cfg)

	p := policy.Default()
	p.PhysicalInterfaces = []string{"eth0"}

	if err := flags.Parse([]string{"--monitor", ""}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	applyVerifyOverrides(flags, cfg, &p)

	if p.MonitoringEnabled() {
		t.Fatalf("expected monitoring disabled, got interfaces %v", p.PhysicalInterfaces)
	}
}
