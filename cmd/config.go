package cmd

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/netguard/internal/domain/audit"
	"github.com/khanhnv2901/netguard/internal/domain/policy"
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Defaults DefaultValues
	Verify   VerifyRuntimeConfig
}

// DefaultValues represent operator-level defaults, typically derived from env/config.
type DefaultValues struct {
	Operator         string
	TelemetryEnabled bool
	HashAlgorithm    string
}

// VerifyRuntimeConfig consolidates flag-driven settings for the verify command.
type VerifyRuntimeConfig struct {
	VPNInterface       string
	PhysicalInterfaces []string
	Duration           time.Duration
	CheckExternalIP    bool
	Skip               []string
	TelemetryEnabled   bool
	ProgressEnabled    bool
	HashAlgorithm      string
}

type defaultOverrides struct {
	Operator         string
	OperatorOverride bool
	TelemetryEnabled *bool
	HashAlgorithm    string
	ProgressEnabled  *bool
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Defaults: DefaultValues{
			Operator:         detectOperatorFromEnv(),
			TelemetryEnabled: false,
			HashAlgorithm:    audit.AlgorithmSHA256,
		},
		Verify: VerifyRuntimeConfig{
			VPNInterface:     policy.DefaultVPNInterface,
			TelemetryEnabled: false,
			ProgressEnabled:  true,
			HashAlgorithm:    audit.AlgorithmSHA256,
		},
	}
}

func detectOperatorFromEnv() string {
	if env := os.Getenv("USER"); env != "" {
		return env
	}
	if env := os.Getenv("LOGNAME"); env != "" {
		return env
	}
	return ""
}

func loadDefaultOverrides() defaultOverrides {
	overrides := defaultOverrides{}

	if viper.IsSet("defaults.operator") {
		overrides.Operator = viper.GetString("defaults.operator")
		overrides.OperatorOverride = true
	}

	if viper.IsSet("defaults.telemetry") {
		val := viper.GetBool("defaults.telemetry")
		overrides.TelemetryEnabled = &val
	}

	if viper.IsSet("defaults.hash_algorithm") {
		overrides.HashAlgorithm = strings.ToLower(viper.GetString("defaults.hash_algorithm"))
	}

	if viper.IsSet("defaults.progress") {
		val := viper.GetBool("defaults.progress")
		overrides.ProgressEnabled = &val
	}

	return overrides
}

// applyConfigDefaults merges config file defaults into the runtime config when the user
// did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadDefaultOverrides()

	if overrides.OperatorOverride && overrides.Operator != "" {
		cliConfig.Defaults.Operator = overrides.Operator
		setStringFlagIfUnset(cmd.Flags(), "operator", overrides.Operator)
	}

	if overrides.TelemetryEnabled != nil {
		cliConfig.Defaults.TelemetryEnabled = *overrides.TelemetryEnabled
		applyFlagDefault(verifyCmd.Flags(), "telemetry", *overrides.TelemetryEnabled, func(v bool) {
			cliConfig.Verify.TelemetryEnabled = v
		})
	}

	if overrides.ProgressEnabled != nil {
		applyFlagDefault(verifyCmd.Flags(), "progress", *overrides.ProgressEnabled, func(v bool) {
			cliConfig.Verify.ProgressEnabled = v
		})
	}

	if overrides.HashAlgorithm != "" && audit.SupportedAlgorithm(overrides.HashAlgorithm) {
		cliConfig.Defaults.HashAlgorithm = overrides.HashAlgorithm
		applyFlagDefault(verifyCmd.Flags(), "hash-algorithm", overrides.HashAlgorithm, func(v string) {
			cliConfig.Verify.HashAlgorithm = v
		})
	}
}

// applyVerifyOverrides lets explicitly set verify flags win over the configured policy.
// Unset flags are back-filled from the policy so the runtime config reflects what runs.
func applyVerifyOverrides(flags *pflag.FlagSet, cfg *VerifyRuntimeConfig, p *policy.Policy) {
	applyFlagDefault(flags, "interface", p.VPNInterface, func(v string) { cfg.VPNInterface = v })
	p.VPNInterface = cfg.VPNInterface

	applyFlagDefault(flags, "monitor", p.PhysicalInterfaces, func(v []string) { cfg.PhysicalInterfaces = v })
	p.PhysicalInterfaces = compactStrings(cfg.PhysicalInterfaces)

	applyFlagDefault(flags, "duration", p.MonitorDuration, func(v time.Duration) { cfg.Duration = v })
	p.MonitorDuration = cfg.Duration

	applyFlagDefault(flags, "check-external-ip", p.CheckExternalIP, func(v bool) { cfg.CheckExternalIP = v })
	p.CheckExternalIP = cfg.CheckExternalIP
}

func applyFlagDefault[T any](flags *pflag.FlagSet, name string, value T, setter func(T)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func setStringFlagIfUnset(flags *pflag.FlagSet, name, value string) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || flag.Changed {
		return
	}
	_ = flag.Value.Set(value)
}

// compactStrings trims entries and drops blanks; nil stays nil.
func compactStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Policy keys under the "policy" config section.
const (
	keyVPNInterface               = "policy.vpn_interface"
	keyExpectedVPNNetwork         = "policy.expected_vpn_network"
	keyExpectedDNSServers         = "policy.expected_dns_servers"
	keyResolverPath               = "policy.resolver_path"
	keyCheckExternalIP            = "policy.check_external_ip"
	keyExternalIPCheckURL         = "policy.external_ip_check_url"
	keyExpectedExternalIPs        = "policy.expected_external_ips"
	keyPhysicalInterfaces         = "policy.physical_interfaces"
	keyLocalSubnets               = "policy.local_subnets"
	keyVPNServerIPs               = "policy.vpn_server_ips"
	keyAllowedLeakIPs             = "policy.allowed_leak_ips"
	keyAllowedLeakPorts           = "policy.allowed_leak_ports"
	keyMonitorDuration            = "policy.monitor_duration"
	keyAllowedListeningTCPPorts   = "policy.allowed_listening_tcp_ports"
	keyAllowedListeningUDPPorts   = "policy.allowed_listening_udp_ports"
	keyDisallowedProcesses        = "policy.disallowed_processes"
	keyAllowedLoginUsers          = "policy.allowed_login_users"
	keyAllowedLoginHosts          = "policy.allowed_login_hosts"
	keyWatchedFiles               = "policy.watched_files"
	keyRequiredKernelModules      = "policy.required_kernel_modules"
	keyDisallowedKernelModules    = "policy.disallowed_kernel_modules"
	keyEnforceRequiredModulesOnly = "policy.enforce_required_modules_only"
	keyDisallowedServices         = "policy.disallowed_services"
	keyDisallowedTimers           = "policy.disallowed_timers"
	keyCheckFirewall              = "policy.check_firewall"
	keyHostsPath                  = "policy.hosts_path"
	keyDisallowedEnvVars          = "policy.disallowed_env_vars"
	keyDisallowedHostsEntries     = "policy.disallowed_hosts_entries"
)

// loadPolicy layers the configured policy keys over the built-in default.
// An unset key keeps the default; an explicitly empty list disables that comparison.
func loadPolicy(v *viper.Viper) (policy.Policy, error) {
	p := policy.Default()
	l := policyLoader{v: v}

	l.str(keyVPNInterface, &p.VPNInterface)
	l.str(keyResolverPath, &p.ResolverPath)
	l.str(keyExternalIPCheckURL, &p.ExternalIPCheckURL)
	l.str(keyHostsPath, &p.HostsPath)

	l.boolean(keyCheckExternalIP, &p.CheckExternalIP)
	l.boolean(keyEnforceRequiredModulesOnly, &p.EnforceRequiredModulesOnly)
	l.boolean(keyCheckFirewall, &p.CheckFirewall)

	if v.IsSet(keyExpectedVPNNetwork) {
		p.ExpectedVPNNetwork = nil
		if raw := strings.TrimSpace(v.GetString(keyExpectedVPNNetwork)); raw != "" {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				l.fail(keyExpectedVPNNetwork, err)
			} else {
				prefix = prefix.Masked()
				p.ExpectedVPNNetwork = &prefix
			}
		}
	}

	l.addrs(keyExpectedDNSServers, &p.ExpectedDNSServers)
	l.addrs(keyExpectedExternalIPs, &p.ExpectedExternalIPs)
	l.addrs(keyVPNServerIPs, &p.VPNServerIPs)
	l.addrs(keyAllowedLeakIPs, &p.AllowedLeakIPs)
	l.prefixes(keyLocalSubnets, &p.LocalSubnets)

	l.ports(keyAllowedLeakPorts, &p.AllowedLeakPorts)
	l.ports(keyAllowedListeningTCPPorts, &p.AllowedListeningTCPPorts)
	l.ports(keyAllowedListeningUDPPorts, &p.AllowedListeningUDPPorts)

	l.list(keyPhysicalInterfaces, &p.PhysicalInterfaces)
	l.list(keyDisallowedProcesses, &p.DisallowedProcesses)
	l.list(keyAllowedLoginUsers, &p.AllowedLoginUsers)
	l.list(keyAllowedLoginHosts, &p.AllowedLoginHosts)
	l.list(keyWatchedFiles, &p.WatchedFiles)
	l.list(keyRequiredKernelModules, &p.RequiredKernelModules)
	l.list(keyDisallowedKernelModules, &p.DisallowedKernelModules)
	l.list(keyDisallowedServices, &p.DisallowedServices)
	l.list(keyDisallowedTimers, &p.DisallowedTimers)
	l.list(keyDisallowedEnvVars, &p.DisallowedEnvVars)
	l.list(keyDisallowedHostsEntries, &p.DisallowedHostsEntries)

	if v.IsSet(keyMonitorDuration) {
		p.MonitorDuration = v.GetDuration(keyMonitorDuration)
	}

	if l.err != nil {
		return policy.Policy{}, l.err
	}
	return p, nil
}

// policyLoader keeps the first parse error so loadPolicy reads linearly.
type policyLoader struct {
	v   *viper.Viper
	err error
}

func (l *policyLoader) fail(key string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (l *policyLoader) str(key string, dst *string) {
	if l.v.IsSet(key) {
		*dst = strings.TrimSpace(l.v.GetString(key))
	}
}

func (l *policyLoader) boolean(key string, dst *bool) {
	if l.v.IsSet(key) {
		*dst = l.v.GetBool(key)
	}
}

func (l *policyLoader) list(key string, dst *[]string) {
	if !l.v.IsSet(key) {
		return
	}
	values := compactStrings(l.v.GetStringSlice(key))
	if len(values) == 0 {
		values = nil
	}
	*dst = values
}

func (l *policyLoader) addrs(key string, dst *[]netip.Addr) {
	var raw []string
	l.list(key, &raw)
	if !l.v.IsSet(key) {
		return
	}
	parsed, err := policy.ParseAddrs(raw)
	if err != nil {
		l.fail(key, err)
		return
	}
	*dst = parsed
}

func (l *policyLoader) prefixes(key string, dst *[]netip.Prefix) {
	var raw []string
	l.list(key, &raw)
	if !l.v.IsSet(key) {
		return
	}
	parsed, err := policy.ParsePrefixes(raw)
	if err != nil {
		l.fail(key, err)
		return
	}
	*dst = parsed
}

func (l *policyLoader) ports(key string, dst *[]uint16) {
	if !l.v.IsSet(key) {
		return
	}
	raw := l.v.GetIntSlice(key)
	if len(raw) == 0 {
		*dst = nil
		return
	}
	parsed, err := policy.ParsePorts(raw)
	if err != nil {
		l.fail(key, err)
		return
	}
	*dst = parsed
}
