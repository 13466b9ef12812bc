package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/netguard/internal/domain/policy"
	consts "github.com/khanhnv2901/netguard/internal/shared/constants"
	"github.com/khanhnv2901/netguard/internal/shared/security"
)

// configDocument is the on-disk shape of a netguard config file.
type configDocument struct {
	ResultsDir string           `toml:"results_dir" yaml:"results_dir"`
	Defaults   defaultsDocument `toml:"defaults" yaml:"defaults"`
	Policy     policyDocument   `toml:"policy" yaml:"policy"`
}

type defaultsDocument struct {
	Operator      string `toml:"operator,omitempty" yaml:"operator,omitempty"`
	Telemetry     bool   `toml:"telemetry" yaml:"telemetry"`
	Progress      bool   `toml:"progress" yaml:"progress"`
	HashAlgorithm string `toml:"hash_algorithm" yaml:"hash_algorithm"`
}

// policyDocument mirrors policy.Policy with textual addresses. Omitted lists keep
// the built-in default when loaded back.
type policyDocument struct {
	VPNInterface       string   `toml:"vpn_interface" yaml:"vpn_interface"`
	ExpectedVPNNetwork string   `toml:"expected_vpn_network,omitempty" yaml:"expected_vpn_network,omitempty"`
	ExpectedDNSServers []string `toml:"expected_dns_servers,omitempty" yaml:"expected_dns_servers,omitempty"`
	ResolverPath       string   `toml:"resolver_path" yaml:"resolver_path"`

	CheckExternalIP     bool     `toml:"check_external_ip" yaml:"check_external_ip"`
	ExternalIPCheckURL  string   `toml:"external_ip_check_url" yaml:"external_ip_check_url"`
	ExpectedExternalIPs []string `toml:"expected_external_ips,omitempty" yaml:"expected_external_ips,omitempty"`

	PhysicalInterfaces []string `toml:"physical_interfaces,omitempty" yaml:"physical_interfaces,omitempty"`
	LocalSubnets       []string `toml:"local_subnets,omitempty" yaml:"local_subnets,omitempty"`
	VPNServerIPs       []string `toml:"vpn_server_ips,omitempty" yaml:"vpn_server_ips,omitempty"`
	AllowedLeakIPs     []string `toml:"allowed_leak_ips,omitempty" yaml:"allowed_leak_ips,omitempty"`
	AllowedLeakPorts   []int    `toml:"allowed_leak_ports,omitempty" yaml:"allowed_leak_ports,omitempty"`
	MonitorDuration    string   `toml:"monitor_duration" yaml:"monitor_duration"`

	AllowedListeningTCPPorts   []int    `toml:"allowed_listening_tcp_ports,omitempty" yaml:"allowed_listening_tcp_ports,omitempty"`
	AllowedListeningUDPPorts   []int    `toml:"allowed_listening_udp_ports,omitempty" yaml:"allowed_listening_udp_ports,omitempty"`
	DisallowedProcesses        []string `toml:"disallowed_processes,omitempty" yaml:"disallowed_processes,omitempty"`
	AllowedLoginUsers          []string `toml:"allowed_login_users,omitempty" yaml:"allowed_login_users,omitempty"`
	AllowedLoginHosts          []string `toml:"allowed_login_hosts,omitempty" yaml:"allowed_login_hosts,omitempty"`
	WatchedFiles               []string `toml:"watched_files,omitempty" yaml:"watched_files,omitempty"`
	RequiredKernelModules      []string `toml:"required_kernel_modules,omitempty" yaml:"required_kernel_modules,omitempty"`
	DisallowedKernelModules    []string `toml:"disallowed_kernel_modules,omitempty" yaml:"disallowed_kernel_modules,omitempty"`
	EnforceRequiredModulesOnly bool     `toml:"enforce_required_modules_only" yaml:"enforce_required_modules_only"`
	DisallowedServices         []string `toml:"disallowed_services,omitempty" yaml:"disallowed_services,omitempty"`
	DisallowedTimers           []string `toml:"disallowed_timers,omitempty" yaml:"disallowed_timers,omitempty"`
	CheckFirewall              bool     `toml:"check_firewall" yaml:"check_firewall"`

	HostsPath              string   `toml:"hosts_path" yaml:"hosts_path"`
	DisallowedEnvVars      []string `toml:"disallowed_env_vars,omitempty" yaml:"disallowed_env_vars,omitempty"`
	DisallowedHostsEntries []string `toml:"disallowed_hosts_entries,omitempty" yaml:"disallowed_hosts_entries,omitempty"`
}

const configTemplateHeader = `# netguard configuration
#
# Every key under [policy] is optional. A key that is left out keeps the
# built-in default; an explicitly empty list (e.g. expected_dns_servers = [])
# turns that comparison off. Environment variables override the file, using
# the NETGUARD_ prefix with dots replaced by underscores, for example
# NETGUARD_POLICY_VPN_INTERFACE=wg0.
#
# Traffic monitoring runs only when physical_interfaces is non-empty and
# requires capture privileges. monitor_duration = "0s" monitors until
# interrupted. allowed_leak_ports exempts a destination port from leak
# detection for both tcp and udp; the listening port lists only apply to
# the host audit.

`

func documentFromPolicy(p policy.Policy) policyDocument {
	doc := policyDocument{
		VPNInterface:               p.VPNInterface,
		ExpectedDNSServers:         addrStrings(p.ExpectedDNSServers),
		ResolverPath:               p.ResolverPath,
		CheckExternalIP:            p.CheckExternalIP,
		ExternalIPCheckURL:         p.ExternalIPCheckURL,
		ExpectedExternalIPs:        addrStrings(p.ExpectedExternalIPs),
		PhysicalInterfaces:         p.PhysicalInterfaces,
		LocalSubnets:               prefixStrings(p.LocalSubnets),
		VPNServerIPs:               addrStrings(p.VPNServerIPs),
		AllowedLeakIPs:             addrStrings(p.AllowedLeakIPs),
		AllowedLeakPorts:           portInts(p.AllowedLeakPorts),
		MonitorDuration:            p.MonitorDuration.String(),
		AllowedListeningTCPPorts:   portInts(p.AllowedListeningTCPPorts),
		AllowedListeningUDPPorts:   portInts(p.AllowedListeningUDPPorts),
		DisallowedProcesses:        p.DisallowedProcesses,
		AllowedLoginUsers:          p.AllowedLoginUsers,
		AllowedLoginHosts:          p.AllowedLoginHosts,
		WatchedFiles:               p.WatchedFiles,
		RequiredKernelModules:      p.RequiredKernelModules,
		DisallowedKernelModules:    p.DisallowedKernelModules,
		EnforceRequiredModulesOnly: p.EnforceRequiredModulesOnly,
		DisallowedServices:         p.DisallowedServices,
		DisallowedTimers:           p.DisallowedTimers,
		CheckFirewall:              p.CheckFirewall,
		HostsPath:                  p.HostsPath,
		DisallowedEnvVars:          p.DisallowedEnvVars,
		DisallowedHostsEntries:     p.DisallowedHostsEntries,
	}
	if p.ExpectedVPNNetwork != nil {
		doc.ExpectedVPNNetwork = p.ExpectedVPNNetwork.String()
	}
	return doc
}

func addrStrings(addrs []netip.Addr) []string {
	if addrs == nil {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

func prefixStrings(prefixes []netip.Prefix) []string {
	if prefixes == nil {
		return nil
	}
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, p.String())
	}
	return out
}

func portInts(ports []uint16) []int {
	if ports == nil {
		return nil
	}
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		out = append(out, int(p))
	}
	return out
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the netguard configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration template populated with the default policy",
	Long: `Write a TOML configuration file populated with the built-in policy.

The file is written to $HOME/.netguard.toml unless --path is given. An existing
file is left untouched unless --force is set.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE:  runConfigShow,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to locate home directory: %w", err)
		}
		path = filepath.Join(home, ".netguard.toml")
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}

	doc := configDocument{
		ResultsDir: defaultResultsDir,
		Defaults: defaultsDocument{
			Telemetry:     false,
			Progress:      true,
			HashAlgorithm: cliConfig.Defaults.HashAlgorithm,
		},
		Policy: documentFromPolicy(policy.Default()),
	}

	var buf bytes.Buffer
	buf.WriteString(configTemplateHeader)
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), consts.DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := security.WriteFileAtomic(path, buf.Bytes(), consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote configuration template to %s\n", colorSuccess("✓"), path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)

	p, err := loadPolicy(viper.GetViper())
	if err != nil {
		return &PolicyError{Err: err}
	}

	doc := configDocument{
		Defaults: defaultsDocument{
			Operator:      cliConfig.Defaults.Operator,
			Telemetry:     cliConfig.Defaults.TelemetryEnabled,
			Progress:      cliConfig.Verify.ProgressEnabled,
			HashAlgorithm: cliConfig.Defaults.HashAlgorithm,
		},
		Policy: documentFromPolicy(p),
	}
	if appCtx != nil {
		doc.ResultsDir = appCtx.ResultsDir
		doc.Defaults.Operator = appCtx.Operator
	}

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", used)
	}
	return writeYAML(cmd.OutOrStdout(), doc)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func init() {
	configInitCmd.Flags().String("path", "", "destination file (default $HOME/.netguard.toml)")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
