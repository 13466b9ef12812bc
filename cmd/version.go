package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/google/gopacket/pcap"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X github.com/khanhnv2901/netguard/cmd.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the netguard version and, with --verbose, the build and capture backend details.",
	// version needs neither config nor a results directory
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if !verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "netguard version %s\n", Version)
			return
		}
		printBuildInfo(cmd.OutOrStdout())
	},
}

func printBuildInfo(w io.Writer) {
	commit, date := GitCommit, BuildDate
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "unknown":
				commit = s.Value
			case s.Key == "vcs.time" && date == "unknown":
				date = s.Value
			}
		}
	}

	fmt.Fprintln(w, "netguard Version Information:")
	fmt.Fprintf(w, "  Version:    %s\n", Version)
	fmt.Fprintf(w, "  Git Commit: %s\n", commit)
	fmt.Fprintf(w, "  Build Date: %s\n", date)
	fmt.Fprintf(w, "  Go Version: %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  Capture:    %s\n", pcap.Version())
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "Show build and capture backend details")
}
