package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/khanhnv2901/netguard/internal/application"
	consts "github.com/khanhnv2901/netguard/internal/shared/constants"
	"github.com/khanhnv2901/netguard/internal/supervisor"
)

const (
	envPrefix         = "NETGUARD"
	defaultResultsDir = "./results"
)

var cfgFile string
var operator string
var logLevel string

// exitCode is set by commands that map their outcome to a process status.
var exitCode = supervisor.ExitOK

var osExit = os.Exit

var rootCmd = &cobra.Command{
	Use:   "netguard",
	Short: "Verify that this host's network posture matches its VPN policy",
	Long: `netguard checks the VPN interface, the resolver configuration, the host
and its environment, then optionally watches the physical interfaces for
traffic escaping the tunnel. The run is scored and stored under the results
directory; the exit status reflects the confidence in the posture.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		applyConfigDefaults(cmd)

		resultsDir := viper.GetString("results_dir")
		if resultsDir == "" {
			resultsDir = defaultResultsDir
		}

		// create results dir if not exists
		if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
			return fmt.Errorf("failed to create results directory: %w", err)
		}

		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}

		// ensure operator is set (via flag, config or env default)
		if operator == "" {
			operator = cliConfig.Defaults.Operator
		}
		if operator == "" {
			operator = detectOperatorFromEnv()
		}
		if operator == "" {
			return fmt.Errorf("operator identity is required (use --operator or set USER env)")
		}

		// Make final resultsDir absolute (for clarity in logs)
		if abs, err := filepath.Abs(resultsDir); err == nil {
			resultsDir = abs
		}

		services, err := application.NewContainer(resultsDir, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}

		logger.Debugw("Configuration loaded", "operator", operator, "results_dir", resultsDir, "config", viper.ConfigFileUsed())

		storeAppContext(cmd, &AppContext{
			Logger:     logger,
			Operator:   operator,
			ResultsDir: resultsDir,
			Config:     cliConfig,
			Services:   services,
		})
		return nil
	},
}

// Execute runs the command tree and exits with the status the command selected.
func Execute() {
	exitCode = supervisor.ExitOK
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorError("Error:"), err)
		if exitCode == supervisor.ExitOK {
			exitCode = supervisor.ExitError
		}
	}
	osExit(exitCode)
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".netguard")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	if strings.EqualFold(level, "debug") {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		return l.Sugar(), nil
	}

	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l.Sugar(), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.netguard.yaml)")
	rootCmd.PersistentFlags().StringVarP(&operator, "operator", "o", "", "operator name (or set via USER env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	// add subcommands
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
