// Wifiprov provisions Wi-Fi credentials and application parameters.
//
// On a device, `wifiprov run` joins the saved network or, failing that,
// raises an access point and serves a small provisioning portal. From a
// laptop, `wifiprov scan` finds running portals and `wifiprov submit` sends
// them credentials and parameter values.
//
// Usage:
//
//	wifiprov [command] [flags]
//
// See 'wifiprov --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/version"
)

var (
	configPath string
	logLevel   string
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifiprov",
	Short: "Wi-Fi provisioning portal and connection manager",
	Long: `Joins a saved Wi-Fi network, or serves a provisioning portal where
credentials and application parameters can be submitted.

Parameter values are stored as a plain key/value file and survive restarts.
Use 'wifiprov run' on the device and 'wifiprov scan' / 'wifiprov submit'
from a client joined to its access point.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: "+defaultConfigHint()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config and "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiprov %s\n", version.Full())
	},
}

func defaultConfigHint() string {
	path, err := config.GetConfigPath()
	if err != nil {
		return "config.yaml in the user config directory"
	}
	return path
}

// loadConfig reads the config file and starts logging. Precedence for the
// log level is --log-level, then the environment, then the file.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = cfg.Logging.Level
	}
	if err := logging.Initialize(level); err != nil {
		return nil, err
	}
	return cfg, nil
}
