package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/clonesync/csync/pkg/api"
	"github.com/clonesync/csync/pkg/logging"
)

var (
	cfgFile      string
	backendURL   string
	backendMode  string
	outputFormat string
	demoMode     bool
	verbose      bool

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "csync",
	Short: "CLI for the CloneSync lip-sync service",
	Long: `csync is a command line interface for the CloneSync lip-sync service:
uploading media, submitting and tracking lip-sync jobs, managing engines
and tuning generation settings.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	defer func() {
		if logger != nil {
			logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.csync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "backend API URL (default from config or http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&backendMode, "mode", "", "backend mode: direct, serverless or auto (default auto)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "run without a backend, simulating engine readiness")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CSYNC")
	viper.AutomaticEnv()
	viper.BindEnv("backend_url", "CSYNC_BACKEND_URL")
	viper.BindEnv("backend_mode", "CSYNC_BACKEND_MODE")

	if err := viper.ReadInConfig(); err == nil {
		if backendURL == "" && viper.GetString("backend_url") != "" {
			backendURL = viper.GetString("backend_url")
		}
		if backendMode == "" && viper.GetString("backend_mode") != "" {
			backendMode = viper.GetString("backend_mode")
		}
	}

	if backendURL == "" && viper.GetString("backend_url") != "" {
		backendURL = viper.GetString("backend_url")
	}
	if backendURL == "" {
		backendURL = "http://localhost:8000"
	}

	logCfg := logging.DefaultConfig()
	if verbose {
		logCfg.Level = "debug"
	}
	var err error
	logger, err = logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}

// configDir is where csync keeps its config, settings and script files.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
		os.Exit(1)
	}
	return filepath.Join(home, ".csync")
}

// resolveMode picks the deployment flavor from the flag, config or URL.
func resolveMode() api.Mode {
	switch backendMode {
	case "direct":
		return api.ModeDirect
	case "serverless":
		return api.ModeServerless
	default:
		return api.DetectMode(backendURL)
	}
}

// newAPIClient builds the API client commands share.
func newAPIClient() *api.Client {
	resolver := api.NewResolver(backendURL, resolveMode())
	return api.NewClient(resolver, logger)
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// IsYAMLOutput returns true if YAML output is requested
func IsYAMLOutput() bool {
	return outputFormat == "yaml"
}

// printStructured renders v as JSON or YAML per the --output flag and
// reports whether it handled the output.
func printStructured(v any) (bool, error) {
	switch {
	case IsJSONOutput():
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(out))
		return true, nil
	case IsYAMLOutput():
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return true, enc.Close()
	}
	return false, nil
}
