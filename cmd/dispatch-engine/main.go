// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the dispatch-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/dispatch-engine/internal/secrets"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the unmarshalled configuration, filled before any command runs.
	cfg types.Config

	// logger writes structured logs to stderr; stdout is reserved for output.
	logger = zap.NewNop()

	// loadedSecrets holds API keys loaded from the secrets directory.
	loadedSecrets secrets.Secrets
)

// rootCmd is the base command for the dispatch-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "dispatch-engine",
	Short: "Federated search and input resolution across data-source adapters",
	Long: `dispatch-engine fans one query out to many data-source adapters at once and
merges what comes back, and maps free-form input (URLs, identifiers,
shorthands) onto the adapter operation that can fetch it.

Search profiles name the adapter sets to query. Built-in profiles can be
extended or shadowed in the user profile file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(cfg.Log.Level, verbose)
		if err != nil {
			return err
		}
		logger = l

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./dispatch-engine.yaml or ~/.config/dispatch-engine/dispatch-engine.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of API key files")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().String("profiles-file", "", "user profile file (default: ~/.config/dispatch-engine/profiles.yaml)")
	_ = viper.BindPFlag("profiles_file", rootCmd.PersistentFlags().Lookup("profiles-file"))
}

func setDefaults() {
	viper.SetDefault("engine.max_concurrency", 8)
	viper.SetDefault("engine.default_limit", types.DefaultLimit)
	viper.SetDefault("engine.timeout", types.DefaultTimeoutMS*time.Millisecond)
	viper.SetDefault("engine.global_timeout", types.DefaultGlobalTimeoutMS*time.Millisecond)
	viper.SetDefault("http.timeout", 30*time.Second)
	viper.SetDefault("http.user_agent", "dispatch-engine/"+version)
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", "")
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "")
	viper.SetDefault("adapters.openalex_email", "")
	viper.SetDefault("adapters.arxiv_interval", 3*time.Second)
}

func initConfig() {
	setDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dispatch-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		if dir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(dir, "dispatch-engine"))
		}
	}

	viper.SetEnvPrefix("DISPATCH_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds a console logger on stderr at the configured level.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
