package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stain/internal/config"
	"github.com/xkilldash9x/stain/internal/observability"
)

// contextKey is a private type for context values owned by this package.
type contextKey string

// configKey is where PersistentPreRunE stores the loaded *config.Config for
// subcommands.
const configKey contextKey = "config"

// NewRootCommand builds the root command and its subcommands. Every call
// returns a fresh instance so executions cannot leak flag or config state
// into one another.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:     "stain",
		Short:   "Stain traces tainted data through string operations.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Runs before any subcommand, setting up config and logging.
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				// Fall back to a basic logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "stain"})
				return err
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting stain", zap.String("version", Version))

			// Store the validated config in the command's context for
			// subcommands.
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./stain.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newTraceCmd())
	return rootCmd
}

// Execute runs the CLI with the given signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Use the logger if available, otherwise fall back to stderr.
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// loadConfig reads defaults, the config file and STAIN_* environment
// variables into a validated Config. A missing config file is fine unless one
// was named explicitly.
func loadConfig(cfgFile string) (*config.Config, error) {
	if cfgFile != "" {
		expanded, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("could not resolve config path %q: %w", cfgFile, err)
		}
		cfgFile = expanded
	}

	v := viper.New()
	config.Bind(v, cfgFile)
	if home, err := homedir.Dir(); err == nil {
		// Searched after the working directory.
		v.AddConfigPath(filepath.Join(home, ".config", "stain"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found; defaults and env vars apply.
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// getConfigFromContext retrieves the config stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration missing from command context")
	}
	return cfg, nil
}
