// Package cli holds the gozcu command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tuncerburak97/gozcu/internal/app"
	"github.com/tuncerburak97/gozcu/internal/config"
	"github.com/tuncerburak97/gozcu/internal/logger"
	"github.com/tuncerburak97/gozcu/internal/repository"
)

var (
	// Version is injected during build
	Version = "dev"
)

// env is shared by every subcommand once the root has loaded the config.
type env struct {
	configPath string
	jsonOutput bool

	v   *viper.Viper
	cfg *config.Config
}

func (e *env) load() error {
	e.v = config.New()
	if e.configPath != "" {
		e.v.SetConfigFile(e.configPath)
		if err := e.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", e.configPath, err)
		}
	}
	cfg, err := config.Decode(e.v)
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	e.cfg = cfg
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// openRepository opens and migrates the configured log store.
func (e *env) openRepository(ctx context.Context) (repository.RecordRepository, error) {
	return repository.Open(ctx, &e.cfg.DB)
}

func (e *env) openApp(ctx context.Context) (*app.App, *config.ViperSettings, error) {
	settings := config.NewViperSettings(e.v)
	a, err := app.New(ctx, e.cfg, app.WithSettings(settings))
	if err != nil {
		return nil, nil, err
	}
	return a, settings, nil
}

func (e *env) printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "gozcu",
		Short: "gozcu records outbound API calls for debugging",
		Long: `gozcu captures outbound HTTP calls whose URL matches a configured pattern list
and keeps the request arguments, the response and the calling stack of each one.

Configuration is read from the file given by --config and from GOZCU_* environment
variables.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
	}

	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", os.Getenv("GOZCU_CONFIG"), "path to config file")
	root.PersistentFlags().BoolVar(&e.jsonOutput, "json", false, "output results in JSON format")

	root.AddCommand(
		newServeCmd(e),
		newPurgeCmd(e),
		newLogsCmd(e),
		newSettingsCmd(e),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
