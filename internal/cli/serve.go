package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(e *env) *cobra.Command {
	var (
		purgeOnExit     bool
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, settings, err := e.openApp(ctx)
			if err != nil {
				return err
			}
			if e.v.ConfigFileUsed() != "" {
				settings.Watch()
			}

			server := a.API()
			addr := fmt.Sprintf("%s:%d", e.cfg.Server.Host, e.cfg.Server.Port)
			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("Admin API listening")
				errCh <- server.Listen(addr)
			}()

			select {
			case <-ctx.Done():
			case err = <-errCh:
				log.Error().Err(err).Msg("Admin API stopped")
			}

			log.Info().Msg("Shutting down server...")
			if serr := server.ShutdownWithTimeout(shutdownTimeout); serr != nil {
				log.Error().Err(serr).Msg("Failed to shutdown server")
			}

			if purgeOnExit {
				pctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				if perr := a.Deactivate(pctx); perr != nil {
					log.Error().Err(perr).Msg("Failed to purge log store")
				}
				cancel()
			}
			if cerr := a.Close(); cerr != nil {
				log.Error().Err(cerr).Msg("Failed to close resources")
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&purgeOnExit, "purge-on-exit", false, "purge the log store before exiting")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "time allowed for draining on shutdown")
	return cmd
}

func newPurgeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every captured record",
		Long:  "Runs the deactivation teardown: pending records are flushed and the log store is emptied.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Deactivate(cmd.Context()); err != nil {
				return err
			}
			if e.jsonOutput {
				return e.printJSON(cmd.OutOrStdout(), map[string]string{"status": "purged"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "log store purged")
			return nil
		},
	}
}
