package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ksred/tienda-moves/internal/api"
	"github.com/ksred/tienda-moves/internal/database"
	"github.com/ksred/tienda-moves/internal/mcp"
	"github.com/ksred/tienda-moves/internal/utils"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only revision status over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				if port == 0 {
					port = a.cfg.HTTP.Port
				}

				logger := utils.ForComponent(a.logger, "api")
				server, err := api.NewServer(a.cfg, a.db, m, logger)
				if err != nil {
					return err
				}

				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
				defer signal.Stop(sigChan)

				serverErrChan := make(chan error, 1)
				go func() {
					serverErrChan <- server.Start(port)
				}()

				select {
				case sig := <-sigChan:
					logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
				case err := <-serverErrChan:
					return fmt.Errorf("http server: %w", err)
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("failed to gracefully shutdown HTTP server: %w", err)
				}

				logger.Info().Msg("Shutdown complete")
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default http.port)")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the revision tools to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				server, err := mcp.NewServer(m, utils.ForComponent(a.logger, "mcp"), version)
				if err != nil {
					return err
				}
				return server.Serve(ctx)
			})
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for the status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			if subject == "" {
				return utils.RequiredFieldError("subject")
			}

			token, expiresAt, err := api.IssueToken(a.cfg.JWT.Secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			a.logger.Info().Str("subject", subject).Time("expires_at", expiresAt).Msg("Token issued")
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
