package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/server"
)

var (
	srvAddr    string
	srvTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyzer over HTTP",
	Long: `Starts an HTTP server with:
  GET  /healthz
  POST /v1/analyze      request body is the dataset; ?format=json|yaml|markdown&name=&sort=&desc=true&impute=auto
  POST /v1/email/spam   JSON message or array of messages {from,to,subject,body}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := srvAddr
		if addr == "" {
			addr = cfg.ServeAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Options{
			Ingest:         ingestOptions(""),
			Email:          cfg.Email,
			Impute:         cfg.Impute,
			Session:        openSession(cmd),
			RequestTimeout: srvTimeout,
		}, logger)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(addr) }()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Listening on http://%s (Ctrl+C to stop)\n", addr)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down", zap.String("addr", addr))
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config serve_addr)")
	serveCmd.Flags().DurationVar(&srvTimeout, "request-timeout", 60*time.Second, "per-request timeout")
}
