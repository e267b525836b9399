package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Chative-core-poc-v1/researcher/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve research runs over HTTP",
	Long: `Start the HTTP API:

  POST   /v1/research     run research on a conversation
  GET    /v1/threads/{id} read a stored thread (requires Redis)
  DELETE /v1/threads/{id} delete a stored thread (requires Redis)
  GET    /health
  GET    /metrics         Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := a.config.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		return api.NewServer(a.runner, a.threads).ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR or :8123)")
	rootCmd.AddCommand(serveCmd)
}
