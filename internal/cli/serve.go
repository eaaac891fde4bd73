package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AugustoL/openscan/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API over the indexed data",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (defaults to config server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfgPath, networkName, isDebug)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()

	port := servePort
	if port == 0 {
		port = a.cfg.Server.Port
	}
	server := api.NewServer(a.store, a.controller, a.network, port, a.log)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			a.log.Error("shutdown error", "error", err)
			os.Exit(1)
		}
		a.log.Info("query API stopped")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}
}
