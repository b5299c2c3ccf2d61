package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/builder"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/monitor"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/registry"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent as an HTTP/WebSocket server",
	Long:  "Serve the build and monitor API over HTTP and stream build and device events to WebSocket clients.",
	Args:  cobra.NoArgs,
	RunE:  serveExecution,
}

func serveExecution(cmd *cobra.Command, args []string) error {
	listenAddr, err := cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] unoagent starting")

	cfg := loadConfigFromFlags(cmd)
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	runner := newToolchain(cfg)
	srv := server.New(cfg, builder.New(runner), registry.New(runner), monitor.NewSession())

	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[main] server exited: %v", err)
		return err
	}
	return nil
}

func init() {
	serveCmd.Flags().String("listen", "", "override listen address (e.g. :8080)")
}
