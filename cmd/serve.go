package main

import (
	"github.com/spf13/cobra"

	"github.com/xhad/ragbot/pkg/rag"
	"github.com/xhad/ragbot/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP and WebSocket API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if serveAddr != "" {
		appConfig.Server.Addr = serveAddr
	}

	system, err := rag.New(appConfig, rag.WithLogger(logger))
	if err != nil {
		return err
	}
	defer system.Close()

	// The server still starts so /status and /troubleshooting can explain
	// what is wrong.
	if ok, msg := system.Initialize(ctx); !ok {
		logger.Error("system not initialized", "error", msg)
	}

	return server.New(appConfig, system, server.WithLogger(logger)).ListenAndServe(ctx)
}
