package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chatlogs/internal/adapters/driven/metrics"
	"github.com/custodia-labs/chatlogs/internal/adapters/driving/mcp"
	"github.com/custodia-labs/chatlogs/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so agent clients can submit
and read chat logs.

By default, the server communicates over stdio using JSON-RPC.

Use --port to start an HTTP server instead. Prometheus metrics are then
served at /metrics on the same port. In stdio mode use --metrics-port to
serve metrics on a separate port.

Tools:
  submit_log  Store a chat log (messages or typed text)
  get_log     Look up a log by fingerprint, optionally with one page
  list_logs   List the logs of an owner

Resources:
  chatlogs://logs/{fingerprint}  A complete log as JSON

Examples:
  chatlogs mcp serve
  chatlogs mcp serve --port 8080
  chatlogs mcp serve --metrics-port 9090`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Int("metrics-port", 0, "serve metrics on this port in stdio mode (0 = off)")
	mcpServeCmd.Flags().String("owner", mcp.DefaultOwner, "owner recorded on submitted logs")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	metricsPort, err := cmd.Flags().GetInt("metrics-port")
	if err != nil {
		return fmt.Errorf("getting metrics-port flag: %w", err)
	}
	owner, err := cmd.Flags().GetString("owner")
	if err != nil {
		return fmt.Errorf("getting owner flag: %w", err)
	}

	var opts []mcp.Option
	if metricsHandler != nil && port > 0 {
		opts = append(opts, mcp.WithMetricsHandler(metricsHandler))
	}

	server, err := mcp.NewServer(&mcp.Ports{Logs: logService, Owner: owner}, opts...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stopScheduler := startScheduler(ctx)
	defer stopScheduler()

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	if metricsHandler != nil && metricsPort > 0 {
		metricsServer := metrics.NewServer(metricsPort, metricsHandler)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server: %v", err)
			}
		}()
		defer metricsServer.Close()
	}

	// Stdout carries the protocol; nothing else may be printed there.
	return server.Run(ctx)
}
