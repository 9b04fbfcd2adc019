package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cuemby/memoryengine/pkg/engine"
	"github.com/cuemby/memoryengine/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine as a long-lived process, exposing /metrics and health endpoints",
	Long: `serve keeps one Engine open for the life of the process and mounts
Prometheus metrics plus health/readiness/liveness endpoints on an HTTP
listener, the shape a long-running MCP server or sidecar would run under
instead of memoryctl's usual one-shot commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return withEngine(func(e *engine.Engine) error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				e.RefreshHealth()
				metrics.HealthHandler()(w, r)
			})
			mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
				e.RefreshHealth()
				metrics.ReadyHandler()(w, r)
			})
			mux.Handle("/live", metrics.LivenessHandler())

			fmt.Printf("✓ Metrics:    http://%s/metrics\n", addr)
			fmt.Printf("✓ Health:     http://%s/health\n", addr)
			fmt.Printf("✓ Readiness:  http://%s/ready\n", addr)
			fmt.Printf("✓ Liveness:   http://%s/live\n", addr)

			return http.ListenAndServe(addr, mux)
		})
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:9090", "Address to serve /metrics and health endpoints on")
	rootCmd.AddCommand(serveCmd)
}
