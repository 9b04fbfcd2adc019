package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/memoryengine/pkg/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report engine health, readiness, and extraction throughput",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			health := e.Health()
			fmt.Printf("Health:    %s\n", health.Status)
			for name, status := range health.Components {
				fmt.Printf("  %-16s %s\n", name, status)
			}

			readiness := e.Readiness()
			fmt.Printf("Readiness: %s\n", readiness.Status)
			if readiness.Message != "" {
				fmt.Printf("  %s\n", readiness.Message)
			}

			summary := e.MonitoringSummary()
			fmt.Printf("Extraction: %d processed, %.0f%% success rate, %s avg duration\n",
				summary.Count, summary.SuccessRate*100, summary.AvgDuration)

			sync := e.SyncStats()
			fmt.Printf("Sync:      %d synced, %d conflicts resolved, %d errors\n",
				sync.Synced, sync.ConflictsResolved, sync.Errors)

			cache := e.CacheStats()
			evictions := cache.EvictedBySize + cache.EvictedByTTL + cache.EvictedByCount + cache.EvictedByInvalidation
			fmt.Printf("Cache:     %d hits, %d misses, %d evictions\n",
				cache.Hits, cache.Misses, evictions)

			fmt.Printf("Breaker:   %s\n", e.BreakerState())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
