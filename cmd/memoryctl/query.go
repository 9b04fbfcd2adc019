package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/memoryengine/pkg/engine"
)

var queryCmd = &cobra.Command{
	Use:   "query TEXT",
	Short: "Run a semantic memory query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		taskType, _ := cmd.Flags().GetString("task-type")
		topK, _ := cmd.Flags().GetInt("top-k")
		lambda, _ := cmd.Flags().GetFloat64("diversity-lambda")

		return withEngine(func(e *engine.Engine) error {
			candidates, err := e.QuerySemanticMemory(context.Background(), engine.SemanticQuery{
				Text: args[0], Domain: domain, TaskType: taskType,
				TopK: topK, DiversityLambda: lambda,
			})
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}
			if len(candidates) == 0 {
				fmt.Println("No results")
				return nil
			}
			for _, c := range candidates {
				fmt.Printf("%-38s relevance=%.3f  %s\n", c.Episode.ID, c.Relevance, c.Episode.Description)
			}
			return nil
		})
	},
}

func init() {
	queryCmd.Flags().String("domain", "", "Restrict to a domain")
	queryCmd.Flags().String("task-type", "", "Restrict to a task type")
	queryCmd.Flags().Int("top-k", 10, "Maximum results to return")
	queryCmd.Flags().Float64("diversity-lambda", 0.5, "MMR diversity weight")
}
