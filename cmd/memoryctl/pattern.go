package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/memoryengine/pkg/engine"
	"github.com/cuemby/memoryengine/pkg/types"
)

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Search, recommend, and decay learned patterns",
}

var patternSearchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Search patterns by signature text",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var query string
		if len(args) == 1 {
			query = args[0]
		}
		return withEngine(func(e *engine.Engine) error {
			patterns, err := e.SearchPatterns(context.Background(), query)
			if err != nil {
				return fmt.Errorf("failed to search patterns: %w", err)
			}
			printPatterns(patterns)
			return nil
		})
	},
}

var patternRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend patterns for a domain/task_type context",
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		taskType, _ := cmd.Flags().GetString("task-type")
		topN, _ := cmd.Flags().GetInt("top")

		return withEngine(func(e *engine.Engine) error {
			patterns, err := e.RecommendPatterns(context.Background(), domain, types.TaskType(taskType), topN)
			if err != nil {
				return fmt.Errorf("failed to recommend patterns: %w", err)
			}
			printPatterns(patterns)
			return nil
		})
	},
}

var patternAnalyzeCmd = &cobra.Command{
	Use:   "analyze PATTERN_ID",
	Short: "Show a pattern's effectiveness summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			report, err := e.PatternEffectiveness(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to analyze pattern: %w", err)
			}
			fmt.Printf("Pattern: %s\n", report.PatternID)
			fmt.Printf("  Success rate: %.2f\n", report.SuccessRate)
			fmt.Printf("  Sample size: %d\n", report.SampleSize)
			fmt.Printf("  Avg reward: %.2f\n", report.AvgReward)
			fmt.Printf("  Decay factor: %.2f\n", report.DecayFactor)
			return nil
		})
	},
}

var patternDecayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Apply time-based forgetting to stale patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			n, err := e.DecayPatterns(context.Background())
			if err != nil {
				return fmt.Errorf("failed to decay patterns: %w", err)
			}
			fmt.Printf("✓ Decayed %d pattern(s)\n", n)
			return nil
		})
	},
}

func printPatterns(patterns []*types.Pattern) {
	if len(patterns) == 0 {
		fmt.Println("No patterns found")
		return
	}
	fmt.Printf("%-38s %-10s %s\n", "ID", "SUCCESS", "SAMPLES")
	for _, p := range patterns {
		fmt.Printf("%-38s %-10.2f %d\n", p.ID, p.Effectiveness.SuccessRate(), p.Effectiveness.SampleSize())
	}
}

func init() {
	patternCmd.AddCommand(patternSearchCmd, patternRecommendCmd, patternAnalyzeCmd, patternDecayCmd)

	patternRecommendCmd.Flags().String("domain", "", "Domain to recommend for")
	patternRecommendCmd.Flags().String("task-type", string(types.TaskOther), "Task type to recommend for")
	patternRecommendCmd.Flags().Int("top", 10, "Maximum patterns to return")
	patternRecommendCmd.MarkFlagRequired("domain")
}
