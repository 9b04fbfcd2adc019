package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/memoryengine/pkg/engine"
	"github.com/cuemby/memoryengine/pkg/storage"
	"github.com/cuemby/memoryengine/pkg/types"
)

var episodeCmd = &cobra.Command{
	Use:   "episode",
	Short: "Start, log, complete, and inspect episodes",
}

var episodeStartCmd = &cobra.Command{
	Use:   "start DESCRIPTION",
	Short: "Start a new episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		taskType, _ := cmd.Flags().GetString("task-type")
		complexity, _ := cmd.Flags().GetString("complexity")
		projectPath, _ := cmd.Flags().GetString("project-path")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		return withEngine(func(e *engine.Engine) error {
			ep, err := e.StartEpisode(context.Background(), engine.StartEpisodeRequest{
				Description: args[0],
				Domain:      domain,
				TaskType:    types.TaskType(taskType),
				Complexity:  types.Complexity(complexity),
				ProjectPath: projectPath,
				Tags:        tags,
			})
			if err != nil {
				return fmt.Errorf("failed to start episode: %w", err)
			}
			fmt.Printf("✓ Episode started: %s\n", ep.ID)
			fmt.Printf("  Domain: %s\n", ep.Context.Domain)
			fmt.Printf("  Task type: %s\n", ep.TaskType)
			return nil
		})
	},
}

var episodeLogStepCmd = &cobra.Command{
	Use:   "log-step EPISODE_ID TOOL ACTION",
	Short: "Append an execution step to an in-progress episode",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		latencyMS, _ := cmd.Flags().GetInt64("latency-ms")
		status, _ := cmd.Flags().GetString("status")
		output, _ := cmd.Flags().GetString("output")

		var result *types.StepResult
		if status != "" {
			result = &types.StepResult{Status: types.StepStatus(status), Output: output}
		}

		return withEngine(func(e *engine.Engine) error {
			step, err := e.LogStep(context.Background(), args[0], args[1], args[2], nil, result, latencyMS)
			if err != nil {
				return fmt.Errorf("failed to log step: %w", err)
			}
			fmt.Printf("✓ Step %d logged for episode %s\n", step.StepNumber, args[0])
			return nil
		})
	},
}

var episodeCompleteCmd = &cobra.Command{
	Use:   "complete EPISODE_ID",
	Short: "Complete an episode with an outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		verdict, _ := cmd.Flags().GetString("verdict")
		reason, _ := cmd.Flags().GetString("reason")

		return withEngine(func(e *engine.Engine) error {
			err := e.CompleteEpisode(context.Background(), args[0], types.Outcome{
				Status:  types.OutcomeStatus(status),
				Verdict: verdict,
				Reason:  reason,
			})
			if err != nil {
				return fmt.Errorf("failed to complete episode: %w", err)
			}
			fmt.Printf("✓ Episode completed: %s (%s)\n", args[0], status)
			return nil
		})
	},
}

var episodeGetCmd = &cobra.Command{
	Use:   "get EPISODE_ID",
	Short: "Fetch an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			ep, err := e.GetEpisode(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get episode: %w", err)
			}
			fmt.Printf("Episode: %s\n", ep.ID)
			fmt.Printf("  Description: %s\n", ep.Description)
			fmt.Printf("  Domain: %s\n", ep.Context.Domain)
			fmt.Printf("  Task type: %s\n", ep.TaskType)
			fmt.Printf("  Steps: %d\n", len(ep.Steps))
			fmt.Printf("  Quality score: %.2f\n", ep.QualityScore)
			if ep.Outcome != nil {
				fmt.Printf("  Outcome: %s\n", ep.Outcome.Status)
			}
			if len(ep.Tags) > 0 {
				fmt.Printf("  Tags: %v\n", ep.Tags)
			}
			return nil
		})
	},
}

var episodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List episodes matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		onlyComplete, _ := cmd.Flags().GetBool("only-complete")
		limit, _ := cmd.Flags().GetInt("limit")

		return withEngine(func(e *engine.Engine) error {
			episodes, err := e.ListEpisodes(context.Background(), storage.EpisodeFilter{
				Domain: domain, OnlyComplete: onlyComplete, Limit: limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list episodes: %w", err)
			}
			if len(episodes) == 0 {
				fmt.Println("No episodes found")
				return nil
			}
			fmt.Printf("%-38s %-20s %-16s %s\n", "ID", "DOMAIN", "TASK TYPE", "QUALITY")
			for _, ep := range episodes {
				fmt.Printf("%-38s %-20s %-16s %.2f\n", ep.ID, ep.Context.Domain, ep.TaskType, ep.QualityScore)
			}
			return nil
		})
	},
}

var episodeDeleteCmd = &cobra.Command{
	Use:   "delete EPISODE_ID",
	Short: "Delete an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			if err := e.DeleteEpisode(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to delete episode: %w", err)
			}
			fmt.Printf("✓ Episode deleted: %s\n", args[0])
			return nil
		})
	},
}

func init() {
	episodeCmd.AddCommand(episodeStartCmd, episodeLogStepCmd, episodeCompleteCmd,
		episodeGetCmd, episodeListCmd, episodeDeleteCmd)

	episodeStartCmd.Flags().String("domain", "", "Domain the episode belongs to")
	episodeStartCmd.Flags().String("task-type", string(types.TaskOther), "Task type")
	episodeStartCmd.Flags().String("complexity", string(types.ComplexityModerate), "Complexity")
	episodeStartCmd.Flags().String("project-path", "", "Project path")
	episodeStartCmd.Flags().StringSlice("tags", nil, "Initial tags")
	episodeStartCmd.MarkFlagRequired("domain")

	episodeLogStepCmd.Flags().Int64("latency-ms", 0, "Step latency in milliseconds")
	episodeLogStepCmd.Flags().String("status", "", "Step result status (success, failure, pending)")
	episodeLogStepCmd.Flags().String("output", "", "Step result output")

	episodeCompleteCmd.Flags().String("status", string(types.OutcomeSuccess), "Outcome status")
	episodeCompleteCmd.Flags().String("verdict", "", "Outcome verdict (success outcomes)")
	episodeCompleteCmd.Flags().String("reason", "", "Outcome reason (failure outcomes)")

	episodeListCmd.Flags().String("domain", "", "Filter by domain")
	episodeListCmd.Flags().Bool("only-complete", false, "Only list completed episodes")
	episodeListCmd.Flags().Int("limit", 50, "Maximum episodes to return")
}
