package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/memoryengine/pkg/engine"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Add, remove, and search episode tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add EPISODE_ID TAG...",
	Short: "Add tags to an episode",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			tags, err := e.AddTags(context.Background(), args[0], args[1:]...)
			if err != nil {
				return fmt.Errorf("failed to add tags: %w", err)
			}
			fmt.Printf("Tags: %s\n", strings.Join(tags, ", "))
			return nil
		})
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove EPISODE_ID TAG...",
	Short: "Remove tags from an episode",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			tags, err := e.RemoveTags(context.Background(), args[0], args[1:]...)
			if err != nil {
				return fmt.Errorf("failed to remove tags: %w", err)
			}
			fmt.Printf("Tags: %s\n", strings.Join(tags, ", "))
			return nil
		})
	},
}

var tagSetCmd = &cobra.Command{
	Use:   "set EPISODE_ID TAG...",
	Short: "Replace an episode's tag set",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			tags, err := e.SetTags(context.Background(), args[0], args[1:]...)
			if err != nil {
				return fmt.Errorf("failed to set tags: %w", err)
			}
			fmt.Printf("Tags: %s\n", strings.Join(tags, ", "))
			return nil
		})
	},
}

var tagGetCmd = &cobra.Command{
	Use:   "get EPISODE_ID",
	Short: "List an episode's tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			tags, err := e.GetTags(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get tags: %w", err)
			}
			fmt.Printf("Tags: %s\n", strings.Join(tags, ", "))
			return nil
		})
	},
}

var tagSearchCmd = &cobra.Command{
	Use:   "search TAG...",
	Short: "Search episodes carrying all of the given tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			episodes, err := e.SearchByTags(context.Background(), args)
			if err != nil {
				return fmt.Errorf("failed to search by tags: %w", err)
			}
			if len(episodes) == 0 {
				fmt.Println("No episodes found")
				return nil
			}
			for _, ep := range episodes {
				fmt.Printf("%s  %s\n", ep.ID, ep.Description)
			}
			return nil
		})
	},
}

func init() {
	tagCmd.AddCommand(tagAddCmd, tagRemoveCmd, tagSetCmd, tagGetCmd, tagSearchCmd)
}
