package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/memoryengine/pkg/engine"
	"github.com/cuemby/memoryengine/pkg/storage"
	"github.com/cuemby/memoryengine/pkg/types"
)

var relationshipCmd = &cobra.Command{
	Use:   "relationship",
	Short: "Manage and query relationships between episodes",
}

var relationshipAddCmd = &cobra.Command{
	Use:   "add SOURCE_ID TARGET_ID",
	Short: "Add a directed relationship between two episodes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		strength, _ := cmd.Flags().GetFloat64("strength")
		note, _ := cmd.Flags().GetString("note")

		return withEngine(func(e *engine.Engine) error {
			err := e.AddRelationship(context.Background(), args[0], args[1], types.RelationshipType(typ), strength, note)
			if err != nil {
				return fmt.Errorf("failed to add relationship: %w", err)
			}
			fmt.Printf("✓ Relationship added: %s -[%s]-> %s\n", args[0], typ, args[1])
			return nil
		})
	},
}

var relationshipRemoveCmd = &cobra.Command{
	Use:   "remove SOURCE_ID TARGET_ID",
	Short: "Remove a directed relationship between two episodes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")

		return withEngine(func(e *engine.Engine) error {
			err := e.RemoveRelationship(context.Background(), args[0], args[1], types.RelationshipType(typ))
			if err != nil {
				return fmt.Errorf("failed to remove relationship: %w", err)
			}
			fmt.Printf("✓ Relationship removed: %s -[%s]-> %s\n", args[0], typ, args[1])
			return nil
		})
	},
}

var relationshipListCmd = &cobra.Command{
	Use:   "list EPISODE_ID",
	Short: "List relationships touching an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("direction")

		return withEngine(func(e *engine.Engine) error {
			rels := e.GetRelationships(args[0], storage.RelationshipDirection(dir), nil)
			if len(rels) == 0 {
				fmt.Println("No relationships found")
				return nil
			}
			for _, r := range rels {
				fmt.Printf("%s -[%s]-> %s\n", r.SourceID, r.Type, r.TargetID)
			}
			return nil
		})
	},
}

var relationshipTopoCmd = &cobra.Command{
	Use:   "topological-order",
	Short: "Print the DependsOn subgraph in dependency order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			order, err := e.TopologicalOrder()
			if err != nil {
				return fmt.Errorf("failed to compute topological order: %w", err)
			}
			for _, id := range order {
				fmt.Println(id)
			}
			return nil
		})
	},
}

var relationshipDependencyGraphCmd = &cobra.Command{
	Use:   "dependency-graph EPISODE_ID",
	Short: "Print the DependsOn dependency tree rooted at an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxDepth, _ := cmd.Flags().GetInt("max-depth")

		return withEngine(func(e *engine.Engine) error {
			nodes := e.DependencyGraph(args[0], maxDepth)
			for _, n := range nodes {
				fmt.Printf("%s depends on %v\n", n.ID, n.DependsOn)
			}
			return nil
		})
	},
}

func init() {
	relationshipCmd.AddCommand(relationshipAddCmd, relationshipRemoveCmd, relationshipListCmd,
		relationshipTopoCmd, relationshipDependencyGraphCmd)

	relationshipAddCmd.Flags().String("type", string(types.RelDependsOn), "Relationship type")
	relationshipAddCmd.Flags().Float64("strength", 1.0, "Relationship strength")
	relationshipAddCmd.Flags().String("note", "", "Freeform note")

	relationshipRemoveCmd.Flags().String("type", string(types.RelDependsOn), "Relationship type")

	relationshipListCmd.Flags().String("direction", string(storage.DirectionBoth), "Direction: outgoing, incoming, both")

	relationshipDependencyGraphCmd.Flags().Int("max-depth", 10, "Maximum traversal depth")
}
