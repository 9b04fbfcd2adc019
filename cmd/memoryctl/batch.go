package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/memoryengine/pkg/engine"
)

// batchFile is the on-disk shape batch execute reads: a JSON array of
// operations, each naming a tool and its depends_on predecessors, the same
// shape a transport layer would decode off the wire before calling
// Engine.BatchExecute.
type batchOp struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	DependsOn []string       `json:"depends_on"`
}

var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Execute a batch of operations described in a JSON file",
	Long: `Execute reads a JSON array of operations from FILE, each with an id,
a tool name, arguments, and the ids of operations it depends on, validates
the dependency graph, and runs every operation in dependency order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parallel, _ := cmd.Flags().GetBool("parallel")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read batch file: %w", err)
		}
		var raw []batchOp
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse batch file: %w", err)
		}

		ops := make([]engine.BatchOperation, len(raw))
		for i, o := range raw {
			ops[i] = engine.BatchOperation{ID: o.ID, Tool: o.Tool, Arguments: o.Arguments, DependsOn: o.DependsOn}
		}

		mode := engine.BatchSequential
		if parallel {
			mode = engine.BatchParallel
		}

		return withEngine(func(e *engine.Engine) error {
			results, err := e.BatchExecute(context.Background(), ops, mode)
			if err != nil {
				return fmt.Errorf("batch validation failed: %w", err)
			}
			for _, r := range results {
				if r.Err != nil {
					fmt.Printf("%-20s FAILED: %v\n", r.ID, r.Err)
					continue
				}
				fmt.Printf("%-20s ok\n", r.ID)
			}
			return nil
		})
	},
}

func init() {
	batchCmd.Flags().Bool("parallel", false, "Run independent operations concurrently")
}
