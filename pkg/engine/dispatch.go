package engine

import (
	"context"

	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/types"
)

// dispatchBatchOp maps one batch operation's tool name onto the matching
// façade method, the same tool surface a transport layer's MCP dispatcher
// would expose directly. Arguments are a loosely typed map since batch
// requests arrive off the wire; each case extracts what it needs, and a
// missing or mistyped field reads as its zero value and is left to the
// façade method's own checks. An unknown tool name returns InvalidInput.
func (e *Engine) dispatchBatchOp(ctx context.Context, op BatchOperation) (any, error) {
	args := op.Arguments
	switch op.Tool {
	case "start_episode":
		req := StartEpisodeRequest{
			Description: argString(args, "description"),
			Domain:      argString(args, "domain"),
			TaskType:    types.TaskType(argString(args, "task_type")),
			Complexity:  types.Complexity(argString(args, "complexity")),
			ProjectPath: argString(args, "project_path"),
			Tags:        argStringSlice(args, "tags"),
		}
		return e.StartEpisode(ctx, req)

	case "log_step":
		var result *types.StepResult
		if r, ok := args["result"].(*types.StepResult); ok {
			result = r
		}
		return e.LogStep(ctx, argString(args, "episode_id"), argString(args, "tool"),
			argString(args, "action"), nil, result, argInt64(args, "latency_ms"))

	case "complete_episode":
		outcome, _ := args["outcome"].(types.Outcome)
		episodeID := argString(args, "episode_id")
		return nil, e.CompleteEpisode(ctx, episodeID, outcome)

	case "delete_episode":
		episodeID := argString(args, "episode_id")
		return nil, e.DeleteEpisode(ctx, episodeID)

	case "get_episode":
		return e.GetEpisode(ctx, argString(args, "episode_id"))

	case "add_tags":
		return e.AddTags(ctx, argString(args, "episode_id"), argStringSlice(args, "tags")...)

	case "remove_tags":
		return e.RemoveTags(ctx, argString(args, "episode_id"), argStringSlice(args, "tags")...)

	case "set_tags":
		return e.SetTags(ctx, argString(args, "episode_id"), argStringSlice(args, "tags")...)

	case "get_tags":
		return e.GetTags(ctx, argString(args, "episode_id"))

	case "search_by_tags":
		return e.SearchByTags(ctx, argStringSlice(args, "tags"))

	case "add_relationship":
		return nil, e.AddRelationship(ctx, argString(args, "source_id"), argString(args, "target_id"),
			types.RelationshipType(argString(args, "type")), argFloat64(args, "strength"), argString(args, "note"))

	case "remove_relationship":
		return nil, e.RemoveRelationship(ctx, argString(args, "source_id"), argString(args, "target_id"),
			types.RelationshipType(argString(args, "type")))

	case "topological_order":
		return e.TopologicalOrder()

	case "search_patterns":
		return e.SearchPatterns(ctx, argString(args, "query"))

	case "decay_patterns":
		return e.DecayPatterns(ctx)

	default:
		return nil, memerr.InvalidInput("tool", "unknown batch tool: "+op.Tool)
	}
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt64(args map[string]any, key string) int64 {
	switch v := args[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func argFloat64(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]string)
	if ok {
		return raw
	}
	anySlice, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(anySlice))
	for _, v := range anySlice {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
