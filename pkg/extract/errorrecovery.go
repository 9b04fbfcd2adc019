package extract

import (
	"context"
	"time"

	"github.com/cuemby/memoryengine/pkg/types"
)

// runErrorRecovery finds adjacent (failure, success) step pairs and emits
// an ErrorRecovery pattern capturing which tool failed, which tool
// recovered, and the error kind.
func (p *Pipeline) runErrorRecovery(ctx context.Context, ep *types.Episode) error {
	for i := 0; i+1 < len(ep.Steps); i++ {
		failing := ep.Steps[i]
		recovering := ep.Steps[i+1]
		if !failing.IsFailure() || !recovering.IsSuccess() {
			continue
		}
		pat := newErrorRecoveryPattern(failing, recovering, ep.ID, p.deps.now())
		if err := p.upsertPattern(ctx, pat); err != nil {
			return err
		}
	}
	return nil
}

func newErrorRecoveryPattern(failing, recovering types.ExecutionStep, episodeID string, now time.Time) *types.Pattern {
	errorKind := ""
	if failing.Result != nil {
		errorKind = failing.Result.Error
	}
	body := types.PatternBody{
		FailingTool:    failing.Tool,
		RecoveringTool: recovering.Tool,
		ErrorKind:      errorKind,
	}
	return &types.Pattern{
		ID:          types.NewID(),
		PatternType: types.PatternErrorRecovery,
		Signature:   body.Signature(types.PatternErrorRecovery),
		Body:        body,
		Evidence:    types.Evidence{EpisodeIDs: []string{episodeID}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
