package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTag(t *testing.T) {
	assert.Equal(t, "go", NormalizeTag("  Go  "))
	assert.Equal(t, "", NormalizeTag("   "))
}

func TestNormalizeTagsDedupesPreservingOrder(t *testing.T) {
	got := NormalizeTags([]string{"Go", "go", " Rust", "", "RUST"})
	assert.Equal(t, []string{"go", "rust"}, got)
}

func TestEpisodeAddTagsIsIdempotent(t *testing.T) {
	e := &Episode{}
	e.AddTags("Go", "rust")
	e.AddTags("go")
	assert.Equal(t, []string{"go", "rust"}, e.Tags)
}

func TestEpisodeRemoveTags(t *testing.T) {
	e := &Episode{Tags: []string{"go", "rust", "python"}}
	e.RemoveTags("Rust")
	assert.Equal(t, []string{"go", "python"}, e.Tags)
}

func TestEpisodeSetTags(t *testing.T) {
	e := &Episode{Tags: []string{"go"}}
	e.SetTags("Rust", "rust")
	assert.Equal(t, []string{"rust"}, e.Tags)
}

func TestEpisodeHasTag(t *testing.T) {
	e := &Episode{Tags: []string{"go"}}
	assert.True(t, e.HasTag("Go"))
	assert.False(t, e.HasTag("rust"))
}

func TestEpisodeIsComplete(t *testing.T) {
	e := &Episode{}
	assert.False(t, e.IsComplete())

	now := time.Now()
	e.EndTime = &now
	assert.False(t, e.IsComplete())

	e.Outcome = &Outcome{Status: OutcomeSuccess}
	assert.True(t, e.IsComplete())
}

func TestEpisodeNextStepNumber(t *testing.T) {
	e := &Episode{}
	assert.Equal(t, 1, e.NextStepNumber())

	e.Steps = append(e.Steps, ExecutionStep{StepNumber: 1})
	assert.Equal(t, 2, e.NextStepNumber())

	e.Steps = append(e.Steps, ExecutionStep{StepNumber: 2})
	assert.Equal(t, 3, e.NextStepNumber())
}

func TestEpisodeCloneIsIndependent(t *testing.T) {
	end := time.Now()
	e := &Episode{
		ID:   "ep-1",
		Tags: []string{"go"},
		Steps: []ExecutionStep{
			{StepNumber: 1, Tool: "bash"},
		},
		EndTime: &end,
		Outcome: &Outcome{Status: OutcomeSuccess, Artifacts: []string{"a.go"}},
		Reflection: &Reflection{
			Successes: []string{"worked"},
		},
		Embedding: []float32{0.1, 0.2},
	}

	cp := e.Clone()
	cp.Tags[0] = "rust"
	cp.Steps[0].Tool = "edit"
	cp.Outcome.Artifacts[0] = "b.go"
	cp.Reflection.Successes[0] = "changed"
	cp.Embedding[0] = 9.9
	*cp.EndTime = end.Add(time.Hour)

	assert.Equal(t, "go", e.Tags[0])
	assert.Equal(t, "bash", e.Steps[0].Tool)
	assert.Equal(t, "a.go", e.Outcome.Artifacts[0])
	assert.Equal(t, "worked", e.Reflection.Successes[0])
	assert.Equal(t, float32(0.1), e.Embedding[0])
	assert.Equal(t, end, *e.EndTime)
}

func TestExecutionStepIsSuccessAndFailure(t *testing.T) {
	s := ExecutionStep{Result: &StepResult{Status: StepSuccess}}
	assert.True(t, s.IsSuccess())
	assert.False(t, s.IsFailure())

	s.Result.Status = StepFailure
	assert.False(t, s.IsSuccess())
	assert.True(t, s.IsFailure())

	pending := ExecutionStep{}
	assert.False(t, pending.IsSuccess())
	assert.False(t, pending.IsFailure())
}

func TestOutcomeWeight(t *testing.T) {
	assert.Equal(t, 1.0, Outcome{Status: OutcomeSuccess}.Weight())
	assert.Equal(t, 0.5, Outcome{Status: OutcomePartial}.Weight())
	assert.Equal(t, 0.1, Outcome{Status: OutcomeFailure}.Weight())
}
