package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskType categorizes the kind of work an episode performed.
type TaskType string

const (
	TaskCodeGeneration TaskType = "code_generation"
	TaskAnalysis       TaskType = "analysis"
	TaskTesting        TaskType = "testing"
	TaskRefactoring    TaskType = "refactoring"
	TaskDebugging      TaskType = "debugging"
	TaskDocumentation  TaskType = "documentation"
	TaskOther          TaskType = "other"
)

// Complexity is a coarse estimate of how involved a task was.
type Complexity string

const (
	ComplexityTrivial    Complexity = "trivial"
	ComplexitySimple     Complexity = "simple"
	ComplexityModerate   Complexity = "moderate"
	ComplexityComplex    Complexity = "complex"
	ComplexityVeryComplex Complexity = "very_complex"
)

// EpisodeContext captures the situational metadata for an episode.
type EpisodeContext struct {
	Domain      string   `json:"domain"`
	Complexity  Complexity `json:"complexity"`
	ProjectPath string   `json:"project_path,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// OutcomeStatus enumerates the terminal states an episode can complete in.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the terminal result of an episode. Exactly one of the
// status-specific field groups is meaningful, selected by Status — this is
// the Go rendering of what would be a tagged enum (Success/Partial/Failure)
// in a language with sum types.
type Outcome struct {
	Status OutcomeStatus `json:"status"`

	// Success fields.
	Verdict   string   `json:"verdict,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`

	// Partial fields.
	Completed []string `json:"completed,omitempty"`
	Remaining []string `json:"remaining,omitempty"`

	// Failure fields.
	Reason    string   `json:"reason,omitempty"`
	Attempted []string `json:"attempted,omitempty"`
}

// Weight returns the outcome_weight feature used by the quality assessor:
// Success 1.0, Partial 0.5, Failure 0.1.
func (o Outcome) Weight() float64 {
	switch o.Status {
	case OutcomeSuccess:
		return 1.0
	case OutcomePartial:
		return 0.5
	case OutcomeFailure:
		return 0.1
	default:
		return 0
	}
}

// Reflection is free-form, mutable post-hoc commentary attached to an
// episode. Unlike the rest of a completed episode it may be edited after
// completion.
type Reflection struct {
	Successes    []string `json:"successes,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	Insights     []string `json:"insights,omitempty"`
}

// StepStatus enumerates the outcome of a single execution step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailure StepStatus = "failure"
	StepPending StepStatus = "pending"
)

// StepResult is the result of one ExecutionStep.
type StepResult struct {
	Status StepStatus `json:"status"`
	Output string     `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// ExecutionStep is a single tool invocation inside an episode.
type ExecutionStep struct {
	StepNumber int                    `json:"step_number"`
	Tool       string                 `json:"tool"`
	Action     string                 `json:"action"`
	Parameters map[string]any         `json:"parameters,omitempty"`
	Result     *StepResult            `json:"result,omitempty"`
	LatencyMS  int64                  `json:"latency_ms"`
	Timestamp  time.Time              `json:"timestamp"`
}

// IsSuccess is true iff the step has a result and that result is Success.
func (s ExecutionStep) IsSuccess() bool {
	return s.Result != nil && s.Result.Status == StepSuccess
}

// IsFailure is true iff the step has a result and that result is Failure.
func (s ExecutionStep) IsFailure() bool {
	return s.Result != nil && s.Result.Status == StepFailure
}

// Episode is one recorded task execution. Episodes are mutable only while
// incomplete (steps may be appended, Reflection may be freely replaced);
// Complete makes the record immutable for everything but Reflection.
type Episode struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	TaskType    TaskType        `json:"task_type"`
	Context     EpisodeContext  `json:"context"`

	StartTime time.Time        `json:"start_time"`
	EndTime   *time.Time       `json:"end_time,omitempty"`

	Steps      []ExecutionStep `json:"steps,omitempty"`
	Outcome    *Outcome        `json:"outcome,omitempty"`
	Reflection *Reflection     `json:"reflection,omitempty"`

	Tags         []string  `json:"tags,omitempty"`
	QualityScore float64   `json:"quality_score"`
	Embedding    []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	AccessedAt time.Time `json:"accessed_at"`
	AccessCount int64    `json:"access_count"`
}

// NewEpisodeID returns a new random episode identifier.
func NewEpisodeID() string {
	return uuid.NewString()
}

// NewID returns a new random identifier, used for patterns, heuristics,
// and relationships alongside episodes.
func NewID() string {
	return uuid.NewString()
}

// IsComplete reports whether the episode satisfies the completion
// invariant: EndTime and Outcome are both set.
func (e *Episode) IsComplete() bool {
	return e.EndTime != nil && e.Outcome != nil
}

// NextStepNumber returns the step number the next appended step must use to
// preserve the strictly-increasing-from-1 invariant.
func (e *Episode) NextStepNumber() int {
	if len(e.Steps) == 0 {
		return 1
	}
	return e.Steps[len(e.Steps)-1].StepNumber + 1
}

// NormalizeTag trims whitespace and lower-cases a tag, per the tag
// normalization invariant: add_tag(s) yields trim(lowercase(s)).
func NormalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeTags normalizes and de-duplicates a slice of raw tag strings,
// dropping empties, preserving first-seen order.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		n := NormalizeTag(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// AddTags merges raw tag strings into the episode's tag set, normalizing
// and de-duplicating. Idempotent: adding the same tag twice leaves the set
// unchanged in size.
func (e *Episode) AddTags(raw ...string) {
	merged := append(append([]string{}, e.Tags...), raw...)
	e.Tags = NormalizeTags(merged)
}

// RemoveTags removes the (normalized) named tags from the episode's tag
// set, if present.
func (e *Episode) RemoveTags(raw ...string) {
	drop := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		drop[NormalizeTag(s)] = struct{}{}
	}
	out := e.Tags[:0:0]
	for _, t := range e.Tags {
		if _, ok := drop[t]; !ok {
			out = append(out, t)
		}
	}
	e.Tags = out
}

// SetTags replaces the episode's tag set wholesale with the normalized
// form of raw.
func (e *Episode) SetTags(raw ...string) {
	e.Tags = NormalizeTags(raw)
}

// HasTag reports whether the episode carries the (normalized) tag.
func (e *Episode) HasTag(tag string) bool {
	n := NormalizeTag(tag)
	for _, t := range e.Tags {
		if t == n {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy of the episode suitable for handing to a
// caller without risking mutation of the stored value. Callers fetch
// episodes by copy, never by mutable alias.
func (e *Episode) Clone() *Episode {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Steps = append([]ExecutionStep(nil), e.Steps...)
	cp.Tags = append([]string(nil), e.Tags...)
	cp.Context.Tags = append([]string(nil), e.Context.Tags...)
	cp.Embedding = append([]float32(nil), e.Embedding...)
	if e.EndTime != nil {
		t := *e.EndTime
		cp.EndTime = &t
	}
	if e.Outcome != nil {
		o := *e.Outcome
		o.Artifacts = append([]string(nil), e.Outcome.Artifacts...)
		o.Completed = append([]string(nil), e.Outcome.Completed...)
		o.Remaining = append([]string(nil), e.Outcome.Remaining...)
		o.Attempted = append([]string(nil), e.Outcome.Attempted...)
		cp.Outcome = &o
	}
	if e.Reflection != nil {
		r := *e.Reflection
		r.Successes = append([]string(nil), e.Reflection.Successes...)
		r.Improvements = append([]string(nil), e.Reflection.Improvements...)
		r.Insights = append([]string(nil), e.Reflection.Insights...)
		cp.Reflection = &r
	}
	return &cp
}
