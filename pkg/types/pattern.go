package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// PatternType enumerates the kinds of reusable tactic the extractors emit.
type PatternType string

const (
	PatternToolSequence  PatternType = "tool_sequence"
	PatternErrorRecovery PatternType = "error_recovery"
	PatternDecisionPoint PatternType = "decision_point"
	PatternContextBased  PatternType = "context_based"
)

// PatternBody is the content a pattern's signature is derived from. Which
// fields are populated depends on the pattern's type: ToolSequence,
// Condition/Action, the error-recovery fields, or ClusterID.
type PatternBody struct {
	ToolSequence []string `json:"tool_sequence,omitempty"`

	Condition string `json:"condition,omitempty"`
	Action    string `json:"action,omitempty"`

	// ErrorKind and recovery pair, for PatternErrorRecovery.
	FailingTool    string `json:"failing_tool,omitempty"`
	RecoveringTool string `json:"recovering_tool,omitempty"`
	ErrorKind      string `json:"error_kind,omitempty"`

	// Cluster centroid identity, for PatternContextBased.
	ClusterID string `json:"cluster_id,omitempty"`
}

// Signature computes the deterministic content fingerprint for a body.
// Two bodies with byte-identical meaningful content hash identically;
// changing any tool name changes the hash.
func (b PatternBody) Signature(kind PatternType) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	switch kind {
	case PatternToolSequence:
		h.Write([]byte(strings.Join(b.ToolSequence, "→")))
	case PatternErrorRecovery:
		h.Write([]byte(b.FailingTool))
		h.Write([]byte{0})
		h.Write([]byte(b.RecoveringTool))
		h.Write([]byte{0})
		h.Write([]byte(b.ErrorKind))
	case PatternDecisionPoint:
		h.Write([]byte(b.Condition))
		h.Write([]byte{0})
		h.Write([]byte(b.Action))
	case PatternContextBased:
		h.Write([]byte(b.ClusterID))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Effectiveness tracks the observed success rate of a pattern.
type Effectiveness struct {
	Successes int64   `json:"successes"`
	Failures  int64   `json:"failures"`
	AvgReward float64 `json:"avg_reward"`
}

// SuccessRate is successes/(successes+failures) when the denominator is
// positive, else zero.
func (e Effectiveness) SuccessRate() float64 {
	total := e.Successes + e.Failures
	if total == 0 {
		return 0
	}
	return float64(e.Successes) / float64(total)
}

// SampleSize is the total number of observations backing Effectiveness.
func (e Effectiveness) SampleSize() int64 {
	return e.Successes + e.Failures
}

// Evidence tracks which episodes contributed to a pattern or heuristic, and
// doubles as the idempotency guard for additive effectiveness updates: a
// contribution is only counted once per episode id.
type Evidence struct {
	EpisodeIDs []string `json:"episode_ids,omitempty"`
}

// SampleSize is the number of distinct contributing episodes.
func (e Evidence) SampleSize() int {
	return len(e.EpisodeIDs)
}

// Contains reports whether episodeID has already contributed evidence.
func (e Evidence) Contains(episodeID string) bool {
	for _, id := range e.EpisodeIDs {
		if id == episodeID {
			return true
		}
	}
	return false
}

// Union returns the set union of two evidence episode-id lists, preserving
// the receiver's order and appending only new ids from other.
func (e Evidence) Union(other Evidence) Evidence {
	seen := make(map[string]struct{}, len(e.EpisodeIDs))
	out := append([]string(nil), e.EpisodeIDs...)
	for _, id := range out {
		seen[id] = struct{}{}
	}
	for _, id := range other.EpisodeIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return Evidence{EpisodeIDs: out}
}

// Pattern is a reusable tactic extracted from one or more episodes.
type Pattern struct {
	ID            string        `json:"id"`
	PatternType   PatternType   `json:"pattern_type"`
	Signature     string        `json:"signature"`
	Body          PatternBody   `json:"body"`
	Effectiveness Effectiveness `json:"effectiveness"`
	Evidence      Evidence      `json:"evidence"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	DecayFactor   float64       `json:"decay_factor"`
}

// RecordOutcome additively and idempotently folds one more contributing
// episode's outcome into the pattern's effectiveness. Calling this twice
// with the same episodeID is a no-op the second time (idempotency via
// Evidence), satisfying the at-least-once-processing contract.
func (p *Pattern) RecordOutcome(episodeID string, success bool, reward float64, now time.Time) {
	if p.Evidence.Contains(episodeID) {
		return
	}
	p.Evidence.EpisodeIDs = append(p.Evidence.EpisodeIDs, episodeID)
	prevN := p.Effectiveness.SampleSize()
	if success {
		p.Effectiveness.Successes++
	} else {
		p.Effectiveness.Failures++
	}
	n := prevN + 1
	p.Effectiveness.AvgReward = (p.Effectiveness.AvgReward*float64(prevN) + reward) / float64(n)
	p.UpdatedAt = now
}

// Heuristic is a condition/action rule learned from aggregated patterns.
type Heuristic struct {
	ID         string    `json:"id"`
	Condition  string    `json:"condition"`
	Action     string    `json:"action"`
	Confidence float64   `json:"confidence"`
	Evidence   Evidence  `json:"evidence"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UpdateEvidence recomputes a rolling success rate as
// (rate*(n-1) + [success?1:0]) / n and records the contributing episode.
func (h *Heuristic) UpdateEvidence(episodeID string, success bool, now time.Time) {
	if h.Evidence.Contains(episodeID) {
		return
	}
	n := float64(h.Evidence.SampleSize() + 1)
	inc := 0.0
	if success {
		inc = 1.0
	}
	h.Confidence = (h.Confidence*(n-1) + inc) / n
	h.Evidence.EpisodeIDs = append(h.Evidence.EpisodeIDs, episodeID)
	h.UpdatedAt = now
}

// RelationshipType enumerates the directed edge kinds between episodes.
type RelationshipType string

const (
	RelDependsOn   RelationshipType = "depends_on"
	RelFollowedBy  RelationshipType = "followed_by"
	RelSimilar     RelationshipType = "similar"
	RelAlternative RelationshipType = "alternative"
	RelPartOf      RelationshipType = "part_of"
)

// RelationshipMeta carries edge metadata.
type RelationshipMeta struct {
	Strength  float64   `json:"strength"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EpisodeRelationship is a directed, typed edge between two episodes.
type EpisodeRelationship struct {
	SourceID string           `json:"source_id"`
	TargetID string           `json:"target_id"`
	Type     RelationshipType `json:"type"`
	Meta     RelationshipMeta `json:"meta"`
}

// Key returns a stable identity string for the edge, used for idempotent
// removal and as a diagnostic edge label.
func (r EpisodeRelationship) Key() string {
	return string(r.Type) + ":" + r.SourceID + "->" + r.TargetID
}
