/*
Package types defines the core data structures used throughout the memory
engine.

This package contains the fundamental types that represent an agent's
episodic memory: episodes, execution steps, extracted patterns, learned
heuristics, and the relationships between episodes. These types are used by
every other package for persistence, synchronization, retrieval, and
extraction.

# Architecture

The types package is the foundation of the memory engine's data model. It
defines:

  - Episode lifecycle (Episode, ExecutionStep, Outcome, Reflection)
  - Extracted knowledge (Pattern, Heuristic, Effectiveness, Evidence)
  - Episode relationships (EpisodeRelationship, RelationshipType)
  - Shared enums (TaskType, Complexity)

All types are designed to be:
  - Serializable (JSON) for both storage tiers
  - Passed by value/copy — callers never hold a mutable alias into a store
  - Self-validating via constructors and normalization helpers

# Core Types

Episode Lifecycle:
  - Episode: one recorded task execution
  - ExecutionStep: a single tool invocation inside an episode
  - StepResult: success/failure/pending outcome of a step
  - Outcome: terminal result of an episode (success, partial, failure)
  - Reflection: free-form post-hoc notes attached to a completed episode

Extracted Knowledge:
  - Pattern: a reusable tactic with an effectiveness record
  - Heuristic: a condition/action rule learned from aggregated episodes
  - Effectiveness: success/failure counters and derived rates
  - Evidence: the episodes backing a pattern or heuristic

Relationships:
  - EpisodeRelationship: a directed, typed edge between two episodes
  - RelationshipType: DependsOn, FollowedBy, Similar, Alternative, PartOf
*/
package types
