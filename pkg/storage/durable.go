package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/types"
)

// DurableConfig configures the connection pool backing the durable tier —
// the server of record, reached over the network and guarded upstream by
// the circuit breaker (pkg/circuitbreaker).
type DurableConfig struct {
	URL             string
	Token           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	// EmbeddingDims lists the embedding dimensions this deployment serves;
	// one vector table is created per dimension, per the "separate
	// physical partitions per embedding dimension" storage contract.
	EmbeddingDims []int
}

func (c DurableConfig) withDefaults() DurableConfig {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	return c
}

// DurableStore implements StorageBackend against a postgres server of
// record via pgx/sqlx, with a pooled, keep-alive connection. Queries are
// sent as plain SQL text; statements are not prepared or cached.
type DurableStore struct {
	db  *sqlx.DB
	cfg DurableConfig
}

// NewDurableStore opens (and migrates) the durable tier. cfg.URL uses the
// "postgres://" scheme for a real server of record. A "file:" URL is not
// special-cased here; NewDurableBackend (durable_memory.go) routes that
// scheme to the degenerate in-memory adapter documented in DESIGN.md.
func NewDurableStore(cfg DurableConfig) (*DurableStore, error) {
	cfg = cfg.withDefaults()

	db, err := sqlx.Connect("pgx", cfg.URL)
	if err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := &DurableStore{db: db, cfg: cfg}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DurableStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			task_type TEXT NOT NULL,
			complete BOOLEAN NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			body JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS episodes_domain_idx ON episodes (domain)`,
		`CREATE INDEX IF NOT EXISTS episodes_updated_at_idx ON episodes (updated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS patterns (
			id TEXT PRIMARY KEY,
			pattern_type TEXT NOT NULL,
			signature TEXT NOT NULL,
			success_rate DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			body JSONB NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS patterns_signature_idx ON patterns (signature)`,
		`CREATE TABLE IF NOT EXISTS heuristics (
			id TEXT PRIMARY KEY,
			updated_at TIMESTAMPTZ NOT NULL,
			body JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			edge_key TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			rel_type TEXT NOT NULL,
			body JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS relationships_source_idx ON relationships (source_id)`,
		`CREATE INDEX IF NOT EXISTS relationships_target_idx ON relationships (target_id)`,
	}
	for _, dim := range s.cfg.EmbeddingDims {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS embeddings_%d (episode_id TEXT PRIMARY KEY, vector FLOAT4[] NOT NULL)`, dim))
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return memerr.StorageUnavailable("durable", fmt.Errorf("migrate: %w", err))
		}
	}
	return nil
}

func (s *DurableStore) Close() error { return s.db.Close() }

const upsertEpisodeSQL = `
	INSERT INTO episodes (id, domain, task_type, complete, updated_at, body)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		domain = EXCLUDED.domain, task_type = EXCLUDED.task_type,
		complete = EXCLUDED.complete, updated_at = EXCLUDED.updated_at,
		body = EXCLUDED.body`

// PutEpisodeTx stages the episode write inside an already-open transaction
// (see BeginTx), so the caller can interleave the cache tier's best-effort
// write between staging and finalizing the durable commit.
func (s *DurableStore) PutEpisodeTx(ctx context.Context, tx Tx, ep *types.Episode) error {
	sqlxt, ok := tx.(sqlxTx)
	if !ok {
		return memerr.InternalInvariant("PutEpisodeTx called with a transaction not opened by DurableStore")
	}
	body, err := json.Marshal(ep)
	if err != nil {
		return memerr.Serialization("marshal episode", err)
	}
	_, err = sqlxt.tx.ExecContext(ctx, sqlxt.tx.Rebind(upsertEpisodeSQL),
		ep.ID, ep.Context.Domain, string(ep.TaskType), ep.IsComplete(), ep.UpdatedAt, body)
	if err != nil {
		return memerr.StorageUnavailable("durable", err)
	}
	if len(ep.Embedding) > 0 {
		if err := s.putEmbeddingTx(ctx, sqlxt, ep.ID, ep.Embedding); err != nil {
			return err
		}
	}
	return nil
}

func (s *DurableStore) putEmbeddingTx(ctx context.Context, tx sqlxTx, episodeID string, vec []float32) error {
	table := fmt.Sprintf("embeddings_%d", len(vec))
	_, err := tx.tx.ExecContext(ctx, tx.tx.Rebind(fmt.Sprintf(
		`INSERT INTO %s (episode_id, vector) VALUES ($1, $2)
		 ON CONFLICT (episode_id) DO UPDATE SET vector = EXCLUDED.vector`, table)),
		episodeID, vec)
	if err != nil {
		return memerr.StorageUnavailable("durable", err)
	}
	return nil
}

func (s *DurableStore) PutEpisode(ctx context.Context, ep *types.Episode) error {
	body, err := json.Marshal(ep)
	if err != nil {
		return memerr.Serialization("marshal episode", err)
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(upsertEpisodeSQL),
		ep.ID, ep.Context.Domain, string(ep.TaskType), ep.IsComplete(), ep.UpdatedAt, body)
	if err != nil {
		return memerr.StorageUnavailable("durable", err)
	}
	if len(ep.Embedding) > 0 {
		if err := s.putEmbedding(ctx, ep.ID, ep.Embedding); err != nil {
			return err
		}
	}
	return nil
}

func (s *DurableStore) putEmbedding(ctx context.Context, episodeID string, vec []float32) error {
	table := fmt.Sprintf("embeddings_%d", len(vec))
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (episode_id, vector) VALUES ($1, $2)
		 ON CONFLICT (episode_id) DO UPDATE SET vector = EXCLUDED.vector`, table),
		episodeID, vec)
	if err != nil {
		return memerr.StorageUnavailable("durable", err)
	}
	return nil
}

func (s *DurableStore) GetEpisode(ctx context.Context, id string) (*types.Episode, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, `SELECT body FROM episodes WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, memerr.NotFound("episode", id)
	}
	if err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	var ep types.Episode
	if err := json.Unmarshal(body, &ep); err != nil {
		return nil, memerr.Serialization("unmarshal episode", err)
	}
	return &ep, nil
}

func (s *DurableStore) ListEpisodes(ctx context.Context, filter EpisodeFilter) ([]*types.Episode, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT body FROM episodes WHERE 1=1`)
	var args []any
	if filter.Domain != "" {
		args = append(args, filter.Domain)
		fmt.Fprintf(&q, " AND domain = $%d", len(args))
	}
	if filter.TaskType != "" {
		args = append(args, string(filter.TaskType))
		fmt.Fprintf(&q, " AND task_type = $%d", len(args))
	}
	if filter.OnlyComplete {
		q.WriteString(" AND complete = true")
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		fmt.Fprintf(&q, " AND updated_at >= $%d", len(args))
	}
	q.WriteString(" ORDER BY updated_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&q, " OFFSET $%d", len(args))
	}

	var bodies [][]byte
	if err := s.db.SelectContext(ctx, &bodies, s.db.Rebind(q.String()), args...); err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	out := make([]*types.Episode, 0, len(bodies))
	for _, body := range bodies {
		var ep types.Episode
		if err := json.Unmarshal(body, &ep); err != nil {
			return nil, memerr.Serialization("unmarshal episode", err)
		}
		if len(filter.Tags) > 0 && !hasAllTags(&ep, filter.Tags) {
			continue
		}
		out = append(out, &ep)
	}
	return out, nil
}

func hasAllTags(ep *types.Episode, tags []string) bool {
	for _, t := range tags {
		if !ep.HasTag(t) {
			return false
		}
	}
	return true
}

func (s *DurableStore) DeleteEpisode(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = $1`, id)
	if err != nil {
		return memerr.StorageUnavailable("durable", err)
	}
	return nil
}

func (s *DurableStore) PutPattern(ctx context.Context, p *types.Pattern) error {
	body, err := json.Marshal(p)
	if err != nil {
		return memerr.Serialization("marshal pattern", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, pattern_type, signature, success_rate, updated_at, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			pattern_type = EXCLUDED.pattern_type, signature = EXCLUDED.signature,
			success_rate = EXCLUDED.success_rate, updated_at = EXCLUDED.updated_at,
			body = EXCLUDED.body`,
		p.ID, string(p.PatternType), p.Signature, p.Effectiveness.SuccessRate(), p.UpdatedAt, body)
	if err != nil {
		return memerr.StorageUnavailable("durable", err)
	}
	return nil
}

func (s *DurableStore) GetPattern(ctx context.Context, id string) (*types.Pattern, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, `SELECT body FROM patterns WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, memerr.NotFound("pattern", id)
	}
	if err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	var p types.Pattern
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, memerr.Serialization("unmarshal pattern", err)
	}
	return &p, nil
}

// GetPatternBySignature looks a pattern up by its content fingerprint, the
// idempotency key extractors upsert against.
func (s *DurableStore) GetPatternBySignature(ctx context.Context, signature string) (*types.Pattern, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, `SELECT body FROM patterns WHERE signature = $1`, signature)
	if err == sql.ErrNoRows {
		return nil, memerr.NotFound("pattern", signature)
	}
	if err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	var p types.Pattern
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, memerr.Serialization("unmarshal pattern", err)
	}
	return &p, nil
}

func (s *DurableStore) ListPatterns(ctx context.Context, filter PatternFilter) ([]*types.Pattern, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT body FROM patterns WHERE 1=1`)
	var args []any
	if filter.PatternType != "" {
		args = append(args, string(filter.PatternType))
		fmt.Fprintf(&q, " AND pattern_type = $%d", len(args))
	}
	if filter.MinSuccessRate > 0 {
		args = append(args, filter.MinSuccessRate)
		fmt.Fprintf(&q, " AND success_rate >= $%d", len(args))
	}
	q.WriteString(" ORDER BY updated_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}

	var bodies [][]byte
	if err := s.db.SelectContext(ctx, &bodies, s.db.Rebind(q.String()), args...); err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	out := make([]*types.Pattern, 0, len(bodies))
	for _, body := range bodies {
		var p types.Pattern
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, memerr.Serialization("unmarshal pattern", err)
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *DurableStore) PutHeuristic(ctx context.Context, h *types.Heuristic) error {
	body, err := json.Marshal(h)
	if err != nil {
		return memerr.Serialization("marshal heuristic", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO heuristics (id, updated_at, body) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at, body = EXCLUDED.body`,
		h.ID, h.UpdatedAt, body)
	if err != nil {
		return memerr.StorageUnavailable("durable", err)
	}
	return nil
}

func (s *DurableStore) GetHeuristic(ctx context.Context, id string) (*types.Heuristic, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, `SELECT body FROM heuristics WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, memerr.NotFound("heuristic", id)
	}
	if err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	var h types.Heuristic
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, memerr.Serialization("unmarshal heuristic", err)
	}
	return &h, nil
}

func (s *DurableStore) ListHeuristics(ctx context.Context) ([]*types.Heuristic, error) {
	var bodies [][]byte
	if err := s.db.SelectContext(ctx, &bodies, `SELECT body FROM heuristics ORDER BY updated_at DESC`); err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	out := make([]*types.Heuristic, 0, len(bodies))
	for _, body := range bodies {
		var h types.Heuristic
		if err := json.Unmarshal(body, &h); err != nil {
			return nil, memerr.Serialization("unmarshal heuristic", err)
		}
		out = append(out, &h)
	}
	return out, nil
}

func (s *DurableStore) PutRelationship(ctx context.Context, r *types.EpisodeRelationship) error {
	body, err := json.Marshal(r)
	if err != nil {
		return memerr.Serialization("marshal relationship", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relationships (edge_key, source_id, target_id, rel_type, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (edge_key) DO UPDATE SET body = EXCLUDED.body`,
		r.Key(), r.SourceID, r.TargetID, string(r.Type), body)
	if err != nil {
		return memerr.StorageUnavailable("durable", err)
	}
	return nil
}

func (s *DurableStore) ListRelationships(ctx context.Context, episodeID string, dir RelationshipDirection) ([]*types.EpisodeRelationship, error) {
	var query string
	switch dir {
	case DirectionOutgoing:
		query = `SELECT body FROM relationships WHERE source_id = $1`
	case DirectionIncoming:
		query = `SELECT body FROM relationships WHERE target_id = $1`
	default:
		query = `SELECT body FROM relationships WHERE source_id = $1 OR target_id = $1`
	}
	var bodies [][]byte
	if err := s.db.SelectContext(ctx, &bodies, query, episodeID); err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	out := make([]*types.EpisodeRelationship, 0, len(bodies))
	for _, body := range bodies {
		var r types.EpisodeRelationship
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, memerr.Serialization("unmarshal relationship", err)
		}
		out = append(out, &r)
	}
	return out, nil
}

func (s *DurableStore) DeleteRelationship(ctx context.Context, r *types.EpisodeRelationship) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM relationships WHERE edge_key = $1`, r.Key())
	if err != nil {
		return memerr.StorageUnavailable("durable", err)
	}
	return nil
}

// sqlxTx adapts *sqlx.Tx to the storage.Tx interface.
type sqlxTx struct{ tx *sqlx.Tx }

func (t sqlxTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t sqlxTx) Rollback(context.Context) error { return t.tx.Rollback() }

// BeginTx opens a transaction used by the synchronizer's prepare phase: the
// transaction is held open across the cache-tier best-effort write before
// being committed or rolled back.
func (s *DurableStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, memerr.StorageUnavailable("durable", err)
	}
	return sqlxTx{tx: tx}, nil
}
