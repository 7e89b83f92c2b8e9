package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/metalagman/consultant/internal/model"
)

// ErrNotFound is returned when no brief exists for a session id.
var ErrNotFound = errors.New("brief not found")

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store archives briefs and session journals.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened archive database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BriefSummary is one row of the brief listing.
type BriefSummary struct {
	SessionID     string
	Name          string
	CreatedAt     time.Time
	Cycles        int
	Unresolved    int
	EstimatedCost float64
}

// SaveBrief inserts or replaces the brief of a session.
func (s *Store) SaveBrief(ctx context.Context, b model.Brief) error {
	reqJSON, err := json.Marshal(b.Requirement)
	if err != nil {
		return fmt.Errorf("marshal requirement: %w", err)
	}
	planJSON, err := json.Marshal(b.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	var evalJSON string
	if b.Evaluation != nil {
		raw, err := json.Marshal(b.Evaluation)
		if err != nil {
			return fmt.Errorf("marshal evaluation: %w", err)
		}
		evalJSON = string(raw)
	}
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO briefs(session_id, created_at, name, cycles, unresolved,
		estimated_cost, markdown, requirement_json, plan_json, evaluation_json)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.SessionID, createdAt.UTC().Format(timeLayout), b.Name, b.Cycles, b.Unresolved,
		b.Plan.EstimatedCost, b.Markdown, string(reqJSON), string(planJSON), nullableString(evalJSON)); err != nil {
		return fmt.Errorf("insert brief: %w", err)
	}
	return nil
}

// AppendTransitions appends journal entries for a session in one transaction.
func (s *Store) AppendTransitions(ctx context.Context, sessionID string, ts []model.Transition) error {
	if len(ts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin append transitions: %w", err)
	}
	seq, err := nextSeq(ctx, tx, sessionID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, t := range ts {
		at := t.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO events(session_id, seq, ts, from_state, to_state, reason) VALUES(?, ?, ?, ?, ?, ?)`,
			sessionID, seq+i, at.UTC().Format(timeLayout), t.From, t.To, t.Reason); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transitions: %w", err)
	}
	return nil
}

func nextSeq(ctx context.Context, tx *sql.Tx, sessionID string) (int, error) {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE session_id=?`, sessionID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return seq + 1, nil
}

// ListBriefs returns the newest briefs first. A non-positive limit returns all.
func (s *Store) ListBriefs(ctx context.Context, limit int) ([]BriefSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, name, created_at, cycles, unresolved, estimated_cost
		FROM briefs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list briefs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BriefSummary
	for rows.Next() {
		var (
			b  BriefSummary
			ts string
		)
		if err := rows.Scan(&b.SessionID, &b.Name, &ts, &b.Cycles, &b.Unresolved, &b.EstimatedCost); err != nil {
			return nil, fmt.Errorf("scan brief: %w", err)
		}
		if b.CreatedAt, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse brief time %q: %w", ts, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate briefs: %w", err)
	}
	return out, nil
}

// GetBrief returns the stored brief of a session.
func (s *Store) GetBrief(ctx context.Context, sessionID string) (model.Brief, error) {
	row := s.db.QueryRowContext(ctx, `SELECT session_id, created_at, name, cycles, unresolved, markdown,
		requirement_json, plan_json, evaluation_json FROM briefs WHERE session_id=?`, sessionID)

	var (
		b                   model.Brief
		ts, reqJSON, planJS string
		evalJSON            sql.NullString
	)
	if err := row.Scan(&b.SessionID, &ts, &b.Name, &b.Cycles, &b.Unresolved, &b.Markdown, &reqJSON, &planJS, &evalJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Brief{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return model.Brief{}, fmt.Errorf("read brief: %w", err)
	}
	var err error
	if b.CreatedAt, err = time.Parse(timeLayout, ts); err != nil {
		return model.Brief{}, fmt.Errorf("parse brief time %q: %w", ts, err)
	}
	if err := json.Unmarshal([]byte(reqJSON), &b.Requirement); err != nil {
		return model.Brief{}, fmt.Errorf("decode requirement: %w", err)
	}
	if err := json.Unmarshal([]byte(planJS), &b.Plan); err != nil {
		return model.Brief{}, fmt.Errorf("decode plan: %w", err)
	}
	if evalJSON.Valid {
		var ev model.ProjectEvaluation
		if err := json.Unmarshal([]byte(evalJSON.String), &ev); err != nil {
			return model.Brief{}, fmt.Errorf("decode evaluation: %w", err)
		}
		b.Evaluation = &ev
	}
	return b, nil
}

// Journal returns the recorded transitions of a session in order.
func (s *Store) Journal(ctx context.Context, sessionID string) ([]model.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, from_state, to_state, reason FROM events WHERE session_id=? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Transition
	for rows.Next() {
		var (
			t  model.Transition
			ts string
		)
		if err := rows.Scan(&ts, &t.From, &t.To, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if t.At, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse event time %q: %w", ts, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
