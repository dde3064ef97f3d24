package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/switchyard/internal/domain"
)

// RecordExecution appends one ledger row. Rows are never updated or deleted.
func (s *Store) RecordExecution(ctx context.Context, e domain.RuleExecution) error {
	if !e.Status.Valid() {
		return fmt.Errorf("record execution: invalid status %q", e.Status)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, rule_id, feed_event_id, status, error, executed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.RuleID,
		e.EventID,
		string(e.Status),
		nullIfEmpty(e.Error),
		formatTime(e.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// ExecutionFilter narrows ledger queries. Zero fields match everything.
type ExecutionFilter struct {
	RuleID  string
	EventID string
	Status  domain.ExecutionStatus
	Limit   int  // 0 means no limit
	Oldest  bool // oldest first instead of newest first
}

// ListExecutions returns ledger rows, newest first unless f.Oldest is set.
// Rows written in the same millisecond keep their insertion order.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListExecutions(ctx context.Context, f ExecutionFilter) ([]domain.RuleExecution, error) {
	order := "DESC"
	if f.Oldest {
		order = "ASC"
	}
	query := `
		SELECT id, rule_id, feed_event_id, status, error, executed_at
		FROM workflow_executions
		WHERE (? = '' OR rule_id = ?)
		  AND (? = '' OR feed_event_id = ?)
		  AND (? = '' OR status = ?)
		ORDER BY executed_at ` + order + `, rowid ` + order
	args := []any{f.RuleID, f.RuleID, f.EventID, f.EventID, string(f.Status), string(f.Status)}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	out := []domain.RuleExecution{}
	for rows.Next() {
		var (
			e          domain.RuleExecution
			status     string
			errText    sql.NullString
			executedAt string
		)
		if err := rows.Scan(&e.ID, &e.RuleID, &e.EventID, &status, &errText, &executedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		e.Status = domain.ExecutionStatus(status)
		e.Error = errText.String
		if e.ExecutedAt, err = parseTime(executedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return out, nil
}

// CountExecutions returns the number of ledger rows matching the filter.
func (s *Store) CountExecutions(ctx context.Context, f ExecutionFilter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workflow_executions
		WHERE (? = '' OR rule_id = ?)
		  AND (? = '' OR feed_event_id = ?)
		  AND (? = '' OR status = ?)
	`, f.RuleID, f.RuleID, f.EventID, f.EventID, string(f.Status), string(f.Status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count executions: %w", err)
	}
	return n, nil
}
