package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/switchyard/internal/domain"
)

const ruleColumns = `id, name, description, trigger_event, condition_json, action_type,
	action_config, enabled, position, created_by, created_at, updated_at`

// candidateColumns are the rule fields the engine reads. Audit columns are
// left out so a bad timestamp on one row cannot hide its siblings.
const candidateColumns = `id, name, trigger_event, condition_json, action_type,
	action_config, enabled, position`

// ListCandidateRules returns the enabled rules for an event type in
// evaluation order: position ascending, ties in insertion order. Only the
// fields in candidateColumns are populated.
//
// The rules table is read fresh on every call. If it does not exist the
// query error is returned unchanged; the engine treats that as "no engine".
func (s *Store) ListCandidateRules(ctx context.Context, eventType domain.EventType) ([]domain.WorkflowRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM workflow_rules
		WHERE trigger_event = ? AND enabled = 1
		ORDER BY position ASC, rowid ASC
	`, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []domain.WorkflowRule{}
	for rows.Next() {
		var (
			r          domain.WorkflowRule
			trigger    string
			condition  sql.NullString
			actionType string
			enabled    int
		)
		if err := rows.Scan(&r.ID, &r.Name, &trigger, &condition, &actionType,
			&r.ActionConfig, &enabled, &r.Position); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.TriggerEvent = domain.EventType(trigger)
		r.ConditionRaw = condition.String
		r.ActionType = domain.ActionType(actionType)
		r.Enabled = enabled != 0
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// RuleFilter narrows rule listings. Zero fields match everything.
type RuleFilter struct {
	TriggerEvent domain.EventType
	EnabledOnly  bool
}

// ListRules returns rules grouped by trigger, each group in evaluation order.
func (s *Store) ListRules(ctx context.Context, f RuleFilter) ([]domain.WorkflowRule, error) {
	return s.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM workflow_rules
		WHERE (? = '' OR trigger_event = ?) AND (? = 0 OR enabled = 1)
		ORDER BY trigger_event ASC, position ASC, rowid ASC
	`, string(f.TriggerEvent), string(f.TriggerEvent), boolToInt(f.EnabledOnly))
}

// GetRule returns one rule, or ErrNotFound.
func (s *Store) GetRule(ctx context.Context, id string) (domain.WorkflowRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM workflow_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorkflowRule{}, fmt.Errorf("get rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.WorkflowRule{}, fmt.Errorf("get rule %s: %w", id, err)
	}
	return r, nil
}

// CreateRule inserts a new rule. CreatedAt and UpdatedAt are taken from
// the rule as given. A duplicate ID returns ErrDuplicate.
func (s *Store) CreateRule(ctx context.Context, r domain.WorkflowRule) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ruleArgs(r)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create rule %s: %w", r.ID, ErrDuplicate)
		}
		return fmt.Errorf("create rule %s: %w", r.ID, err)
	}
	return nil
}

// UpsertRule inserts a rule or replaces the definition of an existing one
// with the same ID. The original created_by and created_at are kept.
func (s *Store) UpsertRule(ctx context.Context, r domain.WorkflowRule) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			trigger_event = excluded.trigger_event,
			condition_json = excluded.condition_json,
			action_type = excluded.action_type,
			action_config = excluded.action_config,
			enabled = excluded.enabled,
			position = excluded.position,
			updated_at = excluded.updated_at
	`, ruleArgs(r)...)
	if err != nil {
		return fmt.Errorf("upsert rule %s: %w", r.ID, err)
	}
	return nil
}

// UpdateRule applies a patch to an existing rule and returns the result.
func (s *Store) UpdateRule(ctx context.Context, id string, patch domain.RulePatch, at time.Time) (domain.WorkflowRule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkflowRule{}, fmt.Errorf("update rule: begin: %w", err)
	}
	defer tx.Rollback()

	current, err := scanRule(tx.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM workflow_rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorkflowRule{}, fmt.Errorf("update rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.WorkflowRule{}, fmt.Errorf("update rule %s: %w", id, err)
	}

	updated := patch.Apply(current)
	updated.UpdatedAt = at.UTC().Truncate(time.Millisecond)
	if err := updated.Validate(); err != nil {
		return domain.WorkflowRule{}, fmt.Errorf("update rule %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflow_rules SET
			name = ?, description = ?, trigger_event = ?, condition_json = ?,
			action_type = ?, action_config = ?, enabled = ?, position = ?, updated_at = ?
		WHERE id = ?
	`,
		updated.Name,
		updated.Description,
		string(updated.TriggerEvent),
		nullIfEmpty(updated.ConditionRaw),
		string(updated.ActionType),
		updated.ActionConfig,
		boolToInt(updated.Enabled),
		updated.Position,
		formatTime(updated.UpdatedAt),
		id,
	)
	if err != nil {
		return domain.WorkflowRule{}, fmt.Errorf("update rule %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.WorkflowRule{}, fmt.Errorf("update rule %s: commit: %w", id, err)
	}
	return updated, nil
}

// SetRuleEnabled toggles a rule. Returns ErrNotFound for an unknown ID.
func (s *Store) SetRuleEnabled(ctx context.Context, id string, enabled bool, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_rules SET enabled = ?, updated_at = ? WHERE id = ?
	`, boolToInt(enabled), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("set rule %s enabled: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set rule %s enabled: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("set rule %s enabled: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteRule removes a rule that has never run. A rule with ledger rows
// returns ErrRuleInUse; disable it instead.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflow_rules WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("delete rule %s: %w", id, ErrRuleInUse)
		}
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]domain.WorkflowRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []domain.WorkflowRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

func ruleArgs(r domain.WorkflowRule) []any {
	return []any{
		r.ID,
		r.Name,
		r.Description,
		string(r.TriggerEvent),
		nullIfEmpty(r.ConditionRaw),
		string(r.ActionType),
		r.ActionConfig,
		boolToInt(r.Enabled),
		r.Position,
		r.CreatedBy,
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	}
}

func scanRule(row rowScanner) (domain.WorkflowRule, error) {
	var (
		r          domain.WorkflowRule
		trigger    string
		condition  sql.NullString
		actionType string
		enabled    int
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &trigger, &condition, &actionType,
		&r.ActionConfig, &enabled, &r.Position, &r.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.WorkflowRule{}, err
	}
	r.TriggerEvent = domain.EventType(trigger)
	r.ConditionRaw = condition.String
	r.ActionType = domain.ActionType(actionType)
	r.Enabled = enabled != 0

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.WorkflowRule{}, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.WorkflowRule{}, err
	}
	return r, nil
}
