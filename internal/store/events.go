package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/switchyard/internal/domain"
)

// AppendEvent inserts a materialized event. Events are never updated or
// deleted afterwards.
func (s *Store) AppendEvent(ctx context.Context, ev domain.DomainEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_events (id, subject_id, type, title, description, action_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.SubjectID,
		string(ev.Type),
		ev.Title,
		ev.Description,
		nullIfEmpty(ev.ActionURL),
		formatTime(ev.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("append event %s: %w", ev.ID, ErrDuplicate)
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ReadEvent returns the event with the given ID, or ErrNotFound.
func (s *Store) ReadEvent(ctx context.Context, id string) (domain.DomainEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, type, title, description, action_url, created_at
		FROM feed_events
		WHERE id = ?
	`, id)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DomainEvent{}, fmt.Errorf("read event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.DomainEvent{}, fmt.Errorf("read event %s: %w", id, err)
	}
	return ev, nil
}

// EventFilter narrows event listings. Zero fields match everything.
type EventFilter struct {
	SubjectID string
	Type      domain.EventType
	Limit     int // 0 means no limit
}

// ListEvents returns events newest first, the order the feed shows them.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]domain.DomainEvent, error) {
	query := `
		SELECT id, subject_id, type, title, description, action_url, created_at
		FROM feed_events
		WHERE (? = '' OR subject_id = ?) AND (? = '' OR type = ?)
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{f.SubjectID, f.SubjectID, string(f.Type), string(f.Type)}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []domain.DomainEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// CountEvents returns how many events match the filter. Limit is ignored.
func (s *Store) CountEvents(ctx context.Context, f EventFilter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM feed_events
		WHERE (? = '' OR subject_id = ?) AND (? = '' OR type = ?)
	`, f.SubjectID, f.SubjectID, string(f.Type), string(f.Type)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func scanEvent(row rowScanner) (domain.DomainEvent, error) {
	var (
		ev        domain.DomainEvent
		typ       string
		actionURL sql.NullString
		createdAt string
	)
	if err := row.Scan(&ev.ID, &ev.SubjectID, &typ, &ev.Title, &ev.Description, &actionURL, &createdAt); err != nil {
		return domain.DomainEvent{}, err
	}
	ev.Type = domain.EventType(typ)
	ev.ActionURL = actionURL.String

	t, err := parseTime(createdAt)
	if err != nil {
		return domain.DomainEvent{}, fmt.Errorf("scan event %s: %w", ev.ID, err)
	}
	ev.CreatedAt = t
	return ev, nil
}
