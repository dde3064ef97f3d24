package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/switchyard/internal/domain"
)

// The contacts table belongs to the intake subsystem. The engine reads it
// to resolve recipients and writes only status and assigned_to.

// UpdateContactStatus sets the status of every contact linked to userID
// and returns the number of rows changed. Zero rows is not an error.
func (s *Store) UpdateContactStatus(ctx context.Context, userID, status string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET status = ?, updated_at = ? WHERE user_id = ?
	`, status, formatTime(at), userID)
	if err != nil {
		return 0, fmt.Errorf("update contact status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update contact status: %w", err)
	}
	return n, nil
}

// AssignContactOwner sets assigned_to on every contact linked to userID
// and returns the number of rows changed. Zero rows is not an error.
func (s *Store) AssignContactOwner(ctx context.Context, userID, staffID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET assigned_to = ?, updated_at = ? WHERE user_id = ?
	`, staffID, formatTime(at), userID)
	if err != nil {
		return 0, fmt.Errorf("assign contact owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("assign contact owner: %w", err)
	}
	return n, nil
}

// ContactOwner returns assigned_to of the contact linked to userID.
// An unlinked user or an unassigned contact yields "".
func (s *Store) ContactOwner(ctx context.Context, userID string) (string, error) {
	var owner sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT assigned_to FROM contacts WHERE user_id = ? ORDER BY rowid ASC LIMIT 1
	`, userID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("contact owner: %w", err)
	}
	return owner.String, nil
}

// UserEmail returns the email address of a user, or "" for an unknown user.
func (s *Store) UserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = ?`, userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("user email: %w", err)
	}
	return email, nil
}

// CreateUser inserts a user. A duplicate ID or email returns ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u domain.User, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, created_at) VALUES (?, ?, ?, ?)
	`, u.ID, u.Email, u.DisplayName, formatTime(at))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %s: %w", u.ID, ErrDuplicate)
		}
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return nil
}

// CreateContact inserts a contact. Empty Source and Status take the
// table defaults (MANUAL, LEAD).
func (s *Store) CreateContact(ctx context.Context, c domain.Contact) error {
	if c.Source == "" {
		c.Source = "MANUAL"
	}
	if c.Status == "" {
		c.Status = "LEAD"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, email, full_name, user_id, source, status, assigned_to, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.Email,
		c.FullName,
		nullIfEmpty(c.UserID),
		c.Source,
		c.Status,
		nullIfEmpty(c.AssignedTo),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create contact %s: %w", c.ID, ErrDuplicate)
		}
		return fmt.Errorf("create contact %s: %w", c.ID, err)
	}
	return nil
}

// GetContactByUser returns the first contact linked to userID, or ErrNotFound.
func (s *Store) GetContactByUser(ctx context.Context, userID string) (domain.Contact, error) {
	var (
		c          domain.Contact
		linked     sql.NullString
		assignedTo sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, user_id, source, status, assigned_to, created_at, updated_at
		FROM contacts WHERE user_id = ? ORDER BY rowid ASC LIMIT 1
	`, userID).Scan(&c.ID, &c.Email, &c.FullName, &linked, &c.Source, &c.Status, &assignedTo, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Contact{}, fmt.Errorf("contact for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return domain.Contact{}, fmt.Errorf("contact for user %s: %w", userID, err)
	}
	c.UserID = linked.String
	c.AssignedTo = assignedTo.String
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Contact{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Contact{}, err
	}
	return c, nil
}
