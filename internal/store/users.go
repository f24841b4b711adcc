package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zeineb-manai/depot-vente/internal/models"

	"github.com/google/uuid"
)

// CreateUser registers a new user with a generated id and persists it
// immediately. Directory entries are immutable once created: there is no
// update or delete path, so receipts can reference them forever.
func (s *Store) CreateUser(ctx context.Context, name, phone string) (*models.User, error) {
	user := &models.User{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Phone:     strings.TrimSpace(phone),
		CreatedAt: s.nowISO(),
	}

	query := s.db.Rebind(`INSERT INTO users (id, name, phone, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Name, user.Phone, user.CreatedAt); err != nil {
		return nil, fmt.Errorf("creating user: %v: %w", err, models.ErrStorage)
	}
	return user, nil
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := s.db.Rebind(`SELECT id, name, phone, created_at FROM users WHERE id = ?`)
	err := s.db.GetContext(ctx, &user, query, strings.TrimSpace(id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %v: %w", err, models.ErrStorage)
	}
	return &user, nil
}

// SuggestUserIDs returns the ids of all users whose name matches exactly.
// Names are not unique, so zero, one or many ids can come back; the caller
// disambiguates.
func (s *Store) SuggestUserIDs(ctx context.Context, name string) ([]string, error) {
	var ids []string
	query := s.db.Rebind(`SELECT id FROM users WHERE name = ?`)
	if err := s.db.SelectContext(ctx, &ids, query, strings.TrimSpace(name)); err != nil {
		return nil, fmt.Errorf("suggesting user ids: %v: %w", err, models.ErrStorage)
	}
	return ids, nil
}

// ValidateUserID reports whether the id resolves to an existing user. Used
// as the precondition gate before accepting a seller or buyer reference.
func (s *Store) ValidateUserID(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	var exists bool
	query := s.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`)
	if err := s.db.GetContext(ctx, &exists, query, strings.TrimSpace(id)); err != nil {
		return false, fmt.Errorf("validating user id: %v: %w", err, models.ErrStorage)
	}
	return exists, nil
}

// ListUsers returns all registered users in creation order.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.SelectContext(ctx, &users,
		`SELECT id, name, phone, created_at FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %v: %w", err, models.ErrStorage)
	}
	return users, nil
}
