package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a saved analysis does not exist or belongs to another user.
var ErrNotFound = errors.New("analysis not found")

// DefaultStatus is given to analyses saved without one.
const DefaultStatus = "Draft"

// Analysis is a saved underwriting run.
type Analysis struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	PropertyID string          `json:"propertyId"`
	Strategy   string          `json:"strategy"`
	Status     string          `json:"status"`
	Metrics    json.RawMessage `json:"metrics"`
	Inputs     json.RawMessage `json:"inputs"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`

	// Filled in by History from the property store.
	PropertyTitle   string `json:"propertyTitle,omitempty"`
	PropertyAddress string `json:"propertyAddress,omitempty"`
}

// HistoryStore persists saved analyses per user
type HistoryStore interface {
	// Add stores a; ID must be set
	Add(ctx context.Context, a *Analysis) error

	// ListByUser returns the user's analyses, newest first
	ListByUser(ctx context.Context, userID string) ([]*Analysis, error)

	// Delete removes one of the user's analyses
	Delete(ctx context.Context, userID, id string) error
}

// InMemoryHistoryStore implements HistoryStore using an in-memory map.
// Thread-safe with RWMutex.
type InMemoryHistoryStore struct {
	analyses map[string]*Analysis
	mu       sync.RWMutex
}

func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{analyses: make(map[string]*Analysis)}
}

func (s *InMemoryHistoryStore) Add(ctx context.Context, a *Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.analyses[a.ID]; exists {
		return fmt.Errorf("analysis with ID %s already exists", a.ID)
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt

	cp := *a
	s.analyses[a.ID] = &cp
	return nil
}

func (s *InMemoryHistoryStore) ListByUser(ctx context.Context, userID string) ([]*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Analysis{}
	for _, a := range s.analyses {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryHistoryStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.analyses[id]
	if !exists || a.UserID != userID {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.analyses, id)
	return nil
}

// PostgresHistoryStore implements HistoryStore backed by the analyses table
type PostgresHistoryStore struct {
	db *sql.DB
}

func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (s *PostgresHistoryStore) Add(ctx context.Context, a *Analysis) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO analyses (id, user_id, property_id, strategy, status, metrics, inputs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`, a.ID, a.UserID, a.PropertyID, a.Strategy, a.Status, jsonOrEmpty(a.Metrics), jsonOrEmpty(a.Inputs)).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

func (s *PostgresHistoryStore) ListByUser(ctx context.Context, userID string) ([]*Analysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, property_id, strategy, status, metrics, inputs, created_at, updated_at
		FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	out := []*Analysis{}
	for rows.Next() {
		var (
			a              Analysis
			metrics, input []byte
		)
		err := rows.Scan(&a.ID, &a.UserID, &a.PropertyID, &a.Strategy, &a.Status,
			&metrics, &input, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		a.Metrics = json.RawMessage(metrics)
		a.Inputs = json.RawMessage(input)
		out = append(out, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}
	return out, nil
}

func (s *PostgresHistoryStore) Delete(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM analyses WHERE id::text = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func jsonOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
