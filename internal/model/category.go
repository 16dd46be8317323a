package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gowa-broadcast/database"

	"github.com/google/uuid"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category name already exists")
	ErrNotInCategory    = errors.New("contact is not in category")
)

// Category groups contacts for targeted bulk sends.
type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	IsActive     bool      `json:"isActive"`
	ContactCount int       `json:"contactCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CategoryRequest is the body for create and update.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r CategoryRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

type CategoryStore struct {
	db  *database.DB
	now func() time.Time
}

func NewCategoryStore(db *database.DB) *CategoryStore {
	return &CategoryStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *CategoryStore) Create(ctx context.Context, req CategoryRequest) (*Category, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, ""); err != nil {
		return nil, err
	}

	now := s.now()
	c := &Category{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, c.ID, c.Name, c.Description, c.IsActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return c, nil
}

func (s *CategoryStore) Update(ctx context.Context, id string, req CategoryRequest) (*Category, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, id); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = $1, description = $2, updated_at = $3 WHERE id = $4
	`, name, strings.TrimSpace(req.Description), s.now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrCategoryNotFound
	}
	return s.Get(ctx, id)
}

func (s *CategoryStore) ensureUniqueName(ctx context.Context, name, exceptID string) error {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = $1`, name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check category name: %w", err)
	case id != exceptID:
		return ErrCategoryExists
	}
	return nil
}

const categoryColumns = `
	id, name, description, is_active,
	(SELECT COUNT(*) FROM contact_categories cc WHERE cc.category_id = categories.id),
	created_at, updated_at`

func scanCategory(row rowScanner) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.ContactCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CategoryStore) Get(ctx context.Context, id string) (*Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// List returns categories by name; inactive ones only when includeInactive.
func (s *CategoryStore) List(ctx context.Context, includeInactive bool) ([]Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// Deactivate hides a category. Its memberships are kept.
func (s *CategoryStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET is_active = FALSE, updated_at = $1 WHERE id = $2
	`, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// AddContact puts phone into an active category. Adding twice is a no-op.
func (s *CategoryStore) AddContact(ctx context.Context, id, phone string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return ErrCategoryNotFound
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM contacts WHERE phone = $1`, phone).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrContactNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check contact: %w", err)
	}

	query := `
		INSERT INTO contact_categories (category_id, phone, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (category_id, phone) DO NOTHING
	`
	if s.db.Dialect == database.MySQL {
		query = `INSERT IGNORE INTO contact_categories (category_id, phone, created_at) VALUES ($1, $2, $3)`
	}
	if _, err := s.db.ExecContext(ctx, query, id, phone, s.now()); err != nil {
		return fmt.Errorf("failed to add contact to category: %w", err)
	}
	return nil
}

func (s *CategoryStore) RemoveContact(ctx context.Context, id, phone string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM contact_categories WHERE category_id = $1 AND phone = $2
	`, id, phone)
	if err != nil {
		return fmt.Errorf("failed to remove contact from category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotInCategory
	}
	return nil
}
