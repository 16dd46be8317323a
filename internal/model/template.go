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
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateExists   = errors.New("template name already exists")
)

// Template is a stored message body with <key> markers.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TemplateRequest is the body for create and update.
type TemplateRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (r TemplateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		return errors.New("content is required")
	}
	return nil
}

type TemplateStore struct {
	db  *database.DB
	now func() time.Time
}

func NewTemplateStore(db *database.DB) *TemplateStore {
	return &TemplateStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *TemplateStore) Create(ctx context.Context, req TemplateRequest) (*Template, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, ""); err != nil {
		return nil, err
	}

	now := s.now()
	t := &Template{
		ID:        uuid.NewString(),
		Name:      name,
		Content:   req.Content,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, content, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, t.ID, t.Name, t.Content, t.IsActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) Update(ctx context.Context, id string, req TemplateRequest) (*Template, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, id); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE templates SET name = $1, content = $2, updated_at = $3 WHERE id = $4
	`, name, req.Content, s.now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrTemplateNotFound
	}
	return s.Get(ctx, id)
}

func (s *TemplateStore) ensureUniqueName(ctx context.Context, name, exceptID string) error {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM templates WHERE name = $1`, name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check template name: %w", err)
	case id != exceptID:
		return ErrTemplateExists
	}
	return nil
}

const templateColumns = `id, name, content, is_active, created_at, updated_at`

func (s *TemplateStore) Get(ctx context.Context, id string) (*Template, error) {
	var t Template
	err := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Content, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &t, nil
}

// List returns templates by name; inactive ones only when includeInactive.
func (s *TemplateStore) List(ctx context.Context, includeInactive bool) ([]Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []Template{}
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Content, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// Deactivate hides a template from listings. Jobs that already reference
// it keep working.
func (s *TemplateStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE templates SET is_active = FALSE, updated_at = $1 WHERE id = $2
	`, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
