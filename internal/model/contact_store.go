package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gowa-broadcast/database"
)

// ContactFields are the columns set by UpsertByPhone. An empty Name keeps
// the stored name, or falls back to the phone for new records. Empty
// Nickname and Title keep the stored values.
type ContactFields struct {
	Name     string
	Nickname string
	Title    string
	IsActive bool
}

// ContactFilter narrows List. Limit 0 means no limit. LastChatDays keeps
// contacts that chatted within that many days.
type ContactFilter struct {
	ActiveOnly   bool
	Search       string
	CategoryID   string
	LastChatDays int
	Limit        int
	Offset       int
}

type ContactStore struct {
	db  *database.DB
	now func() time.Time
}

func NewContactStore(db *database.DB) *ContactStore {
	return &ContactStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertByPhone inserts or updates the contact keyed by phone. last_chat_date
// is never touched.
func (s *ContactStore) UpsertByPhone(ctx context.Context, phone string, fields ContactFields) error {
	keepName := fields.Name == ""
	name := fields.Name
	if keepName {
		name = phone
	}

	var query string
	if s.db.Dialect == database.MySQL {
		query = `
			INSERT INTO contacts (phone, name, nickname, title, is_active, created_at, updated_at)
			VALUES ($1, $2, $6, $7, $3, $4, $4)
			ON DUPLICATE KEY UPDATE
			    name = IF($5, name, VALUES(name)),
			    nickname = IF(VALUES(nickname) = '', nickname, VALUES(nickname)),
			    title = IF(VALUES(title) = '', title, VALUES(title)),
			    is_active = VALUES(is_active),
			    updated_at = VALUES(updated_at)
		`
	} else {
		query = `
			INSERT INTO contacts (phone, name, nickname, title, is_active, created_at, updated_at)
			VALUES ($1, $2, $6, $7, $3, $4, $4)
			ON CONFLICT (phone) DO UPDATE SET
			    name = CASE WHEN $5 THEN contacts.name ELSE excluded.name END,
			    nickname = CASE WHEN excluded.nickname = '' THEN contacts.nickname ELSE excluded.nickname END,
			    title = CASE WHEN excluded.title = '' THEN contacts.title ELSE excluded.title END,
			    is_active = excluded.is_active,
			    updated_at = excluded.updated_at
		`
	}

	args := []any{phone, name, fields.IsActive, s.now(), keepName, fields.Nickname, fields.Title}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert contact %s: %w", phone, err)
	}
	return nil
}

// SetLastChatDate records a conversation with phone, creating an active
// contact named after the number when none exists.
func (s *ContactStore) SetLastChatDate(ctx context.Context, phone string, at time.Time) error {
	var query string
	if s.db.Dialect == database.MySQL {
		query = `
			INSERT INTO contacts (phone, name, is_active, last_chat_date, created_at, updated_at)
			VALUES ($1, $1, TRUE, $2, $3, $3)
			ON DUPLICATE KEY UPDATE
			    last_chat_date = VALUES(last_chat_date),
			    updated_at = VALUES(updated_at)
		`
	} else {
		query = `
			INSERT INTO contacts (phone, name, is_active, last_chat_date, created_at, updated_at)
			VALUES ($1, $1, TRUE, $2, $3, $3)
			ON CONFLICT (phone) DO UPDATE SET
			    last_chat_date = excluded.last_chat_date,
			    updated_at = excluded.updated_at
		`
	}

	if _, err := s.db.ExecContext(ctx, query, phone, at.UTC(), s.now()); err != nil {
		return fmt.Errorf("set last chat date for %s: %w", phone, err)
	}
	return nil
}

const contactColumns = `phone, name, nickname, title, is_active, last_chat_date, created_at, updated_at`

// Get returns the contact with the ids of the categories it belongs to.
func (s *ContactStore) Get(ctx context.Context, phone string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE phone = $1`, phone)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact %s: %w", phone, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id FROM contact_categories WHERE phone = $1 ORDER BY category_id
	`, phone)
	if err != nil {
		return nil, fmt.Errorf("get categories of %s: %w", phone, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		c.CategoryIDs = append(c.CategoryIDs, id)
	}
	return c, rows.Err()
}

// Create stores a new active contact. A deactivated contact with the same
// phone is reactivated with the given fields instead.
func (s *ContactStore) Create(ctx context.Context, nc NewContact) (*Contact, error) {
	name := strings.TrimSpace(nc.Name)
	if name == "" {
		name = nc.Phone
	}

	existing, err := s.Get(ctx, nc.Phone)
	switch {
	case err == nil && existing.IsActive:
		return nil, ErrContactExists
	case err == nil:
		active := true
		return s.Update(ctx, nc.Phone, ContactUpdate{Name: &name, Nickname: &nc.Nickname, Title: &nc.Title, IsActive: &active})
	case !errors.Is(err, ErrContactNotFound):
		return nil, err
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (phone, name, nickname, title, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
	`, nc.Phone, name, strings.TrimSpace(nc.Nickname), strings.TrimSpace(nc.Title), now)
	if err != nil {
		return nil, fmt.Errorf("create contact %s: %w", nc.Phone, err)
	}
	return s.Get(ctx, nc.Phone)
}

// Update applies the set fields of u.
func (s *ContactStore) Update(ctx context.Context, phone string, u ContactUpdate) (*Contact, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.Name != nil {
		set("name", strings.TrimSpace(*u.Name))
	}
	if u.Nickname != nil {
		set("nickname", strings.TrimSpace(*u.Nickname))
	}
	if u.Title != nil {
		set("title", strings.TrimSpace(*u.Title))
	}
	if u.IsActive != nil {
		set("is_active", *u.IsActive)
	}
	set("updated_at", s.now())
	args = append(args, phone)

	query := fmt.Sprintf(`UPDATE contacts SET %s WHERE phone = $%d`, strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update contact %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrContactNotFound
	}
	return s.Get(ctx, phone)
}

// Deactivate hides a contact from bulk sends. History and memberships are
// kept.
func (s *ContactStore) Deactivate(ctx context.Context, phone string) error {
	inactive := false
	_, err := s.Update(ctx, phone, ContactUpdate{IsActive: &inactive})
	return err
}

// List returns contacts ordered by name plus the total matching count.
func (s *ContactStore) List(ctx context.Context, filter ContactFilter) ([]Contact, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		where = append(where, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(nickname) LIKE $%d OR phone LIKE $%d)", len(args), len(args), len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("phone IN (SELECT phone FROM contact_categories WHERE category_id = $%d)", len(args)))
	}
	if filter.LastChatDays > 0 {
		args = append(args, s.now().Add(-time.Duration(filter.LastChatDays)*24*time.Hour))
		where = append(where, fmt.Sprintf("last_chat_date >= $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	query := `SELECT ` + contactColumns + ` FROM contacts` + clause + ` ORDER BY name ASC, phone ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*Contact, error) {
	var (
		c        Contact
		lastChat sql.NullTime
	)
	if err := row.Scan(&c.Phone, &c.Name, &c.Nickname, &c.Title, &c.IsActive, &lastChat, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if lastChat.Valid {
		t := lastChat.Time
		c.LastChatDate = &t
	}
	return &c, nil
}
