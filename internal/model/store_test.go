package model

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gowa-broadcast/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSchema(context.Background(), db))
	return db
}

func TestEnsureSchemaIsRepeatable(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, EnsureSchema(context.Background(), db))
}

func TestContactStoreUpsertByPhone(t *testing.T) {
	ctx := context.Background()
	store := NewContactStore(openTestDB(t))

	t.Run("insert falls back to phone as name", func(t *testing.T) {
		require.NoError(t, store.UpsertByPhone(ctx, "972500000001", ContactFields{IsActive: true}))

		c, err := store.Get(ctx, "972500000001")
		require.NoError(t, err)
		assert.Equal(t, "972500000001", c.Name)
		assert.True(t, c.IsActive)
		assert.Nil(t, c.LastChatDate)
	})

	t.Run("named update replaces name", func(t *testing.T) {
		require.NoError(t, store.UpsertByPhone(ctx, "972500000001", ContactFields{Name: "Dana", IsActive: true}))

		c, err := store.Get(ctx, "972500000001")
		require.NoError(t, err)
		assert.Equal(t, "Dana", c.Name)
	})

	t.Run("nameless update keeps name", func(t *testing.T) {
		require.NoError(t, store.UpsertByPhone(ctx, "972500000001", ContactFields{IsActive: true}))

		c, err := store.Get(ctx, "972500000001")
		require.NoError(t, err)
		assert.Equal(t, "Dana", c.Name)
	})

	t.Run("repeat upsert keeps one record", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, store.UpsertByPhone(ctx, "972500000002", ContactFields{Name: "Avi", IsActive: true}))
		}
		_, total, err := store.List(ctx, ContactFilter{})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})
}

func TestContactStoreSetLastChatDate(t *testing.T) {
	ctx := context.Background()
	store := NewContactStore(openTestDB(t))
	at := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

	require.NoError(t, store.UpsertByPhone(ctx, "972500000001", ContactFields{Name: "Dana", IsActive: true}))
	require.NoError(t, store.SetLastChatDate(ctx, "972500000001", at))

	c, err := store.Get(ctx, "972500000001")
	require.NoError(t, err)
	require.NotNil(t, c.LastChatDate)
	assert.True(t, at.Equal(*c.LastChatDate))
	assert.Equal(t, "Dana", c.Name)

	// unknown numbers get a record of their own
	require.NoError(t, store.SetLastChatDate(ctx, "972500000009", at))
	c, err = store.Get(ctx, "972500000009")
	require.NoError(t, err)
	assert.Equal(t, "972500000009", c.Name)
	assert.True(t, c.IsActive)

	// a later upsert leaves the date alone
	require.NoError(t, store.UpsertByPhone(ctx, "972500000001", ContactFields{Name: "Dana L", IsActive: true}))
	c, err = store.Get(ctx, "972500000001")
	require.NoError(t, err)
	require.NotNil(t, c.LastChatDate)
	assert.True(t, at.Equal(*c.LastChatDate))
}

func TestContactStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewContactStore(openTestDB(t))

	require.NoError(t, store.UpsertByPhone(ctx, "972500000001", ContactFields{Name: "Charlie", IsActive: true}))
	require.NoError(t, store.UpsertByPhone(ctx, "972500000002", ContactFields{Name: "alice", IsActive: true}))
	require.NoError(t, store.UpsertByPhone(ctx, "972500000003", ContactFields{Name: "Bob", IsActive: false}))

	all, total, err := store.List(ctx, ContactFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	active, total, err := store.List(ctx, ContactFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, c := range active {
		assert.True(t, c.IsActive)
	}

	found, total, err := store.List(ctx, ContactFilter{Search: "ALI"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "972500000002", found[0].Phone)

	page, total, err := store.List(ctx, ContactFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)
}

func TestContactStoreGetMissing(t *testing.T) {
	store := NewContactStore(openTestDB(t))
	_, err := store.Get(context.Background(), "972599999999")
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestTemplateStore(t *testing.T) {
	ctx := context.Background()
	store := NewTemplateStore(openTestDB(t))

	created, err := store.Create(ctx, TemplateRequest{Name: " welcome ", Content: "Hi <name>"})
	require.NoError(t, err)
	assert.Equal(t, "welcome", created.Name)
	assert.True(t, created.IsActive)

	_, err = store.Create(ctx, TemplateRequest{Name: "welcome", Content: "again"})
	assert.ErrorIs(t, err, ErrTemplateExists)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hi <name>", got.Content)

	updated, err := store.Update(ctx, created.ID, TemplateRequest{Name: "welcome", Content: "Hello <name>"})
	require.NoError(t, err)
	assert.Equal(t, "Hello <name>", updated.Content)

	require.NoError(t, store.Deactivate(ctx, created.ID))

	visible, err := store.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := store.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	assert.ErrorIs(t, store.Deactivate(ctx, "missing"), ErrTemplateNotFound)
	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestDispatchJobStore(t *testing.T) {
	ctx := context.Background()
	store := NewDispatchJobStore(openTestDB(t))
	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	job := DispatchJob{ID: "job-1", State: "scheduled", Total: 25, ScheduledAt: created, CreatedAt: created}
	require.NoError(t, store.Save(ctx, job))

	finished := created.Add(time.Hour)
	job.State = "completed"
	job.Success = 24
	job.Failure = 1
	job.StartedAt = &created
	job.FinishedAt = &finished
	require.NoError(t, store.Save(ctx, job))

	jobs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "completed", jobs[0].State)
	assert.Equal(t, 24, jobs[0].Success)
	assert.Equal(t, 1, jobs[0].Failure)
	require.NotNil(t, jobs[0].FinishedAt)
	assert.True(t, finished.Equal(*jobs[0].FinishedAt))
	assert.Empty(t, jobs[0].TemplateID)
}

func TestEnsureSchemaAddsContactColumns(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "old.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, `
		CREATE TABLE contacts (
			phone VARCHAR(32) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_chat_date TIMESTAMP NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO contacts (phone, name, is_active, created_at, updated_at) VALUES ($1, $2, TRUE, $3, $3)`,
		"972500000001", "Dana", time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, EnsureSchema(ctx, db))

	c, err := NewContactStore(db).Get(ctx, "972500000001")
	require.NoError(t, err)
	assert.Equal(t, "Dana", c.Name)
	assert.Empty(t, c.Nickname)
	assert.Empty(t, c.Title)
}

func TestContactStoreNicknameAndTitle(t *testing.T) {
	ctx := context.Background()
	store := NewContactStore(openTestDB(t))

	require.NoError(t, store.UpsertByPhone(ctx, "972500000001", ContactFields{Name: "Dana Levi", Nickname: "Dani", Title: "Dr.", IsActive: true}))
	require.NoError(t, store.UpsertByPhone(ctx, "972500000001", ContactFields{Name: "Dana", IsActive: true}))

	c, err := store.Get(ctx, "972500000001")
	require.NoError(t, err)
	assert.Equal(t, "Dana", c.Name)
	assert.Equal(t, "Dani", c.Nickname)
	assert.Equal(t, "Dr.", c.Title)

	found, _, err := store.List(ctx, ContactFilter{Search: "dani"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestContactStoreCreateUpdateDeactivate(t *testing.T) {
	ctx := context.Background()
	store := NewContactStore(openTestDB(t))

	created, err := store.Create(ctx, NewContact{Phone: "972500000001", Name: " Dana ", Title: "Ms."})
	require.NoError(t, err)
	assert.Equal(t, "Dana", created.Name)
	assert.Equal(t, "Ms.", created.Title)
	assert.True(t, created.IsActive)

	_, err = store.Create(ctx, NewContact{Phone: "972500000001", Name: "Again"})
	assert.ErrorIs(t, err, ErrContactExists)

	nick := "Dani"
	updated, err := store.Update(ctx, "972500000001", ContactUpdate{Nickname: &nick})
	require.NoError(t, err)
	assert.Equal(t, "Dana", updated.Name)
	assert.Equal(t, "Dani", updated.Nickname)
	assert.Equal(t, "Ms.", updated.Title)

	require.NoError(t, store.Deactivate(ctx, "972500000001"))
	active, _, err := store.List(ctx, ContactFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	// creating a deactivated contact brings it back
	revived, err := store.Create(ctx, NewContact{Phone: "972500000001", Name: "Dana L"})
	require.NoError(t, err)
	assert.True(t, revived.IsActive)
	assert.Equal(t, "Dana L", revived.Name)

	_, err = store.Update(ctx, "972599999999", ContactUpdate{Nickname: &nick})
	assert.ErrorIs(t, err, ErrContactNotFound)
	assert.ErrorIs(t, store.Deactivate(ctx, "972599999999"), ErrContactNotFound)
}

func TestContactStoreListByLastChat(t *testing.T) {
	ctx := context.Background()
	store := NewContactStore(openTestDB(t))
	now := time.Now().UTC()

	require.NoError(t, store.SetLastChatDate(ctx, "972500000001", now.Add(-2*time.Hour)))
	require.NoError(t, store.SetLastChatDate(ctx, "972500000002", now.Add(-10*24*time.Hour)))
	require.NoError(t, store.UpsertByPhone(ctx, "972500000003", ContactFields{Name: "Never", IsActive: true}))

	recent, total, err := store.List(ctx, ContactFilter{LastChatDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, recent, 1)
	assert.Equal(t, "972500000001", recent[0].Phone)

	_, total, err = store.List(ctx, ContactFilter{LastChatDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestCategoryStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	categories := NewCategoryStore(db)
	contacts := NewContactStore(db)

	vip, err := categories.Create(ctx, CategoryRequest{Name: " VIP ", Description: "top customers"})
	require.NoError(t, err)
	assert.Equal(t, "VIP", vip.Name)
	_, err = categories.Create(ctx, CategoryRequest{Name: "VIP"})
	assert.ErrorIs(t, err, ErrCategoryExists)

	require.NoError(t, contacts.UpsertByPhone(ctx, "972500000001", ContactFields{Name: "Dana", IsActive: true}))
	require.NoError(t, contacts.UpsertByPhone(ctx, "972500000002", ContactFields{Name: "Eli", IsActive: true}))

	require.NoError(t, categories.AddContact(ctx, vip.ID, "972500000001"))
	require.NoError(t, categories.AddContact(ctx, vip.ID, "972500000001"))
	assert.ErrorIs(t, categories.AddContact(ctx, vip.ID, "972599999999"), ErrContactNotFound)
	assert.ErrorIs(t, categories.AddContact(ctx, "missing", "972500000001"), ErrCategoryNotFound)

	got, err := categories.Get(ctx, vip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ContactCount)

	members, total, err := contacts.List(ctx, ContactFilter{CategoryID: vip.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, members, 1)
	assert.Equal(t, "972500000001", members[0].Phone)

	dana, err := contacts.Get(ctx, "972500000001")
	require.NoError(t, err)
	assert.Equal(t, []string{vip.ID}, dana.CategoryIDs)

	updated, err := categories.Update(ctx, vip.ID, CategoryRequest{Name: "Gold"})
	require.NoError(t, err)
	assert.Equal(t, "Gold", updated.Name)
	assert.Empty(t, updated.Description)

	require.NoError(t, categories.RemoveContact(ctx, vip.ID, "972500000001"))
	assert.ErrorIs(t, categories.RemoveContact(ctx, vip.ID, "972500000001"), ErrNotInCategory)

	require.NoError(t, categories.Deactivate(ctx, vip.ID))
	visible, err := categories.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, visible)
	all, err := categories.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.ErrorIs(t, categories.AddContact(ctx, vip.ID, "972500000002"), ErrCategoryNotFound)
	assert.ErrorIs(t, categories.Deactivate(ctx, "missing"), ErrCategoryNotFound)
}
