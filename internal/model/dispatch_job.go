package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gowa-broadcast/database"
)

// DispatchJob is the persisted summary of a bulk send.
type DispatchJob struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Total       int        `json:"totalRecipients"`
	Success     int        `json:"successCount"`
	Failure     int        `json:"failureCount"`
	TemplateID  string     `json:"templateId,omitempty"`
	Error       string     `json:"error,omitempty"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type DispatchJobStore struct {
	db *database.DB
}

func NewDispatchJobStore(db *database.DB) *DispatchJobStore {
	return &DispatchJobStore{db: db}
}

// Save inserts the job or overwrites its mutable columns.
func (s *DispatchJobStore) Save(ctx context.Context, job DispatchJob) error {
	var query string
	if s.db.Dialect == database.MySQL {
		query = `
			INSERT INTO dispatch_jobs (id, state, total, success, failure, template_id, error, scheduled_at, started_at, finished_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON DUPLICATE KEY UPDATE
			    state = VALUES(state), success = VALUES(success), failure = VALUES(failure),
			    error = VALUES(error), started_at = VALUES(started_at), finished_at = VALUES(finished_at)
		`
	} else {
		query = `
			INSERT INTO dispatch_jobs (id, state, total, success, failure, template_id, error, scheduled_at, started_at, finished_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
			    state = excluded.state, success = excluded.success, failure = excluded.failure,
			    error = excluded.error, started_at = excluded.started_at, finished_at = excluded.finished_at
		`
	}

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.State,
		job.Total,
		job.Success,
		job.Failure,
		nullString(job.TemplateID),
		nullString(job.Error),
		job.ScheduledAt.UTC(),
		nullTime(job.StartedAt),
		nullTime(job.FinishedAt),
		job.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save dispatch job %s: %w", job.ID, err)
	}
	return nil
}

// Recent returns up to limit jobs, newest first.
func (s *DispatchJobStore) Recent(ctx context.Context, limit int) ([]DispatchJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, state, total, success, failure, template_id, error, scheduled_at, started_at, finished_at, created_at
		FROM dispatch_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatch jobs: %w", err)
	}
	defer rows.Close()

	jobs := []DispatchJob{}
	for rows.Next() {
		var (
			j                   DispatchJob
			templateID, errText sql.NullString
			started, finished   sql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.State, &j.Total, &j.Success, &j.Failure, &templateID, &errText,
			&j.ScheduledAt, &started, &finished, &j.CreatedAt); err != nil {
			return nil, err
		}
		j.TemplateID = templateID.String
		j.Error = errText.String
		if started.Valid {
			j.StartedAt = &started.Time
		}
		if finished.Valid {
			j.FinishedAt = &finished.Time
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
