package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

const defaultTeacherViewLimit = 20

// TimetableRepository persists generations and their rendered views.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BeginTxx starts a transaction for publishing a generation with its views.
func (r *TimetableRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

// Ping checks database connectivity for readiness probes.
func (r *TimetableRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateGeneration inserts a generation record. Existing ids are ignored so retried publications stay idempotent.
func (r *TimetableRepository) CreateGeneration(ctx context.Context, exec sqlx.ExtContext, generation *models.TimetableGeneration) error {
	if generation == nil {
		return fmt.Errorf("generation payload is nil")
	}
	if generation.Kind == "" || generation.RequestHash == "" {
		return fmt.Errorf("kind and request_hash are required")
	}
	if generation.ID == "" {
		generation.ID = uuid.NewString()
	}
	if len(generation.Request) == 0 {
		generation.Request = types.JSONText(`{}`)
	}
	if len(generation.Result) == 0 {
		generation.Result = types.JSONText(`{}`)
	}
	if generation.CreatedAt.IsZero() {
		generation.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO timetable_generations (id, kind, request_hash, request, result, units, backtracks, duration_ms, created_by, created_at)
VALUES (:id, :kind, :request_hash, :request, :result, :units, :backtracks, :duration_ms, :created_by, :created_at)
ON CONFLICT (id) DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, generation); err != nil {
		return fmt.Errorf("insert timetable generation: %w", err)
	}
	return nil
}

// CreateViews inserts rendered tables belonging to one generation.
func (r *TimetableRepository) CreateViews(ctx context.Context, exec sqlx.ExtContext, views []models.TimetableView) error {
	if len(views) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_views (id, generation_id, audience, year, section, teacher, table_data, created_at)
VALUES (:id, :generation_id, :audience, :year, :section, :teacher, :table_data, :created_at)
ON CONFLICT (id) DO NOTHING`

	for i := range views {
		view := &views[i]
		if view.GenerationID == "" {
			return fmt.Errorf("view %d has no generation_id", i)
		}
		if view.ID == "" {
			view.ID = uuid.NewString()
		}
		if len(view.TableData) == 0 {
			view.TableData = types.JSONText(`[]`)
		}
		if view.CreatedAt.IsZero() {
			view.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, view); err != nil {
			return fmt.Errorf("insert timetable view: %w", err)
		}
	}
	return nil
}

// FindGeneration loads a generation by id.
func (r *TimetableRepository) FindGeneration(ctx context.Context, id string) (*models.TimetableGeneration, error) {
	const query = `SELECT id, kind, request_hash, request, result, units, backtracks, duration_ms, created_by, created_at
FROM timetable_generations WHERE id = $1`
	var generation models.TimetableGeneration
	if err := r.db.GetContext(ctx, &generation, query, id); err != nil {
		return nil, err
	}
	return &generation, nil
}

// LatestStudentView returns the most recent table stored for a section.
func (r *TimetableRepository) LatestStudentView(ctx context.Context, year int, section string) (*models.TimetableView, error) {
	const query = `SELECT id, generation_id, audience, year, section, teacher, table_data, created_at
FROM timetable_views WHERE audience = $1 AND year = $2 AND UPPER(section) = UPPER($3)
ORDER BY created_at DESC LIMIT 1`
	var view models.TimetableView
	if err := r.db.GetContext(ctx, &view, query, models.TimetableAudienceStudent, year, section); err != nil {
		return nil, err
	}
	return &view, nil
}

// ListTeacherViews returns stored tables for a teacher, newest first.
func (r *TimetableRepository) ListTeacherViews(ctx context.Context, teacher string, limit int) ([]models.TimetableView, error) {
	if limit <= 0 {
		limit = defaultTeacherViewLimit
	}
	const query = `SELECT id, generation_id, audience, year, section, teacher, table_data, created_at
FROM timetable_views WHERE audience = $1 AND LOWER(teacher) = LOWER($2)
ORDER BY created_at DESC LIMIT $3`
	var views []models.TimetableView
	if err := r.db.SelectContext(ctx, &views, query, models.TimetableAudienceTeacher, teacher, limit); err != nil {
		return nil, fmt.Errorf("list teacher timetable views: %w", err)
	}
	return views, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
