package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
)

// PublishJobType tags queue jobs carrying a *models.TimetablePublication.
const PublishJobType = "timetable.publish"

// Publication outcomes recorded by MetricsService.
const (
	PublicationStored   = "stored"
	PublicationFailed   = "failed"
	PublicationDropped  = "dropped"
	PublicationRejected = "rejected"
)

type publicationStore interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	CreateGeneration(ctx context.Context, exec sqlx.ExtContext, generation *models.TimetableGeneration) error
	CreateViews(ctx context.Context, exec sqlx.ExtContext, views []models.TimetableView) error
}

// TimetablePublisher stores finished generations and their views in one transaction.
type TimetablePublisher struct {
	store   publicationStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewTimetablePublisher constructs a publisher worker.
func NewTimetablePublisher(store publicationStore, metrics *MetricsService, logger *zap.Logger) *TimetablePublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetablePublisher{store: store, metrics: metrics, logger: logger}
}

// Handle processes a queue job. Inserts are idempotent so a retried job never duplicates rows.
func (p *TimetablePublisher) Handle(ctx context.Context, job jobs.Job) (err error) {
	publication, ok := job.Payload.(*models.TimetablePublication)
	if !ok || publication == nil {
		p.metrics.RecordPublication(PublicationRejected)
		p.logger.Error("unexpected publication payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	start := time.Now()
	tx, err := p.store.BeginTxx(ctx, nil)
	if err != nil {
		p.metrics.RecordPublication(PublicationFailed)
		return fmt.Errorf("begin publication %s: %w", job.ID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			p.metrics.RecordPublication(PublicationFailed)
		}
	}()

	if err = p.store.CreateGeneration(ctx, tx, &publication.Generation); err != nil {
		return fmt.Errorf("store generation %s: %w", job.ID, err)
	}
	for i := range publication.Views {
		publication.Views[i].GenerationID = publication.Generation.ID
	}
	if err = p.store.CreateViews(ctx, tx, publication.Views); err != nil {
		return fmt.Errorf("store views of %s: %w", job.ID, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit publication %s: %w", job.ID, err)
	}

	p.metrics.ObserveDBQuery("timetable_publish", time.Since(start))
	p.metrics.RecordPublication(PublicationStored)
	p.logger.Info("timetable published",
		zap.String("generation_id", publication.Generation.ID),
		zap.String("kind", string(publication.Generation.Kind)),
		zap.Int("views", len(publication.Views)),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}
