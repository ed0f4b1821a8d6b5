package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/engine"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/jobs"
)

type timetableStore interface {
	FindGeneration(ctx context.Context, id string) (*models.TimetableGeneration, error)
	LatestStudentView(ctx context.Context, year int, section string) (*models.TimetableView, error)
	ListTeacherViews(ctx context.Context, teacher string, limit int) ([]models.TimetableView, error)
}

type publicationQueue interface {
	TryEnqueue(job jobs.Job) error
}

// TimetableServiceConfig governs generation behaviour.
type TimetableServiceConfig struct {
	Settings      EngineSettings
	MaxConcurrent int
	CacheTTL      time.Duration
}

// TimetableService turns generation requests into conflict-free timetables and serves stored ones.
type TimetableService struct {
	store     timetableStore
	queue     publicationQueue
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	settings  EngineSettings
	slots     *semaphore.Weighted
	cacheTTL  time.Duration
}

// NewTimetableService wires the generation pipeline. store and queue may be nil when persistence is disabled.
func NewTimetableService(
	store timetableStore,
	queue publicationQueue,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if len(cfg.Settings.Grid.Days) == 0 {
		cfg.Settings.Grid = engine.DefaultGridConfig()
	}
	return &TimetableService{
		store:     store,
		queue:     queue,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		settings:  cfg.Settings,
		slots:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cacheTTL:  cfg.CacheTTL,
	}
}

// GenerateCore builds the student and teacher timetables for a core request.
// The boolean reports whether the response came from the cache.
func (s *TimetableService) GenerateCore(ctx context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.GenerateTimetableResponse, bool, error) {
	const kind = models.TimetableKindCore
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}

	grid, gridCfg, err := s.grid(req.Grid)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}
	in, err := coreInputFromRequest(req)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}
	hash, err := requestHash(kind, gridCfg, s.settings.Options, in)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}

	key := GenerationKey(kind, hash)
	var cached dto.GenerateTimetableResponse
	if s.lookup(ctx, key, &cached) {
		s.metrics.ObserveGeneration(kind, OutcomeCached, 0, 0)
		return &cached, true, nil
	}

	plan, err := engine.BuildCore(grid, in, s.settings.Options)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}
	result, err := s.solve(ctx, kind, grid, plan)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}

	students := engine.AssembleSections(grid, plan.Sections, result.Assignments)
	teachers := engine.AssembleTeachers(grid, result.Assignments)
	resp := &dto.GenerateTimetableResponse{
		GenerationID:     uuid.NewString(),
		StudentTimetable: sectionTimetables(students),
		TeacherTimetable: teacherTimetables(teachers),
		Assignments:      assignmentResponses(grid, result.Assignments),
		Stats:            stats(plan, result),
	}

	s.remember(ctx, key, resp)
	s.publish(kind, hash, req, resp, resp.Stats, actor, coreViews(resp))
	return resp, false, nil
}

// GenerateLabs builds the lab rotation rows for a lab request.
func (s *TimetableService) GenerateLabs(ctx context.Context, req dto.LabTimetableRequest, actor string) (*dto.LabTimetableResponse, bool, error) {
	const kind = models.TimetableKindLab
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lab timetable payload")
	}

	grid, gridCfg, err := s.grid(req.Grid)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}
	in, err := labInputFromRequest(req)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}
	hash, err := requestHash(kind, gridCfg, s.settings.Options, in)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}

	key := GenerationKey(kind, hash)
	var cached dto.LabTimetableResponse
	if s.lookup(ctx, key, &cached) {
		s.metrics.ObserveGeneration(kind, OutcomeCached, 0, 0)
		return &cached, true, nil
	}

	plan, err := engine.BuildLabs(grid, in, s.settings.Options)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}
	result, err := s.solve(ctx, kind, grid, plan)
	if err != nil {
		return nil, false, s.fail(kind, err)
	}

	resp := &dto.LabTimetableResponse{
		GenerationID: uuid.NewString(),
		Rows:         labSummaryRows(engine.LabRows(grid, result.Assignments)),
		Assignments:  assignmentResponses(grid, result.Assignments),
		Stats:        stats(plan, result),
	}

	s.remember(ctx, key, resp)
	s.publish(kind, hash, req, resp, resp.Stats, actor, nil)
	return resp, false, nil
}

// GetGeneration returns a stored generation record.
func (s *TimetableService) GetGeneration(ctx context.Context, id string) (*dto.TimetableGenerationResponse, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable storage is disabled")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable generation not found")
	}
	generation, err := s.store.FindGeneration(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "timetable generation not found", "failed to load timetable generation")
	}
	resp := &dto.TimetableGenerationResponse{
		ID:          generation.ID,
		Kind:        string(generation.Kind),
		RequestHash: generation.RequestHash,
		Request:     json.RawMessage(generation.Request),
		Result:      json.RawMessage(generation.Result),
		Units:       generation.Units,
		Backtracks:  generation.Backtracks,
		DurationMS:  generation.DurationMS,
		CreatedAt:   generation.CreatedAt.UTC().Format(time.RFC3339),
	}
	if generation.CreatedBy != nil {
		resp.CreatedBy = *generation.CreatedBy
	}
	return resp, nil
}

// StudentTimetable returns the latest stored table of a section.
func (s *TimetableService) StudentTimetable(ctx context.Context, year int, section string) (*dto.TimetableViewResponse, error) {
	section = strings.TrimSpace(section)
	if year <= 0 || section == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year and section are required")
	}
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable storage is disabled")
	}
	view, err := s.store.LatestStudentView(ctx, year, section)
	if err != nil {
		return nil, s.storeError(err, fmt.Sprintf("no timetable stored for year %d section %s", year, section), "failed to load student timetable")
	}
	resp, err := viewResponse(*view)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored timetable is corrupt")
	}
	return resp, nil
}

// TeacherTimetables returns the stored tables of a teacher, newest first.
func (s *TimetableService) TeacherTimetables(ctx context.Context, teacher string) ([]dto.TimetableViewResponse, error) {
	teacher = strings.TrimSpace(teacher)
	if teacher == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is required")
	}
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable storage is disabled")
	}
	views, err := s.store.ListTeacherViews(ctx, teacher, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher timetables")
	}
	responses := make([]dto.TimetableViewResponse, 0, len(views))
	for _, view := range views {
		resp, err := viewResponse(view)
		if err != nil {
			s.logger.Warn("skipping corrupt teacher view", zap.String("view_id", view.ID), zap.Error(err))
			continue
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

func (s *TimetableService) grid(req *dto.GridRequest) (*engine.Grid, engine.GridConfig, error) {
	cfg, err := gridConfig(s.settings.Grid, req)
	if err != nil {
		return nil, cfg, err
	}
	grid, err := engine.NewGrid(cfg)
	return grid, cfg, err
}

// solve runs one Scheduler while holding a solver slot.
func (s *TimetableService) solve(ctx context.Context, kind models.TimetableKind, grid *engine.Grid, plan *engine.Plan) (*engine.Result, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBusy.Code, appErrors.ErrBusy.Status, appErrors.ErrBusy.Message)
	}
	defer s.slots.Release(1)
	s.metrics.GenerationStarted()
	defer s.metrics.GenerationFinished()

	result, err := engine.NewScheduler(grid, s.settings.Options).Solve(plan)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveGeneration(kind, OutcomeSuccess, result.Elapsed, result.Backtracks)
	s.logger.Info("timetable generated",
		zap.String("kind", string(kind)),
		zap.Int("demands", len(plan.Demands)),
		zap.Int("units", result.Units),
		zap.Int("assignments", len(result.Assignments)),
		zap.Int("backtracks", result.Backtracks),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// fail records the outcome of a failed generation and maps engine errors to API errors.
func (s *TimetableService) fail(kind models.TimetableKind, err error) error {
	var unschedulable *engine.UnschedulableError
	switch {
	case errors.Is(err, engine.ErrInvalidDemand):
		s.metrics.ObserveGeneration(kind, OutcomeInvalid, 0, 0)
		s.logger.Warn("timetable request rejected", zap.String("kind", string(kind)), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInvalidDemand.Code, appErrors.ErrInvalidDemand.Status, err.Error())
	case errors.As(err, &unschedulable):
		s.metrics.ObserveGeneration(kind, OutcomeUnschedulable, 0, unschedulable.Backtracks)
		s.logger.Warn("timetable unschedulable",
			zap.String("kind", string(kind)),
			zap.String("demand", unschedulable.Demand.String()),
			zap.Int("candidates", unschedulable.Candidates),
			zap.Int("backtracks", unschedulable.Backtracks),
			zap.String("reason", unschedulable.Reason),
		)
		return appErrors.Wrap(err, appErrors.ErrUnschedulable.Code, appErrors.ErrUnschedulable.Status, err.Error())
	case engine.IsDoubleBooking(err):
		s.metrics.ObserveGeneration(kind, OutcomeError, 0, 0)
		s.logger.Error("scheduler produced a double booking", zap.String("kind", string(kind)), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}

	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		outcome := OutcomeError
		if errors.Is(err, appErrors.ErrInvalidDemand) {
			outcome = OutcomeInvalid
		}
		s.metrics.ObserveGeneration(kind, outcome, 0, 0)
		return appErr
	}
	s.metrics.ObserveGeneration(kind, OutcomeError, 0, 0)
	s.logger.Error("timetable generation failed", zap.String("kind", string(kind)), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
}

// lookup reads a cached response. Cache failures degrade to a miss.
func (s *TimetableService) lookup(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		return false
	}
	return hit
}

func (s *TimetableService) remember(ctx context.Context, key string, value interface{}) {
	_ = s.cache.Set(ctx, key, value, s.cacheTTL)
}

func stats(plan *engine.Plan, result *engine.Result) dto.GenerationStats {
	return dto.GenerationStats{
		Demands:     len(plan.Demands),
		Units:       result.Units,
		Assignments: len(result.Assignments),
		Backtracks:  result.Backtracks,
		ElapsedMS:   result.Elapsed.Milliseconds(),
	}
}

// requestHash identifies a generation by everything that determines its result.
func requestHash(kind models.TimetableKind, grid engine.GridConfig, opts engine.Options, input interface{}) (string, error) {
	payload, err := json.Marshal(struct {
		Kind    models.TimetableKind `json:"kind"`
		Grid    engine.GridConfig    `json:"grid"`
		Options engine.Options       `json:"options"`
		Input   interface{}          `json:"input"`
	}{kind, grid, opts, input})
	if err != nil {
		return "", fmt.Errorf("hash timetable request: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// publish hands a finished generation to the publisher queue. A full queue drops the publication.
func (s *TimetableService) publish(kind models.TimetableKind, hash string, req, resp interface{}, st dto.GenerationStats, actor string, views []models.TimetableView) {
	if s.queue == nil {
		return
	}
	request, err := json.Marshal(req)
	if err != nil {
		s.logger.Warn("encode generation request", zap.Error(err))
		return
	}
	result, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("encode generation result", zap.Error(err))
		return
	}

	var generationID string
	switch r := resp.(type) {
	case *dto.GenerateTimetableResponse:
		generationID = r.GenerationID
	case *dto.LabTimetableResponse:
		generationID = r.GenerationID
	}
	publication := &models.TimetablePublication{
		Generation: models.TimetableGeneration{
			ID:          generationID,
			Kind:        kind,
			RequestHash: hash,
			Request:     types.JSONText(request),
			Result:      types.JSONText(result),
			Units:       st.Units,
			Backtracks:  st.Backtracks,
			DurationMS:  st.ElapsedMS,
		},
		Views: views,
	}
	if actor != "" {
		publication.Generation.CreatedBy = &actor
	}

	job := jobs.Job{ID: generationID, Type: PublishJobType, Payload: publication}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.RecordPublication(PublicationDropped)
		s.logger.Warn("timetable publication dropped", zap.String("generation_id", generationID), zap.Error(err))
	}
}

// coreViews renders one stored view per section and per teacher.
func coreViews(resp *dto.GenerateTimetableResponse) []models.TimetableView {
	views := make([]models.TimetableView, 0, len(resp.StudentTimetable)+len(resp.TeacherTimetable))
	for _, table := range resp.StudentTimetable {
		data, err := json.Marshal(table.TableData)
		if err != nil {
			continue
		}
		views = append(views, models.TimetableView{
			ID:           uuid.NewString(),
			GenerationID: resp.GenerationID,
			Audience:     models.TimetableAudienceStudent,
			Year:         table.Year,
			Section:      table.Section,
			TableData:    types.JSONText(data),
		})
	}
	for _, table := range resp.TeacherTimetable {
		data, err := json.Marshal(table.TableData)
		if err != nil {
			continue
		}
		views = append(views, models.TimetableView{
			ID:           uuid.NewString(),
			GenerationID: resp.GenerationID,
			Audience:     models.TimetableAudienceTeacher,
			Teacher:      table.Teacher,
			TableData:    types.JSONText(data),
		})
	}
	return views
}

func viewResponse(view models.TimetableView) (*dto.TimetableViewResponse, error) {
	var rows []dto.TableRow
	if len(view.TableData) > 0 {
		if err := json.Unmarshal(view.TableData, &rows); err != nil {
			return nil, err
		}
	}
	if rows == nil {
		rows = []dto.TableRow{}
	}
	return &dto.TimetableViewResponse{
		ID:           view.ID,
		GenerationID: view.GenerationID,
		Audience:     string(view.Audience),
		Year:         view.Year,
		Section:      view.Section,
		Teacher:      view.Teacher,
		TableData:    rows,
		CreatedAt:    view.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *TimetableService) storeError(err error, notFound, failed string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	s.logger.Error(failed, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, failed)
}
