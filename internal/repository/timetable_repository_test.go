package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*TimetableRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTimetableRepository(sqlx.NewDb(db, "sqlmock")), mock
}

var viewColumns = []string{"id", "generation_id", "audience", "year", "section", "teacher", "table_data", "created_at"}

func TestTimetableRepositoryCreateGeneration(t *testing.T) {
	repo, mock := newTimetableRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_generations")).
		WithArgs(sqlmock.AnyArg(), string(models.TimetableKindCore), "abc123", sqlmock.AnyArg(), sqlmock.AnyArg(), 12, 3, int64(40), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	generation := &models.TimetableGeneration{
		Kind:        models.TimetableKindCore,
		RequestHash: "abc123",
		Units:       12,
		Backtracks:  3,
		DurationMS:  40,
	}
	require.NoError(t, repo.CreateGeneration(context.Background(), nil, generation))
	assert.NotEmpty(t, generation.ID)
	assert.False(t, generation.CreatedAt.IsZero())
	assert.Equal(t, types.JSONText(`{}`), generation.Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateGenerationRequiresHash(t *testing.T) {
	repo, _ := newTimetableRepoMock(t)

	err := repo.CreateGeneration(context.Background(), nil, &models.TimetableGeneration{Kind: models.TimetableKindLab})
	assert.Error(t, err)
	assert.Error(t, repo.CreateGeneration(context.Background(), nil, nil))
}

func TestTimetableRepositoryCreateViewsInTransaction(t *testing.T) {
	repo, mock := newTimetableRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_views")).
		WithArgs(sqlmock.AnyArg(), "gen-1", string(models.TimetableAudienceStudent), 1, "A", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_views")).
		WithArgs(sqlmock.AnyArg(), "gen-1", string(models.TimetableAudienceTeacher), 0, "", "Anand", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := repo.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	views := []models.TimetableView{
		{GenerationID: "gen-1", Audience: models.TimetableAudienceStudent, Year: 1, Section: "A"},
		{GenerationID: "gen-1", Audience: models.TimetableAudienceTeacher, Teacher: "Anand"},
	}
	require.NoError(t, repo.CreateViews(context.Background(), tx, views))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, views[0].ID)
	assert.Equal(t, types.JSONText(`[]`), views[1].TableData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateViewsRejectsOrphans(t *testing.T) {
	repo, mock := newTimetableRepoMock(t)

	err := repo.CreateViews(context.Background(), nil, []models.TimetableView{{Audience: models.TimetableAudienceStudent}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindGeneration(t *testing.T) {
	repo, mock := newTimetableRepoMock(t)

	rows := sqlmock.NewRows([]string{"id", "kind", "request_hash", "request", "result", "units", "backtracks", "duration_ms", "created_by", "created_at"}).
		AddRow("gen-1", "LAB", "hash", []byte(`{}`), []byte(`{"rows":[]}`), 4, 0, 2, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_generations WHERE id = $1")).
		WithArgs("gen-1").
		WillReturnRows(rows)

	generation, err := repo.FindGeneration(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimetableKindLab, generation.Kind)
	assert.Nil(t, generation.CreatedBy)
	assert.JSONEq(t, `{"rows":[]}`, generation.Result.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindGenerationNotFound(t *testing.T) {
	repo, mock := newTimetableRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_generations WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindGeneration(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryLatestStudentView(t *testing.T) {
	repo, mock := newTimetableRepoMock(t)

	rows := sqlmock.NewRows(viewColumns).
		AddRow("view-1", "gen-1", "STUDENT", 2, "B", "", []byte(`[{"Day":"Monday"}]`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_views WHERE audience = $1 AND year = $2 AND UPPER(section) = UPPER($3)")).
		WithArgs(string(models.TimetableAudienceStudent), 2, "b").
		WillReturnRows(rows)

	view, err := repo.LatestStudentView(context.Background(), 2, "b")
	require.NoError(t, err)
	assert.Equal(t, "B", view.Section)
	assert.Equal(t, "gen-1", view.GenerationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListTeacherViews(t *testing.T) {
	repo, mock := newTimetableRepoMock(t)

	rows := sqlmock.NewRows(viewColumns).
		AddRow("view-2", "gen-2", "TEACHER", 0, "", "Anand", []byte(`[]`), time.Now()).
		AddRow("view-1", "gen-1", "TEACHER", 0, "", "Anand", []byte(`[]`), time.Now().Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_views WHERE audience = $1 AND LOWER(teacher) = LOWER($2)")).
		WithArgs(string(models.TimetableAudienceTeacher), "anand", 20).
		WillReturnRows(rows)

	views, err := repo.ListTeacherViews(context.Background(), "anand", 0)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "view-2", views[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
