package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/engine"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/service"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

func newOfflineService() *service.TimetableService {
	return service.NewTimetableService(nil, nil, nil, nil, nil, nil, service.TimetableServiceConfig{
		Settings: service.EngineSettings{Grid: engine.DefaultGridConfig(), Options: engine.DefaultOptions()},
	})
}

func TestGenerateLabs(t *testing.T) {
	body := `{"years_sections":{"1":["B"]},"labs_per_sections":{"B":4},"subjects_per_year":{"1":["Java","Python"]}}`
	var out bytes.Buffer

	err := generate(context.Background(), newOfflineService(), models.TimetableKindLab, strings.NewReader(body), &out)
	require.NoError(t, err)

	var resp dto.LabTimetableResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Len(t, resp.Rows, 4)
	assert.NotEmpty(t, resp.GenerationID)
}

func TestGenerateCoreReportsInvalidDemand(t *testing.T) {
	body := `{"years_sections":{"1":["A"]},"subject_input":{"1":["Java"]},"hours_input":{"1":3}}`
	var out bytes.Buffer

	err := generate(context.Background(), newOfflineService(), models.TimetableKindCore, strings.NewReader(body), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidDemand)
	assert.Zero(t, out.Len())
}

func TestGenerateRejectsBadJSON(t *testing.T) {
	err := generate(context.Background(), newOfflineService(), models.TimetableKindCore, strings.NewReader(`{`), &bytes.Buffer{})
	assert.ErrorContains(t, err, "decode core request")
}

func TestPurgeKinds(t *testing.T) {
	kinds, err := purgeKinds("all")
	require.NoError(t, err)
	assert.Equal(t, []models.TimetableKind{models.TimetableKindCore, models.TimetableKindLab}, kinds)

	kinds, err = purgeKinds("lab")
	require.NoError(t, err)
	assert.Equal(t, []models.TimetableKind{models.TimetableKindLab}, kinds)

	_, err = purgeKinds("exams")
	assert.Error(t, err)
}
