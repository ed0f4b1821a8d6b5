package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/middleware"
	"github.com/noah-isme/college-timetable-api/internal/service"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type timetableGenerator interface {
	GenerateCore(ctx context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.GenerateTimetableResponse, bool, error)
	GenerateLabs(ctx context.Context, req dto.LabTimetableRequest, actor string) (*dto.LabTimetableResponse, bool, error)
	GetGeneration(ctx context.Context, id string) (*dto.TimetableGenerationResponse, error)
	StudentTimetable(ctx context.Context, year int, section string) (*dto.TimetableViewResponse, error)
	TeacherTimetables(ctx context.Context, teacher string) ([]dto.TimetableViewResponse, error)
}

// TimetableHandler exposes timetable generation and lookup endpoints.
type TimetableHandler struct {
	service timetableGenerator
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Generate godoc
// @Summary Generate core timetables
// @Description Builds conflict-free section and teacher timetables. Identical requests are served from cache.
// @Tags Timetables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateTimetableRequest true "Core generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, malformed(err))
		return
	}
	resp, cacheHit, err := h.service.GenerateCore(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, resp, middleware.ExtractMeta(c))
}

// GenerateLabs godoc
// @Summary Generate lab rotation
// @Description Schedules lab rounds per section, rotating batches across lab subjects.
// @Tags Timetables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.LabTimetableRequest true "Lab generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/labs/generate [post]
func (h *TimetableHandler) GenerateLabs(c *gin.Context) {
	var req dto.LabTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, malformed(err))
		return
	}
	resp, cacheHit, err := h.service.GenerateLabs(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, resp, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get stored generation
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param id path string true "Generation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	resp, err := h.service.GetGeneration(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, middleware.ExtractMeta(c))
}

// Teacher godoc
// @Summary List stored timetables of a teacher
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param teacher query string true "Teacher name"
// @Success 200 {object} response.Envelope
// @Router /timetables/teacher [get]
func (h *TimetableHandler) Teacher(c *gin.Context) {
	views, err := h.service.TeacherTimetables(c.Request.Context(), c.Query("teacher"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, middleware.ExtractMeta(c))
}

// Student godoc
// @Summary Get the latest stored timetable of a section
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param year query int true "Year"
// @Param section query string true "Section"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/student [get]
func (h *TimetableHandler) Student(c *gin.Context) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a number"))
		return
	}
	view, err := h.service.StudentTimetable(c.Request.Context(), year, c.Query("section"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, middleware.ExtractMeta(c))
}

// LegacyGenerate godoc
// @Summary Generate core timetables (front-end shape)
// @Description Returns bare {student_timetable, teacher_timetable}. A body with only {year, section} returns the stored section timetable.
// @Tags Legacy
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Core generation payload"
// @Success 200 {object} dto.LegacyTimetableResponse
// @Failure 400 {object} response.Failure
// @Router /generate_timetable [post]
func (h *TimetableHandler) LegacyGenerate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RawError(c, malformed(err))
		return
	}

	if req.IsLookup() {
		view, err := h.service.StudentTimetable(c.Request.Context(), req.Year.Int(), req.Section)
		if err != nil {
			response.RawError(c, err)
			return
		}
		response.Raw(c, http.StatusOK, dto.SectionTimetable{Year: view.Year, Section: view.Section, TableData: view.TableData})
		return
	}

	resp, _, err := h.service.GenerateCore(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.RawError(c, err)
		return
	}
	response.Raw(c, http.StatusOK, dto.LegacyTimetableResponse{
		StudentTimetable: resp.StudentTimetable,
		TeacherTimetable: resp.TeacherTimetable,
	})
}

// LegacyGenerateLabs godoc
// @Summary Generate lab rotation (front-end shape)
// @Tags Legacy
// @Accept json
// @Produce json
// @Param payload body dto.LabTimetableRequest true "Lab generation payload"
// @Success 200 {array} dto.LabSummaryRow
// @Failure 400 {object} response.Failure
// @Router /generate_lab_timetable [post]
func (h *TimetableHandler) LegacyGenerateLabs(c *gin.Context) {
	var req dto.LabTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RawError(c, malformed(err))
		return
	}
	resp, _, err := h.service.GenerateLabs(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.RawError(c, err)
		return
	}
	rows := resp.Rows
	if rows == nil {
		rows = []dto.LabSummaryRow{}
	}
	response.Raw(c, http.StatusOK, rows)
}

// LegacyTeacher godoc
// @Summary Stored teacher timetables (front-end shape)
// @Tags Legacy
// @Produce json
// @Param teacher query string true "Teacher name"
// @Success 200 {array} dto.LegacyTeacherRecord
// @Failure 400 {object} response.Failure
// @Router /get_timetable_teacher [get]
func (h *TimetableHandler) LegacyTeacher(c *gin.Context) {
	views, err := h.service.TeacherTimetables(c.Request.Context(), c.Query("teacher"))
	if err != nil {
		response.RawError(c, err)
		return
	}
	records := make([]dto.LegacyTeacherRecord, 0, len(views))
	for _, view := range views {
		encoded, err := json.Marshal(dto.TeacherTimetable{Teacher: view.Teacher, TableData: view.TableData})
		if err != nil {
			response.RawError(c, err)
			return
		}
		records = append(records, dto.LegacyTeacherRecord{ID: view.ID, Timetable: string(encoded)})
	}
	response.Raw(c, http.StatusOK, records)
}

func malformed(err error) error {
	return appErrors.Wrap(err, appErrors.ErrMalformedRequest.Code, appErrors.ErrMalformedRequest.Status, appErrors.ErrMalformedRequest.Message)
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
