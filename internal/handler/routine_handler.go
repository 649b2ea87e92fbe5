package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/routine-builder/internal/dto"
	"github.com/noah-isme/routine-builder/internal/models"
	"github.com/noah-isme/routine-builder/internal/service"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
	"github.com/noah-isme/routine-builder/pkg/export"
	"github.com/noah-isme/routine-builder/pkg/response"
)

type scheduleController interface {
	Layout() models.Layout
	Routines() []models.RoutineSummary
	AddRoutine() models.RoutineSummary
	Routine(id int) (*models.RoutineView, bool)
	DeleteRoutine(id int) bool
	Conflicts() []models.Conflict
	SelectSubject(id int, key models.TimeKey, subjectCode string) (*models.CellView, error)
	SelectTeacher(id int, key models.TimeKey, teacherID string) (*models.CellView, error)
	ClearCell(id int, key models.TimeKey) (*models.CellView, error)
	GetCell(id int, key models.TimeKey) (*models.CellView, error)
	Candidates(id int, key models.TimeKey) (*models.TeacherCandidates, error)
	CheckAvailability(teacherID string, key models.TimeKey, routineID int) models.Availability
}

type scheduleExporter interface {
	Render(ctx context.Context, format export.Format) (*service.ExportFile, error)
	Archive(ctx context.Context, format export.Format) (*service.ExportLink, error)
	OpenArchive(token string) (*os.File, string, error)
}

// RoutineHandler exposes the routine grid, cell and export endpoints.
type RoutineHandler struct {
	schedule scheduleController
	exports  scheduleExporter
}

// NewRoutineHandler constructs a routine handler.
func NewRoutineHandler(schedule *service.ScheduleController, exports *service.ExportService) *RoutineHandler {
	return &RoutineHandler{schedule: schedule, exports: exports}
}

// Layout godoc
// @Summary Grid layout shared by every routine
// @Tags Routines
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /layout [get]
func (h *RoutineHandler) Layout(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.schedule.Layout(), nil)
}

// List godoc
// @Summary List open routines with display numbers
// @Tags Routines
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /routines [get]
func (h *RoutineHandler) List(c *gin.Context) {
	routines := h.schedule.Routines()
	response.JSON(c, http.StatusOK, routines, nil, map[string]interface{}{"total": len(routines)})
}

// Create godoc
// @Summary Add an empty routine
// @Tags Routines
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /routines [post]
func (h *RoutineHandler) Create(c *gin.Context) {
	response.Created(c, h.schedule.AddRoutine())
}

// Get godoc
// @Summary Full grid of one routine
// @Tags Routines
// @Produce json
// @Param id path int true "Routine ID"
// @Success 200 {object} response.Envelope
// @Router /routines/{id} [get]
func (h *RoutineHandler) Get(c *gin.Context) {
	id, err := routineIDFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, ok := h.schedule.Routine(id)
	if !ok {
		response.Error(c, errRoutineNotFound)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Delete a routine and release its teachers
// @Tags Routines
// @Param id path int true "Routine ID"
// @Success 204
// @Router /routines/{id} [delete]
func (h *RoutineHandler) Delete(c *gin.Context) {
	id, err := routineIDFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !h.schedule.DeleteRoutine(id) {
		response.Error(c, errRoutineNotFound)
		return
	}
	response.NoContent(c)
}

// Conflicts godoc
// @Summary Teachers booked in more than one routine at the same time
// @Tags Routines
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /routines/conflicts [get]
func (h *RoutineHandler) Conflicts(c *gin.Context) {
	conflicts := h.schedule.Conflicts()
	response.JSON(c, http.StatusOK, conflicts, nil, map[string]interface{}{"total": len(conflicts)})
}

// GetCell godoc
// @Summary Read one cell
// @Tags Cells
// @Produce json
// @Param id path int true "Routine ID"
// @Param day path int true "Day index"
// @Param slot path int true "Time slot index"
// @Success 200 {object} response.Envelope
// @Router /routines/{id}/cells/{day}/{slot} [get]
func (h *RoutineHandler) GetCell(c *gin.Context) {
	id, key, err := cellFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	cell, err := h.schedule.GetCell(id, key)
	h.respondCell(c, cell, err)
}

// SelectSubject godoc
// @Summary Set the subject of a cell
// @Description Drops any teacher on the cell and loads the subject's teachers in the background. An empty code clears the cell.
// @Tags Cells
// @Accept json
// @Produce json
// @Param id path int true "Routine ID"
// @Param day path int true "Day index"
// @Param slot path int true "Time slot index"
// @Param payload body dto.SelectSubjectRequest true "Subject"
// @Success 200 {object} response.Envelope
// @Router /routines/{id}/cells/{day}/{slot}/subject [put]
func (h *RoutineHandler) SelectSubject(c *gin.Context) {
	id, key, err := cellFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SelectSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cell, err := h.schedule.SelectSubject(id, key, req.SubjectCode)
	h.respondCell(c, cell, err)
}

// SelectTeacher godoc
// @Summary Assign a teacher to a cell
// @Description In advisory mode a double booking is accepted and reported in the warning field.
// @Tags Cells
// @Accept json
// @Produce json
// @Param id path int true "Routine ID"
// @Param day path int true "Day index"
// @Param slot path int true "Time slot index"
// @Param payload body dto.SelectTeacherRequest true "Teacher"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /routines/{id}/cells/{day}/{slot}/teacher [put]
func (h *RoutineHandler) SelectTeacher(c *gin.Context) {
	id, key, err := cellFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SelectTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cell, err := h.schedule.SelectTeacher(id, key, strings.TrimSpace(req.TeacherID))
	h.respondCell(c, cell, err)
}

// ClearCell godoc
// @Summary Clear subject and teacher of a cell
// @Tags Cells
// @Produce json
// @Param id path int true "Routine ID"
// @Param day path int true "Day index"
// @Param slot path int true "Time slot index"
// @Success 200 {object} response.Envelope
// @Router /routines/{id}/cells/{day}/{slot} [delete]
func (h *RoutineHandler) ClearCell(c *gin.Context) {
	id, key, err := cellFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	cell, err := h.schedule.ClearCell(id, key)
	h.respondCell(c, cell, err)
}

// Candidates godoc
// @Summary Teachers selectable for the subject on a cell
// @Tags Cells
// @Produce json
// @Param id path int true "Routine ID"
// @Param day path int true "Day index"
// @Param slot path int true "Time slot index"
// @Success 200 {object} response.Envelope
// @Router /routines/{id}/cells/{day}/{slot}/candidates [get]
func (h *RoutineHandler) Candidates(c *gin.Context) {
	id, key, err := cellFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	candidates, err := h.schedule.Candidates(id, key)
	if err != nil {
		response.Error(c, err)
		return
	}
	if candidates == nil {
		response.Error(c, errRoutineNotFound)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// Availability godoc
// @Summary Check whether a teacher is free at a time slot
// @Tags Routines
// @Produce json
// @Param teacher_id query string true "Teacher ID"
// @Param day query int true "Day index"
// @Param slot query int true "Time slot index"
// @Param routine_id query int false "Routine asking, never conflicts with itself"
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *RoutineHandler) Availability(c *gin.Context) {
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "teacher_id, day and slot are required"))
		return
	}
	key := models.TimeKey{Day: *query.Day, Slot: *query.Slot}
	if !h.schedule.Layout().Contains(key) {
		response.Error(c, appErrors.ErrCellOutOfRange)
		return
	}
	response.JSON(c, http.StatusOK, h.schedule.CheckAvailability(query.TeacherID, key, query.RoutineID), nil)
}

// Export godoc
// @Summary Download the weekly schedule of every routine
// @Tags Export
// @Produce json,text/csv,application/pdf,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "json, csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /routines/export [get]
func (h *RoutineHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	file, err := h.exports.Render(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, int64(len(file.Body)), bytes.NewReader(file.Body))
}

// Archive godoc
// @Summary Store a rendered schedule and return an expiring download link
// @Tags Export
// @Produce json
// @Param format query string false "json, csv, pdf or xlsx"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /routines/export/archive [post]
func (h *RoutineHandler) Archive(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	link, err := h.exports.Archive(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Download godoc
// @Summary Download an archived schedule
// @Tags Export
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *RoutineHandler) Download(c *gin.Context) {
	file, name, err := h.exports.OpenArchive(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	contentType := export.FormatJSON.ContentType()
	if format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(name), ".")); err == nil {
		contentType = format.ContentType()
	}
	response.Attachment(c, filepath.Base(name), contentType, info.Size(), file)
}

func (h *RoutineHandler) respondCell(c *gin.Context, cell *models.CellView, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if cell == nil {
		response.Error(c, errRoutineNotFound)
		return
	}
	payload := dto.CellResponse{Cell: cell}
	if cell.ConflictingRoutineNumber > 0 {
		payload.Warning = fmt.Sprintf("teacher is already scheduled at this time in Routine %d", cell.ConflictingRoutineNumber)
	}
	response.JSON(c, http.StatusOK, payload, nil)
}
