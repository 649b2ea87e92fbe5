package dto

import "github.com/noah-isme/routine-builder/internal/models"

// SelectSubjectRequest sets or clears (empty code) the subject on a cell.
type SelectSubjectRequest struct {
	SubjectCode string `json:"subject_code"`
}

// SelectTeacherRequest assigns a teacher to a cell that already carries a subject.
type SelectTeacherRequest struct {
	TeacherID string `json:"teacher_id" binding:"required"`
}

// AvailabilityQuery captures the query string of the availability endpoint.
type AvailabilityQuery struct {
	TeacherID string `form:"teacher_id" binding:"required"`
	Day       *int   `form:"day" binding:"required"`
	Slot      *int   `form:"slot" binding:"required"`
	RoutineID int    `form:"routine_id"`
}

// CellResponse wraps a mutated cell with the conflict warning raised in advisory mode.
type CellResponse struct {
	Cell    *models.CellView `json:"cell"`
	Warning string           `json:"warning,omitempty"`
}
