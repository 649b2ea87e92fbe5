package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/routine-builder/internal/models"
	"github.com/noah-isme/routine-builder/internal/service"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
	"github.com/noah-isme/routine-builder/pkg/importer"
	"github.com/noah-isme/routine-builder/pkg/response"
)

// multipartOverhead leaves room for boundaries and part headers around the file.
const multipartOverhead = 64 << 10

type catalogService interface {
	ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error)
	GetSubject(ctx context.Context, code string) (*models.Subject, error)
	UpsertSubject(ctx context.Context, req service.UpsertSubjectRequest) (*models.Subject, error)
	ListTeachers(ctx context.Context, code string) ([]models.Teacher, error)
	AddTeacher(ctx context.Context, code string, req service.AddTeacherRequest) (*models.Teacher, error)
}

type catalogImporter interface {
	ImportFile(ctx context.Context, r io.Reader, format importer.Format) (*models.ImportResult, error)
}

// CatalogHandler serves subjects, their teachers and spreadsheet imports.
type CatalogHandler struct {
	catalog      catalogService
	importer     catalogImporter
	maxFileBytes int64
}

// NewCatalogHandler constructs a catalog handler. maxFileBytes caps import uploads.
func NewCatalogHandler(catalog *service.CatalogService, imports *service.ImportService, maxFileBytes int64) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, importer: imports, maxFileBytes: maxFileBytes}
}

// ListSubjects godoc
// @Summary List subjects
// @Tags Catalog
// @Produce json
// @Param search query string false "Search code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	var filter models.SubjectFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = limit
	}

	subjects, pagination, err := h.catalog.ListSubjects(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, pagination)
}

// GetSubject godoc
// @Summary Get subject by code
// @Tags Catalog
// @Produce json
// @Param code path string true "Subject code"
// @Success 200 {object} response.Envelope
// @Router /subjects/{code} [get]
func (h *CatalogHandler) GetSubject(c *gin.Context) {
	subject, err := h.catalog.GetSubject(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// UpsertSubject godoc
// @Summary Create or rename a subject
// @Description The code in the path wins over any code in the body. Existing teachers are kept.
// @Tags Catalog
// @Accept json
// @Produce json
// @Param code path string true "Subject code"
// @Param payload body service.UpsertSubjectRequest true "Subject payload"
// @Success 200 {object} response.Envelope
// @Router /subjects/{code} [put]
func (h *CatalogHandler) UpsertSubject(c *gin.Context) {
	var req service.UpsertSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.Code = c.Param("code")
	subject, err := h.catalog.UpsertSubject(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// ListTeachers godoc
// @Summary Teachers listed for a subject
// @Tags Catalog
// @Produce json
// @Param code path string true "Subject code"
// @Success 200 {object} response.Envelope
// @Router /subjects/{code}/teachers [get]
func (h *CatalogHandler) ListTeachers(c *gin.Context) {
	teachers, err := h.catalog.ListTeachers(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil, map[string]interface{}{"total": len(teachers)})
}

// AddTeacher godoc
// @Summary List a teacher under a subject
// @Tags Catalog
// @Accept json
// @Produce json
// @Param code path string true "Subject code"
// @Param payload body service.AddTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects/{code}/teachers [post]
func (h *CatalogHandler) AddTeacher(c *gin.Context) {
	var req service.AddTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teacher, err := h.catalog.AddTeacher(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// Import godoc
// @Summary Import subjects and teachers from a spreadsheet
// @Description Accepts .csv or .xlsx with code, name and optional teacher columns. Bad lines are reported, not fatal.
// @Tags Catalog
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Spreadsheet"
// @Success 200 {object} response.Envelope
// @Router /subjects/import [post]
func (h *CatalogHandler) Import(c *gin.Context) {
	if h.maxFileBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileBytes+multipartOverhead)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if h.maxFileBytes > 0 && fileHeader.Size > h.maxFileBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", h.maxFileBytes)))
		return
	}
	format, err := importer.FormatFromFilename(fileHeader.Filename)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "only .csv and .xlsx files are accepted"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.importer.ImportFile(c.Request.Context(), src, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
