package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/noah-isme/routine-builder/internal/models"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
	"github.com/noah-isme/routine-builder/pkg/importer"
)

type catalogWriter interface {
	UpsertSubject(ctx context.Context, req UpsertSubjectRequest) (*models.Subject, error)
	AddTeacher(ctx context.Context, code string, req AddTeacherRequest) (*models.Teacher, error)
}

// ImportService loads subjects and teachers from spreadsheets into the catalog.
// It never touches routines.
type ImportService struct {
	catalog catalogWriter
	logger  *zap.Logger
}

// NewImportService constructs an ImportService.
func NewImportService(catalog catalogWriter, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{catalog: catalog, logger: logger}
}

// ImportFile parses the upload and imports its records.
func (s *ImportService) ImportFile(ctx context.Context, r io.Reader, format importer.Format) (*models.ImportResult, error) {
	records, lineErrors, err := importer.ReadRecords(r, format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable import file")
	}
	result := s.Import(ctx, records)
	for _, lineErr := range lineErrors {
		result.Errors = append(result.Errors, models.ImportError{Line: lineErr.Line, Message: lineErr.Message})
		result.Skipped++
	}
	return result, nil
}

// Import upserts each record's subject and lists its teacher when present.
// Failures are reported per line; a teacher already listed is skipped.
func (s *ImportService) Import(ctx context.Context, records []importer.Record) *models.ImportResult {
	result := &models.ImportResult{Errors: []models.ImportError{}}
	for _, record := range records {
		if _, err := s.catalog.UpsertSubject(ctx, UpsertSubjectRequest{Code: record.Code, Name: record.Name}); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportError{Line: record.Line, Message: appErrors.FromError(err).Message})
			continue
		}
		result.SubjectsUpserted++

		if record.Teacher == "" {
			continue
		}
		if _, err := s.catalog.AddTeacher(ctx, record.Code, AddTeacherRequest{Name: record.Teacher}); err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Code == appErrors.ErrConflict.Code {
				continue
			}
			result.Errors = append(result.Errors, models.ImportError{Line: record.Line, Message: appErr.Message})
			continue
		}
		result.TeachersAdded++
	}

	s.logger.Info("catalog import finished",
		zap.Int("subjects_upserted", result.SubjectsUpserted),
		zap.Int("teachers_added", result.TeachersAdded),
		zap.Int("skipped", result.Skipped),
	)
	return result
}
