package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/routine-builder/internal/models"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
	"github.com/noah-isme/routine-builder/pkg/export"
	"github.com/noah-isme/routine-builder/pkg/storage"
)

type scheduleSnapshotter interface {
	Snapshot() models.ScheduleSnapshot
}

type catalogNames interface {
	Names(ctx context.Context) (subjects map[string]string, teachers map[string]string, err error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

type exportStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Title     string
	APIPrefix string
}

// ExportFile is a rendered schedule ready to stream.
type ExportFile struct {
	Name        string
	Format      export.Format
	ContentType string
	Body        []byte
}

// ExportLink points at an archived export.
type ExportLink struct {
	Token     string        `json:"token"`
	URL       string        `json:"url"`
	Format    export.Format `json:"format"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// ExportService turns the live routines into printable documents.
type ExportService struct {
	schedule  scheduleSnapshotter
	names     catalogNames
	renderers map[export.Format]documentRenderer
	storage   exportStorage
	signer    *storage.Signer
	cfg       ExportConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. storage and signer may be nil, which disables archived links.
func NewExportService(schedule scheduleSnapshotter, names catalogNames, files exportStorage, signer *storage.Signer, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Title == "" {
		cfg.Title = "Weekly Schedule"
	}
	return &ExportService{
		schedule: schedule,
		names:    names,
		renderers: map[export.Format]documentRenderer{
			export.FormatCSV:  export.NewCSVExporter(),
			export.FormatPDF:  export.NewPDFExporter(),
			export.FormatXLSX: export.NewXLSXExporter(),
		},
		storage: files,
		signer:  signer,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Resolve snapshots every routine and replaces subject codes and teacher ids with display names.
func (s *ExportService) Resolve(ctx context.Context) (*models.ResolvedSchedule, error) {
	snapshot := s.schedule.Snapshot()
	subjects, teachers, err := s.names.Names(ctx)
	if err != nil {
		return nil, err
	}

	resolved := &models.ResolvedSchedule{
		Title:      s.cfg.Title,
		TimeLabels: snapshot.Layout.TimeLabels(),
		Routines:   make([]models.ResolvedRoutine, 0, len(snapshot.Routines)),
	}
	for i, routine := range snapshot.Routines {
		item := models.ResolvedRoutine{ID: routine.ID, Number: i + 1, Days: make([]models.ResolvedDay, len(snapshot.Layout.Days))}
		for day, dayName := range snapshot.Layout.Days {
			cells := make([]models.ResolvedCell, 0, len(routine.Rows))
			for _, row := range routine.Rows {
				switch typed := row.(type) {
				case *models.BreakRow:
					cells = append(cells, models.ResolvedCell{Kind: models.CellKindBreak, Label: typed.Label})
				case *models.TeachingRow:
					cells = append(cells, resolveCell(typed.Cells[day], subjects, teachers))
				}
			}
			item.Days[day] = models.ResolvedDay{Day: dayName, Cells: cells}
		}
		resolved.Routines = append(resolved.Routines, item)
	}
	return resolved, nil
}

func resolveCell(cell models.Cell, subjects, teachers map[string]string) models.ResolvedCell {
	resolved := models.ResolvedCell{Kind: models.CellKindTeaching, SubjectCode: cell.SubjectCode}
	if cell.SubjectCode == "" {
		return resolved
	}
	resolved.SubjectName = subjects[cell.SubjectCode]
	if resolved.SubjectName == "" {
		resolved.SubjectName = models.UnknownSubjectName
	}
	if cell.TeacherID != "" {
		resolved.TeacherName = teachers[cell.TeacherID]
		if resolved.TeacherName == "" {
			resolved.TeacherName = models.UnknownTeacherName
		}
	}
	return resolved
}

// Render produces the schedule in the requested format.
func (s *ExportService) Render(ctx context.Context, format export.Format) (*ExportFile, error) {
	resolved, err := s.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var body []byte
	if format == export.FormatJSON {
		body, err = json.MarshalIndent(resolved, "", "  ")
	} else {
		renderer, ok := s.renderers[format]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
		}
		body, err = renderer.Render(document(resolved))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}

	return &ExportFile{
		Name:        fmt.Sprintf("weekly_schedule_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		Format:      format,
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

// document lays each routine out as a table: a "Day" column followed by one column per time label.
func document(resolved *models.ResolvedSchedule) export.Document {
	header := append([]string{"Day"}, resolved.TimeLabels...)
	doc := export.Document{Title: resolved.Title, Tables: make([]export.Table, 0, len(resolved.Routines))}
	for _, routine := range resolved.Routines {
		table := export.Table{Title: fmt.Sprintf("Routine %d", routine.Number), Header: header}
		for _, day := range routine.Days {
			row := make([]string, 0, len(day.Cells)+1)
			row = append(row, day.Day)
			for _, cell := range day.Cells {
				row = append(row, cell.Text())
			}
			table.Rows = append(table.Rows, row)
		}
		doc.Tables = append(doc.Tables, table)
	}
	return doc
}

// Archive renders the schedule, stores it and returns an expiring download link.
func (s *ExportService) Archive(ctx context.Context, format export.Format) (*ExportLink, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export links are not configured")
	}
	file, err := s.Render(ctx, format)
	if err != nil {
		return nil, err
	}
	name, err := s.storage.Save(file.Name, file.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Sign(name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("schedule archived", zap.String("file", name), zap.String("format", string(format)))
	return &ExportLink{
		Token:     token,
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:    format,
		ExpiresAt: expiresAt,
	}, nil
}

// OpenArchive validates a download token and opens the stored file.
func (s *ExportService) OpenArchive(token string) (*os.File, string, error) {
	if s.storage == nil || s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	name, _, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file, err := s.storage.Open(name)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return file, name, nil
}

// Cleanup removes archived exports older than ttl.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	deleted, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
	return deleted, nil
}
