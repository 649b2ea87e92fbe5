package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/routine-builder/internal/models"
	"github.com/noah-isme/routine-builder/internal/repository"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
	"github.com/noah-isme/routine-builder/pkg/export"
	"github.com/noah-isme/routine-builder/pkg/storage"
)

type namesStub struct {
	subjects map[string]string
	teachers map[string]string
	err      error
}

func (n namesStub) Names(ctx context.Context) (map[string]string, map[string]string, error) {
	return n.subjects, n.teachers, n.err
}

func newExportFixture(t *testing.T) *ScheduleController {
	t.Helper()
	controller := NewScheduleController(repository.NewRoutineStore(models.DefaultLayout()), nil, ScheduleControllerConfig{}, nil, nil)
	first := controller.AddRoutine().ID
	second := controller.AddRoutine().ID
	assign(t, controller, first, monNine, "CS101", "t-ada")
	assign(t, controller, second, models.TimeKey{Day: 1, Slot: 0}, "GHOST", "t-ghost")
	_, err := controller.SelectSubject(second, models.TimeKey{Day: 2, Slot: 0}, "CS101")
	require.NoError(t, err)
	return controller
}

var exportNames = namesStub{
	subjects: map[string]string{"CS101": "Algorithms"},
	teachers: map[string]string{"t-ada": "Ada"},
}

func TestExportServiceResolve(t *testing.T) {
	svc := NewExportService(newExportFixture(t), exportNames, nil, nil, ExportConfig{}, nil)

	resolved, err := svc.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Weekly Schedule", resolved.Title)
	require.Len(t, resolved.TimeLabels, 8)
	require.Len(t, resolved.Routines, 2)

	first := resolved.Routines[0]
	assert.Equal(t, 1, first.Number)
	require.Len(t, first.Days, 5)
	assert.Equal(t, "Monday", first.Days[0].Day)
	assert.Equal(t, models.ResolvedCell{Kind: models.CellKindTeaching, SubjectCode: "CS101", SubjectName: "Algorithms", TeacherName: "Ada"}, first.Days[0].Cells[0])
	assert.Equal(t, models.ResolvedCell{Kind: models.CellKindBreak, Label: "Lunch Break"}, first.Days[0].Cells[3])
	assert.Equal(t, "No Subject", first.Days[1].Cells[0].Text())

	second := resolved.Routines[1]
	assert.Equal(t, "Unknown", second.Days[1].Cells[0].SubjectName)
	assert.Equal(t, "Teacher not found", second.Days[1].Cells[0].TeacherName)
	assert.Equal(t, "[CS101] Algorithms", second.Days[2].Cells[0].Text())
}

func TestExportServiceResolvePropagatesCatalogFailure(t *testing.T) {
	svc := NewExportService(newExportFixture(t), namesStub{err: appErrors.Clone(appErrors.ErrInternal, "db down")}, nil, nil, ExportConfig{}, nil)
	_, err := svc.Resolve(context.Background())
	assert.Error(t, err)
}

func TestExportServiceRenderCSV(t *testing.T) {
	svc := NewExportService(newExportFixture(t), exportNames, nil, nil, ExportConfig{Title: "Term 1"}, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	file, err := svc.Render(context.Background(), export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "weekly_schedule_20240506_070809.csv", file.Name)
	assert.Equal(t, "text/csv", file.ContentType)

	reader := csv.NewReader(bytes.NewReader(file.Body))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Routine 1"}, records[0])
	assert.Equal(t, "Day", records[1][0])
	assert.Equal(t, "12:00 - 1:00", records[1][4])
	assert.Equal(t, "[CS101] Algorithms\nAda", records[2][1])
	assert.Equal(t, "Lunch Break", records[2][4])
}

func TestExportServiceRenderAllFormats(t *testing.T) {
	svc := NewExportService(newExportFixture(t), exportNames, nil, nil, ExportConfig{}, nil)
	for _, format := range []export.Format{export.FormatJSON, export.FormatPDF, export.FormatXLSX} {
		file, err := svc.Render(context.Background(), format)
		require.NoError(t, err, format)
		assert.NotEmpty(t, file.Body, format)
	}
	_, err := svc.Render(context.Background(), export.Format("docx"))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceArchiveRoundTrip(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSigner("secret", time.Hour)
	svc := NewExportService(newExportFixture(t), exportNames, files, signer, ExportConfig{APIPrefix: "/api/v1/"}, nil)

	link, err := svc.Archive(context.Background(), export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/exports/"+link.Token, link.URL)

	file, name, err := svc.OpenArchive(link.Token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	assert.Contains(t, name, ".csv")
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Routine 2")

	_, _, err = svc.OpenArchive("bogus")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceArchiveRequiresStorage(t *testing.T) {
	svc := NewExportService(newExportFixture(t), exportNames, nil, nil, ExportConfig{}, nil)
	_, err := svc.Archive(context.Background(), export.FormatPDF)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	deleted, err := svc.Cleanup(time.Hour)
	assert.NoError(t, err)
	assert.Nil(t, deleted)
}

func TestExportServiceCleanupPropagatesErrors(t *testing.T) {
	svc := NewExportService(newExportFixture(t), exportNames, failingStorage{}, storage.NewSigner("s", time.Hour), ExportConfig{}, nil)
	_, err := svc.Cleanup(time.Hour)
	assert.Error(t, err)
}

type failingStorage struct{}

func (failingStorage) Save(string, []byte) (string, error) { return "", errors.New("disk full") }
func (failingStorage) Open(string) (*os.File, error)       { return nil, errors.New("missing") }
func (failingStorage) CleanupOlderThan(time.Duration) ([]string, error) {
	return nil, errors.New("walk failed")
}
