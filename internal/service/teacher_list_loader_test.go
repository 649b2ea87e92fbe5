package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/routine-builder/internal/models"
	"github.com/noah-isme/routine-builder/internal/repository"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
)

type teacherListerStub struct {
	calls    int32
	failures int32
	err      error
	teachers map[string][]models.Teacher
}

func (s *teacherListerStub) ListTeachers(ctx context.Context, code string) ([]models.Teacher, error) {
	call := atomic.AddInt32(&s.calls, 1)
	if s.err != nil && call <= s.failures {
		return nil, s.err
	}
	return s.teachers[code], nil
}

func waitForResult(t *testing.T, results <-chan models.TeacherFetchResult) models.TeacherFetchResult {
	t.Helper()
	select {
	case result := <-results:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("no teacher list delivered")
		return models.TeacherFetchResult{}
	}
}

func TestTeacherListLoaderDeliversTeachers(t *testing.T) {
	lister := &teacherListerStub{teachers: map[string][]models.Teacher{"CS101": {{ID: "t-1", Name: "Ada"}}}}
	loader := NewTeacherListLoader(lister, TeacherListLoaderConfig{Workers: 1}, zap.NewNop())
	loader.Start(context.Background())
	defer loader.Stop()

	results := make(chan models.TeacherFetchResult, 1)
	req := models.TeacherFetchRequest{Ticket: 1, RoutineID: 1, SubjectCode: "CS101"}
	require.NoError(t, loader.Fetch(req, func(r models.TeacherFetchResult) { results <- r }))

	result := waitForResult(t, results)
	require.NoError(t, result.Err)
	assert.Equal(t, req, result.Request)
	assert.Equal(t, "Ada", result.Teachers[0].Name)
}

func TestTeacherListLoaderRetriesTransientFailure(t *testing.T) {
	lister := &teacherListerStub{err: errors.New("timeout"), failures: 1, teachers: map[string][]models.Teacher{"CS101": {}}}
	loader := NewTeacherListLoader(lister, TeacherListLoaderConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
	loader.Start(context.Background())
	defer loader.Stop()

	results := make(chan models.TeacherFetchResult, 1)
	require.NoError(t, loader.Fetch(models.TeacherFetchRequest{Ticket: 1, SubjectCode: "CS101"}, func(r models.TeacherFetchResult) { results <- r }))

	result := waitForResult(t, results)
	assert.NoError(t, result.Err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&lister.calls))
}

func TestTeacherListLoaderGivesUpAfterRetries(t *testing.T) {
	lister := &teacherListerStub{err: errors.New("down"), failures: 100}
	loader := NewTeacherListLoader(lister, TeacherListLoaderConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond}, nil)
	loader.Start(context.Background())
	defer loader.Stop()

	results := make(chan models.TeacherFetchResult, 1)
	require.NoError(t, loader.Fetch(models.TeacherFetchRequest{Ticket: 1, SubjectCode: "CS101"}, func(r models.TeacherFetchResult) { results <- r }))

	result := waitForResult(t, results)
	assert.Error(t, result.Err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&lister.calls))
}

func TestTeacherListLoaderDoesNotRetryUnknownSubject(t *testing.T) {
	lister := &teacherListerStub{err: appErrors.Clone(appErrors.ErrNotFound, "subject not found"), failures: 100}
	loader := NewTeacherListLoader(lister, TeacherListLoaderConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond}, nil)
	loader.Start(context.Background())
	defer loader.Stop()

	results := make(chan models.TeacherFetchResult, 1)
	require.NoError(t, loader.Fetch(models.TeacherFetchRequest{Ticket: 1, SubjectCode: "NOPE"}, func(r models.TeacherFetchResult) { results <- r }))

	result := waitForResult(t, results)
	assert.Error(t, result.Err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.calls))
}

func TestTeacherListLoaderRejectsWhenStopped(t *testing.T) {
	loader := NewTeacherListLoader(&teacherListerStub{}, TeacherListLoaderConfig{}, nil)
	err := loader.Fetch(models.TeacherFetchRequest{SubjectCode: "CS101"}, func(models.TeacherFetchResult) {})
	assert.Error(t, err)
	assert.Equal(t, 0, loader.Pending())
}

func TestTeacherListLoaderFeedsController(t *testing.T) {
	lister := &teacherListerStub{teachers: map[string][]models.Teacher{"CS101": {{ID: "t-1", Name: "Ada"}}}}
	loader := NewTeacherListLoader(lister, TeacherListLoaderConfig{Workers: 2}, nil)
	loader.Start(context.Background())
	defer loader.Stop()

	store := repository.NewRoutineStore(models.DefaultLayout())
	controller := NewScheduleController(store, loader, ScheduleControllerConfig{}, nil, nil)
	id := controller.AddRoutine().ID

	_, err := controller.SelectSubject(id, monNine, "CS101")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		candidates, err := controller.Candidates(id, monNine)
		return err == nil && candidates != nil && candidates.Status == models.CandidatesLoaded
	}, 2*time.Second, 5*time.Millisecond)

	candidates, err := controller.Candidates(id, monNine)
	require.NoError(t, err)
	assert.Equal(t, []models.TeacherOption{{ID: "t-1", Name: "Ada"}}, candidates.Teachers)
}

func TestTeacherListLoaderReloadsAfterCatalogWrite(t *testing.T) {
	repo := newCatalogRepoStub()
	repo.subjects["CS101"] = models.Subject{Code: "CS101", Name: "Algorithms"}
	catalog := NewCatalogService(repo, nil, nil, nil)
	ada, err := catalog.AddTeacher(context.Background(), "CS101", AddTeacherRequest{Name: "Ada"})
	require.NoError(t, err)

	loader := NewTeacherListLoader(catalog, TeacherListLoaderConfig{Workers: 1}, nil)
	loader.Start(context.Background())
	defer loader.Stop()

	controller := NewScheduleController(repository.NewRoutineStore(models.DefaultLayout()), loader, ScheduleControllerConfig{}, nil, nil)
	catalog.OnTeachersChanged(controller.InvalidateCandidates)
	id := controller.AddRoutine().ID

	_, err = controller.SelectSubject(id, monNine, "CS101")
	require.NoError(t, err)
	loadedWith := func(n int) func() bool {
		return func() bool {
			candidates, err := controller.Candidates(id, monNine)
			return err == nil && candidates.Status == models.CandidatesLoaded && len(candidates.Teachers) == n
		}
	}
	require.Eventually(t, loadedWith(1), 2*time.Second, 5*time.Millisecond)

	grace, err := catalog.AddTeacher(context.Background(), "CS101", AddTeacherRequest{Name: "Grace"})
	require.NoError(t, err)
	require.Eventually(t, loadedWith(2), 2*time.Second, 5*time.Millisecond)

	view, err := controller.SelectTeacher(id, monNine, grace.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", view.TeacherName)
	assert.NotEqual(t, ada.ID, grace.ID)
}
