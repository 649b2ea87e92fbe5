package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/routine-builder/internal/models"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
)

type catalogRepoStub struct {
	subjects      map[string]models.Subject
	teachers      map[string][]models.Teacher
	listTeachers  int
	upsertErr     error
	nextTeacherID int
}

func newCatalogRepoStub() *catalogRepoStub {
	return &catalogRepoStub{subjects: map[string]models.Subject{}, teachers: map[string][]models.Teacher{}}
}

func (r *catalogRepoStub) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	var items []models.Subject
	for _, subject := range r.subjects {
		if filter.Search == "" || strings.Contains(strings.ToLower(subject.Name), strings.ToLower(filter.Search)) {
			items = append(items, subject)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, len(items), nil
}

func (r *catalogRepoStub) FindSubject(ctx context.Context, code string) (*models.Subject, error) {
	subject, ok := r.subjects[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &subject, nil
}

func (r *catalogRepoStub) UpsertSubject(ctx context.Context, subject *models.Subject) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.subjects[subject.Code] = *subject
	return nil
}

func (r *catalogRepoStub) ListTeachers(ctx context.Context, subjectCode string) ([]models.Teacher, error) {
	r.listTeachers++
	return r.teachers[subjectCode], nil
}

func (r *catalogRepoStub) TeacherExists(ctx context.Context, subjectCode, name string) (bool, error) {
	for _, teacher := range r.teachers[subjectCode] {
		if strings.EqualFold(teacher.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *catalogRepoStub) AddTeacher(ctx context.Context, teacher *models.Teacher) error {
	r.nextTeacherID++
	teacher.ID = "t-" + string(rune('a'+r.nextTeacherID-1))
	r.teachers[teacher.SubjectCode] = append(r.teachers[teacher.SubjectCode], *teacher)
	return nil
}

func (r *catalogRepoStub) SubjectNames(ctx context.Context) (map[string]string, error) {
	names := map[string]string{}
	for code, subject := range r.subjects {
		names[code] = subject.Name
	}
	return names, nil
}

func (r *catalogRepoStub) TeacherNames(ctx context.Context) (map[string]string, error) {
	names := map[string]string{}
	for _, teachers := range r.teachers {
		for _, teacher := range teachers {
			names[teacher.ID] = teacher.Name
		}
	}
	return names, nil
}

type memoryCache struct {
	items       map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	delete(m.items, pattern)
	return nil
}

func TestCatalogServiceUpsertSubjectValidates(t *testing.T) {
	svc := NewCatalogService(newCatalogRepoStub(), nil, nil, nil)

	_, err := svc.UpsertSubject(context.Background(), UpsertSubjectRequest{Code: "  ", Name: "Algorithms"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UpsertSubject(context.Background(), UpsertSubjectRequest{Code: "CS/101", Name: "Algorithms"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	subject, err := svc.UpsertSubject(context.Background(), UpsertSubjectRequest{Code: " CS101 ", Name: " Algorithms "})
	require.NoError(t, err)
	assert.Equal(t, "CS101", subject.Code)
	assert.Equal(t, "Algorithms", subject.Name)
}

func TestCatalogServiceUpsertSubjectRepositoryFailure(t *testing.T) {
	repo := newCatalogRepoStub()
	repo.upsertErr = errors.New("db down")
	svc := NewCatalogService(repo, nil, nil, nil)

	_, err := svc.UpsertSubject(context.Background(), UpsertSubjectRequest{Code: "CS101", Name: "Algorithms"})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestCatalogServiceGetSubjectNotFound(t *testing.T) {
	svc := NewCatalogService(newCatalogRepoStub(), nil, nil, nil)
	_, err := svc.GetSubject(context.Background(), "NOPE")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCatalogServiceListTeachersUsesCache(t *testing.T) {
	repo := newCatalogRepoStub()
	repo.subjects["CS101"] = models.Subject{Code: "CS101", Name: "Algorithms"}
	repo.teachers["CS101"] = []models.Teacher{{ID: "t-1", SubjectCode: "CS101", Name: "Ada"}}
	metrics := NewMetricsService()
	cache := NewCacheService(newMemoryCache(), metrics, time.Minute, nil, true)
	svc := NewCatalogService(repo, cache, nil, nil)

	first, err := svc.ListTeachers(context.Background(), "CS101")
	require.NoError(t, err)
	second, err := svc.ListTeachers(context.Background(), "CS101")
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, repo.listTeachers)
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)
}

func TestCatalogServiceListTeachersEmptyAndMissing(t *testing.T) {
	repo := newCatalogRepoStub()
	repo.subjects["ART"] = models.Subject{Code: "ART", Name: "Art"}
	svc := NewCatalogService(repo, nil, nil, nil)

	teachers, err := svc.ListTeachers(context.Background(), "ART")
	require.NoError(t, err)
	assert.NotNil(t, teachers)
	assert.Empty(t, teachers)

	_, err = svc.ListTeachers(context.Background(), "NOPE")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCatalogServiceAddTeacher(t *testing.T) {
	repo := newCatalogRepoStub()
	repo.subjects["CS101"] = models.Subject{Code: "CS101", Name: "Algorithms"}
	memory := newMemoryCache()
	cache := NewCacheService(memory, nil, time.Minute, nil, true)
	svc := NewCatalogService(repo, cache, nil, nil)

	teacher, err := svc.AddTeacher(context.Background(), "CS101", AddTeacherRequest{Name: " Ada "})
	require.NoError(t, err)
	assert.Equal(t, "Ada", teacher.Name)
	assert.NotEmpty(t, teacher.ID)
	assert.Equal(t, []string{"catalog:teachers:CS101"}, memory.invalidated)

	_, err = svc.AddTeacher(context.Background(), "CS101", AddTeacherRequest{Name: "ada"})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.AddTeacher(context.Background(), "NOPE", AddTeacherRequest{Name: "Bob"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.AddTeacher(context.Background(), "CS101", AddTeacherRequest{Name: ""})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCatalogServiceAddTeacherNotifiesListeners(t *testing.T) {
	repo := newCatalogRepoStub()
	repo.subjects["CS101"] = models.Subject{Code: "CS101", Name: "Algorithms"}
	svc := NewCatalogService(repo, nil, nil, nil)

	var changed []string
	svc.OnTeachersChanged(func(code string) { changed = append(changed, code) })
	svc.OnTeachersChanged(nil)

	_, err := svc.AddTeacher(context.Background(), " CS101 ", AddTeacherRequest{Name: "Grace"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101"}, changed)

	_, err = svc.AddTeacher(context.Background(), "CS101", AddTeacherRequest{Name: "Grace"})
	require.Error(t, err)
	assert.Equal(t, []string{"CS101"}, changed)
}

func TestCatalogServiceNames(t *testing.T) {
	repo := newCatalogRepoStub()
	repo.subjects["CS101"] = models.Subject{Code: "CS101", Name: "Algorithms"}
	repo.teachers["CS101"] = []models.Teacher{{ID: "t-1", SubjectCode: "CS101", Name: "Ada"}}
	svc := NewCatalogService(repo, nil, nil, nil)

	subjects, teachers, err := svc.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Algorithms", subjects["CS101"])
	assert.Equal(t, "Ada", teachers["t-1"])
}
