package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/routine-builder/internal/models"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
)

type catalogRepository interface {
	ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindSubject(ctx context.Context, code string) (*models.Subject, error)
	UpsertSubject(ctx context.Context, subject *models.Subject) error
	ListTeachers(ctx context.Context, subjectCode string) ([]models.Teacher, error)
	TeacherExists(ctx context.Context, subjectCode, name string) (bool, error)
	AddTeacher(ctx context.Context, teacher *models.Teacher) error
	SubjectNames(ctx context.Context) (map[string]string, error)
	TeacherNames(ctx context.Context) (map[string]string, error)
}

// UpsertSubjectRequest creates or renames a subject.
type UpsertSubjectRequest struct {
	Code string `json:"code" validate:"required,max=32,excludes=/"`
	Name string `json:"name" validate:"required,max=200"`
}

// AddTeacherRequest lists a teacher under a subject.
type AddTeacherRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// CatalogService manages subjects and their teachers.
type CatalogService struct {
	repo      catalogRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger

	teacherListeners []func(subjectCode string)
}

// NewCatalogService constructs a CatalogService. cache may be nil.
func NewCatalogService(repo catalogRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// OnTeachersChanged registers fn to run after a subject's teacher list changed.
// Register before serving requests.
func (s *CatalogService) OnTeachersChanged(fn func(subjectCode string)) {
	if fn != nil {
		s.teacherListeners = append(s.teacherListeners, fn)
	}
}

func teachersCacheKey(code string) string {
	return "catalog:teachers:" + code
}

// ListSubjects returns subjects alphabetically by name plus pagination data.
func (s *CatalogService) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	subjects, total, err := s.repo.ListSubjects(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return subjects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetSubject returns a subject by code.
func (s *CatalogService) GetSubject(ctx context.Context, code string) (*models.Subject, error) {
	subject, err := s.repo.FindSubject(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// UpsertSubject creates the subject or updates its name, keeping listed teachers.
func (s *CatalogService) UpsertSubject(ctx context.Context, req UpsertSubjectRequest) (*models.Subject, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject := &models.Subject{Code: req.Code, Name: req.Name}
	if err := s.repo.UpsertSubject(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save subject")
	}
	s.logger.Info("subject saved", zap.String("subject_code", subject.Code))
	return subject, nil
}

// ListTeachers returns the teachers of a subject, served from cache when possible.
// An existing subject with no teachers yields an empty, non-nil slice.
func (s *CatalogService) ListTeachers(ctx context.Context, code string) ([]models.Teacher, error) {
	code = strings.TrimSpace(code)
	key := teachersCacheKey(code)

	var cached []models.Teacher
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		if cached == nil {
			cached = []models.Teacher{}
		}
		return cached, nil
	}

	if _, err := s.GetSubject(ctx, code); err != nil {
		return nil, err
	}
	teachers, err := s.repo.ListTeachers(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	_ = s.cache.Set(ctx, key, teachers, 0)
	return teachers, nil
}

// AddTeacher lists a new teacher under an existing subject.
func (s *CatalogService) AddTeacher(ctx context.Context, code string, req AddTeacherRequest) (*models.Teacher, error) {
	code = strings.TrimSpace(code)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	if _, err := s.GetSubject(ctx, code); err != nil {
		return nil, err
	}

	exists, err := s.repo.TeacherExists(ctx, code, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already listed for subject")
	}

	teacher := &models.Teacher{SubjectCode: code, Name: req.Name}
	if err := s.repo.AddTeacher(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add teacher")
	}
	_ = s.cache.Invalidate(ctx, teachersCacheKey(code))
	for _, notify := range s.teacherListeners {
		notify(code)
	}
	return teacher, nil
}

// Names returns subject and teacher display names keyed by code and id.
func (s *CatalogService) Names(ctx context.Context) (subjects map[string]string, teachers map[string]string, err error) {
	subjects, err = s.repo.SubjectNames(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject names")
	}
	teachers, err = s.repo.TeacherNames(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher names")
	}
	return subjects, teachers, nil
}
