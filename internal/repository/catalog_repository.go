package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/routine-builder/internal/models"
)

// CatalogRepository persists subjects and the teachers listed under them.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new repository instance.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListSubjects returns subjects ordered by name with the total match count.
func (r *CatalogRepository) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	base := "FROM subjects"
	var args []interface{}
	if filter.Search != "" {
		base += " WHERE (LOWER(code) LIKE $1 OR LOWER(name) LIKE $1)"
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT code, name, created_at, updated_at %s ORDER BY name ASC, code ASC LIMIT %d OFFSET %d", base, size, offset)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	return subjects, total, nil
}

// FindSubject returns a subject by code. A missing subject yields sql.ErrNoRows.
func (r *CatalogRepository) FindSubject(ctx context.Context, code string) (*models.Subject, error) {
	const query = `SELECT code, name, created_at, updated_at FROM subjects WHERE code = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, code); err != nil {
		return nil, err
	}
	return &subject, nil
}

// SubjectNames maps every known subject code to its name.
func (r *CatalogRepository) SubjectNames(ctx context.Context) (map[string]string, error) {
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, `SELECT code, name, created_at, updated_at FROM subjects`); err != nil {
		return nil, fmt.Errorf("load subject names: %w", err)
	}
	names := make(map[string]string, len(subjects))
	for _, subject := range subjects {
		names[subject.Code] = subject.Name
	}
	return names, nil
}

// UpsertSubject inserts the subject or renames an existing one. Teachers are left untouched.
func (r *CatalogRepository) UpsertSubject(ctx context.Context, subject *models.Subject) error {
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (code, name, created_at, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
RETURNING created_at`
	if err := r.db.GetContext(ctx, &subject.CreatedAt, query, subject.Code, subject.Name, subject.CreatedAt, subject.UpdatedAt); err != nil {
		return fmt.Errorf("upsert subject: %w", err)
	}
	return nil
}

// ListTeachers returns the teachers of a subject ordered by name.
func (r *CatalogRepository) ListTeachers(ctx context.Context, subjectCode string) ([]models.Teacher, error) {
	const query = `SELECT id, subject_code, name, created_at FROM subject_teachers WHERE subject_code = $1 ORDER BY name ASC, id ASC`
	teachers := []models.Teacher{}
	if err := r.db.SelectContext(ctx, &teachers, query, subjectCode); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// TeacherNames maps every teacher id to its name.
func (r *CatalogRepository) TeacherNames(ctx context.Context) (map[string]string, error) {
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, `SELECT id, subject_code, name, created_at FROM subject_teachers`); err != nil {
		return nil, fmt.Errorf("load teacher names: %w", err)
	}
	names := make(map[string]string, len(teachers))
	for _, teacher := range teachers {
		names[teacher.ID] = teacher.Name
	}
	return names, nil
}

// TeacherExists reports whether a teacher with the same name is already listed under the subject.
func (r *CatalogRepository) TeacherExists(ctx context.Context, subjectCode, name string) (bool, error) {
	const query = `SELECT 1 FROM subject_teachers WHERE subject_code = $1 AND LOWER(name) = LOWER($2) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, subjectCode, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher: %w", err)
	}
	return true, nil
}

// AddTeacher lists a new teacher under a subject.
func (r *CatalogRepository) AddTeacher(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO subject_teachers (id, subject_code, name, created_at) VALUES (:id, :subject_code, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("add teacher: %w", err)
	}
	return nil
}
