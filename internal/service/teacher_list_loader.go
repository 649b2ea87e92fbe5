package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/routine-builder/internal/models"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
	"github.com/noah-isme/routine-builder/pkg/jobs"
)

const teacherListJobType = "teacher_list"

type teacherLister interface {
	ListTeachers(ctx context.Context, code string) ([]models.Teacher, error)
}

// TeacherListLoaderConfig tunes the background fetch pool.
type TeacherListLoaderConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

type teacherListJob struct {
	request models.TeacherFetchRequest
	deliver func(models.TeacherFetchResult)
}

// TeacherListLoader fetches subject teacher lists on a worker pool and delivers results
// through the callback handed to Fetch. Transient failures are retried. While the loader
// runs, every accepted request is answered exactly once.
type TeacherListLoader struct {
	queue   *jobs.Queue
	catalog teacherLister
	timeout time.Duration
	logger  *zap.Logger
}

// NewTeacherListLoader builds a loader over the catalog.
func NewTeacherListLoader(catalog teacherLister, cfg TeacherListLoaderConfig, logger *zap.Logger) *TeacherListLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	loader := &TeacherListLoader{catalog: catalog, timeout: cfg.Timeout, logger: logger}
	loader.queue = jobs.NewQueue(teacherListJobType, loader.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		OnFailure:  loader.giveUp,
		Logger:     logger,
	})
	return loader
}

// Start launches the worker pool.
func (l *TeacherListLoader) Start(ctx context.Context) {
	l.queue.Start(ctx)
}

// Stop drains the worker pool.
func (l *TeacherListLoader) Stop() {
	l.queue.Stop()
}

// Pending reports fetches waiting for a worker.
func (l *TeacherListLoader) Pending() int {
	return l.queue.Pending()
}

// Fetch schedules a background load without blocking. It fails when the queue is saturated or stopped.
func (l *TeacherListLoader) Fetch(req models.TeacherFetchRequest, deliver func(models.TeacherFetchResult)) error {
	job := jobs.Job{
		ID:      fmt.Sprintf("%s-%d", req.SubjectCode, req.Ticket),
		Type:    teacherListJobType,
		Payload: teacherListJob{request: req, deliver: deliver},
	}
	if err := l.queue.TryEnqueue(job); err != nil {
		l.logger.Warn("teacher fetch not scheduled", zap.String("subject_code", req.SubjectCode), zap.Error(err))
		return err
	}
	return nil
}

func (l *TeacherListLoader) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(teacherListJob)
	if !ok {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	teachers, err := l.catalog.ListTeachers(fetchCtx, payload.request.SubjectCode)
	if err != nil {
		if isPermanent(err) {
			payload.deliver(models.TeacherFetchResult{Request: payload.request, Err: err})
			return nil
		}
		return err
	}
	payload.deliver(models.TeacherFetchResult{Request: payload.request, Teachers: teachers})
	return nil
}

func (l *TeacherListLoader) giveUp(job jobs.Job, err error) {
	payload, ok := job.Payload.(teacherListJob)
	if !ok {
		return
	}
	payload.deliver(models.TeacherFetchResult{Request: payload.request, Err: err})
}

// isPermanent reports errors a retry cannot fix, such as an unknown subject.
func isPermanent(err error) bool {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Status >= http.StatusBadRequest && appErr.Status < http.StatusInternalServerError
	}
	return false
}
