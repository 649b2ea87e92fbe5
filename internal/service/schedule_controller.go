package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/routine-builder/internal/models"
	"github.com/noah-isme/routine-builder/internal/repository"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
)

// teacherListFetcher loads a subject's teachers in the background and hands the
// result to deliver. Fetch must not block on the load itself.
type teacherListFetcher interface {
	Fetch(req models.TeacherFetchRequest, deliver func(models.TeacherFetchResult)) error
}

// ScheduleControllerConfig selects the conflict policy.
type ScheduleControllerConfig struct {
	// EnforceAvailability rejects SelectTeacher when the teacher is already booked
	// at the same key in another routine. When false conflicts are only flagged.
	EnforceAvailability bool
}

// candidateEntry caches one subject's teacher list. ticket is the newest fetch whose
// result may still land: older results are dropped.
type candidateEntry struct {
	status   models.CandidateStatus
	teachers []models.Teacher
	err      string
	ticket   uint64
}

// ScheduleController is the only entry point that mutates routine cells. It keeps the
// RoutineStore and the TeacherAssignmentIndex consistent and owns the conflict policy.
// Mutations are serialised; reads observe a consistent snapshot.
type ScheduleController struct {
	mu         sync.RWMutex
	store      *repository.RoutineStore
	index      *TeacherAssignmentIndex
	fetcher    teacherListFetcher
	candidates map[string]*candidateEntry
	nextTicket uint64
	cfg        ScheduleControllerConfig
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewScheduleController constructs a controller over an empty index for the given store.
func NewScheduleController(store *repository.RoutineStore, fetcher teacherListFetcher, cfg ScheduleControllerConfig, metrics *MetricsService, logger *zap.Logger) *ScheduleController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleController{
		store:      store,
		index:      RebuildAssignmentIndex(store),
		fetcher:    fetcher,
		candidates: make(map[string]*candidateEntry),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// RebuildAssignmentIndex derives a fresh index by scanning every teaching cell of the store.
func RebuildAssignmentIndex(store *repository.RoutineStore) *TeacherAssignmentIndex {
	index := NewTeacherAssignmentIndex()
	store.ForEachAssigned(func(routineID int, key models.TimeKey, cell models.Cell) {
		index.Assign(cell.TeacherID, key, routineID)
	})
	return index
}

// Layout returns the grid shape.
func (c *ScheduleController) Layout() models.Layout {
	return c.store.Layout()
}

// AddRoutine appends an empty routine.
func (c *ScheduleController) AddRoutine() models.RoutineSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.store.AddRoutine()
	c.observe()
	c.logger.Debug("routine added", zap.Int("routine_id", id))
	return models.RoutineSummary{ID: id, Number: models.DisplayNumber(c.store.IDs(), id)}
}

// DeleteRoutine removes the routine and purges its index entries. Unknown ids are a no-op reported as false.
func (c *ScheduleController) DeleteRoutine(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.RemoveRoutine(id) {
		return false
	}
	purged := c.index.PurgeRoutine(id)
	c.observe()
	c.logger.Debug("routine deleted", zap.Int("routine_id", id), zap.Int("purged_assignments", purged))
	return true
}

// SelectSubject sets the cell subject, drops any teacher and starts loading the subject's
// teachers. An empty subject clears the cell. A nil view means the routine does not exist.
func (c *ScheduleController) SelectSubject(id int, key models.TimeKey, subjectCode string) (*models.CellView, error) {
	subjectCode = strings.TrimSpace(subjectCode)
	if subjectCode == "" {
		return c.ClearCell(id, key)
	}

	c.mu.Lock()
	prev, err := c.store.GetCell(id, key)
	if err == nil {
		err = c.store.SetCell(id, key, subjectCode, "")
	}
	if err != nil {
		c.mu.Unlock()
		return c.storeFailure(err)
	}
	if prev.TeacherID != "" {
		c.index.Unassign(prev.TeacherID, key, id)
	}

	c.nextTicket++
	req := models.TeacherFetchRequest{Ticket: c.nextTicket, RoutineID: id, Key: key, SubjectCode: subjectCode}
	switch entry := c.candidates[subjectCode]; {
	case entry == nil:
		c.candidates[subjectCode] = &candidateEntry{status: models.CandidatesLoading}
	case entry.status != models.CandidatesLoaded:
		entry.status = models.CandidatesLoading
		entry.err = ""
	}

	view := c.cellView(id, key, models.Cell{SubjectCode: subjectCode})
	c.metrics.RecordCellMutation("select_subject")
	c.observe()
	c.mu.Unlock()

	c.requestTeachers(req)
	return view, nil
}

// SelectTeacher assigns a teacher to a cell that already carries a subject. The previous
// teacher is released first. Conflicts are flagged on the returned view, or rejected when
// availability is enforced.
func (c *ScheduleController) SelectTeacher(id int, key models.TimeKey, teacherID string) (*models.CellView, error) {
	teacherID = strings.TrimSpace(teacherID)

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, err := c.store.GetCell(id, key)
	if err != nil {
		return c.storeFailure(err)
	}
	if prev.SubjectCode == "" {
		return nil, appErrors.Clone(appErrors.ErrTeacherWithoutSubject, "select a subject before choosing a teacher")
	}

	if teacherID != "" {
		if entry := c.candidates[prev.SubjectCode]; entry != nil && entry.status == models.CandidatesLoaded && !containsTeacher(entry.teachers, teacherID) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %s is not listed for subject %s", teacherID, prev.SubjectCode))
		}
		if conflictID, found := c.index.ConflictingRoutine(teacherID, key, id); found {
			conflict := &models.TeacherConflictError{
				TeacherID:     teacherID,
				Key:           key,
				RoutineID:     conflictID,
				RoutineNumber: models.DisplayNumber(c.store.IDs(), conflictID),
			}
			if c.cfg.EnforceAvailability {
				return nil, appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Error())
			}
			c.logger.Warn("teacher double-booked",
				zap.String("teacher_id", teacherID),
				zap.String("time_key", key.String()),
				zap.Int("routine_id", id),
				zap.Int("conflicting_routine_id", conflictID),
			)
		}
	}

	if err := c.store.SetCell(id, key, prev.SubjectCode, teacherID); err != nil {
		return c.storeFailure(err)
	}
	if prev.TeacherID != "" {
		c.index.Unassign(prev.TeacherID, key, id)
	}
	if teacherID != "" {
		c.index.Assign(teacherID, key, id)
	}

	c.metrics.RecordCellMutation("select_teacher")
	c.observe()
	return c.cellView(id, key, models.Cell{SubjectCode: prev.SubjectCode, TeacherID: teacherID}), nil
}

// ClearCell empties the cell and releases its teacher.
func (c *ScheduleController) ClearCell(id int, key models.TimeKey) (*models.CellView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, err := c.store.GetCell(id, key)
	if err == nil {
		err = c.store.SetCell(id, key, "", "")
	}
	if err != nil {
		return c.storeFailure(err)
	}
	if prev.TeacherID != "" {
		c.index.Unassign(prev.TeacherID, key, id)
	}

	c.metrics.RecordCellMutation("clear_cell")
	c.observe()
	return c.cellView(id, key, models.Cell{}), nil
}

// GetCell returns the cell view. A nil view means the routine does not exist.
func (c *ScheduleController) GetCell(id int, key models.TimeKey) (*models.CellView, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cell, err := c.store.GetCell(id, key)
	if err != nil {
		return c.storeFailure(err)
	}
	return c.cellView(id, key, cell), nil
}

// IsAvailable reports whether teacherID is free at key for routineID.
func (c *ScheduleController) IsAvailable(teacherID string, key models.TimeKey, routineID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.IsAvailable(teacherID, key, routineID)
}

// ConflictingRoutine returns another routine id holding teacherID at key.
func (c *ScheduleController) ConflictingRoutine(teacherID string, key models.TimeKey, routineID int) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.ConflictingRoutine(teacherID, key, routineID)
}

// ConflictDisplayNumber maps a routine id to its current 1-based position, or 0 when it no longer exists.
func (c *ScheduleController) ConflictDisplayNumber(routineID int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.DisplayNumber(c.store.IDs(), routineID)
}

// CheckAvailability combines IsAvailable and ConflictingRoutine with the display number of the conflict.
func (c *ScheduleController) CheckAvailability(teacherID string, key models.TimeKey, routineID int) models.Availability {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := models.Availability{TeacherID: teacherID, Day: key.Day, Slot: key.Slot, RoutineID: routineID, Available: true}
	if conflictID, found := c.index.ConflictingRoutine(teacherID, key, routineID); found {
		result.Available = false
		result.ConflictingRoutineID = conflictID
		result.ConflictingRoutineNumber = models.DisplayNumber(c.store.IDs(), conflictID)
	}
	return result
}

// Routines lists the live routines in display order.
func (c *ScheduleController) Routines() []models.RoutineSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.store.IDs()
	summaries := make([]models.RoutineSummary, 0, len(ids))
	for i, id := range ids {
		summaries = append(summaries, models.RoutineSummary{ID: id, Number: i + 1, AssignedCells: c.assignedCells(id)})
	}
	return summaries
}

// Routine returns the full grid view of one routine.
func (c *ScheduleController) Routine(id int) (*models.RoutineView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	routine, ok := c.store.Routine(id)
	if !ok {
		return nil, false
	}
	layout := c.store.Layout()
	view := &models.RoutineView{
		ID:     id,
		Number: models.DisplayNumber(c.store.IDs(), id),
		Days:   layout.Days,
		Rows:   make([]models.RowView, len(routine.Rows)),
	}
	for slot, row := range routine.Rows {
		rowView := models.RowView{Slot: slot, Time: row.TimeLabel()}
		switch typed := row.(type) {
		case *models.BreakRow:
			rowView.BreakLabel = typed.Label
		case *models.TeachingRow:
			rowView.Cells = make([]models.CellView, len(typed.Cells))
			for day, cell := range typed.Cells {
				rowView.Cells[day] = *c.cellView(id, models.TimeKey{Day: day, Slot: slot}, cell)
			}
		}
		view.Rows[slot] = rowView
	}
	return view, true
}

// Conflicts lists every double booking with current display numbers.
func (c *ScheduleController) Conflicts() []models.Conflict {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.store.IDs()
	conflicts := c.index.Conflicts()
	for i := range conflicts {
		numbers := make([]int, len(conflicts[i].RoutineIDs))
		for j, id := range conflicts[i].RoutineIDs {
			numbers[j] = models.DisplayNumber(ids, id)
		}
		conflicts[i].RoutineNumbers = numbers
	}
	return conflicts
}

// Snapshot returns a consistent copy of every live routine in display order.
func (c *ScheduleController) Snapshot() models.ScheduleSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := models.ScheduleSnapshot{Layout: c.store.Layout()}
	for _, id := range c.store.IDs() {
		routine, _ := c.store.Routine(id)
		snapshot.Routines = append(snapshot.Routines, routine)
	}
	return snapshot
}

// Candidates returns the teacher list for the subject on the cell.
func (c *ScheduleController) Candidates(id int, key models.TimeKey) (*models.TeacherCandidates, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cell, err := c.store.GetCell(id, key)
	if err != nil {
		if errors.Is(err, repository.ErrRoutineNotFound) {
			return nil, nil
		}
		return nil, translateStoreError(err)
	}
	result := &models.TeacherCandidates{SubjectCode: cell.SubjectCode, Status: models.CandidatesUnknown, Teachers: []models.TeacherOption{}}
	if cell.SubjectCode == "" {
		return result, nil
	}
	entry := c.candidates[cell.SubjectCode]
	if entry == nil {
		return result, nil
	}
	result.Status = entry.status
	result.Error = entry.err
	for _, teacher := range entry.teachers {
		result.Teachers = append(result.Teachers, models.TeacherOption{ID: teacher.ID, Name: teacher.Name})
	}
	return result, nil
}

// ApplyTeacherList stores a completed fetch in the subject's candidate cache. A result
// older than the newest one already applied, or issued before the subject was
// invalidated, is dropped. The cache is keyed by subject, so a fetch for a subject a
// cell has since left never touches the list of the cell's new subject.
func (c *ScheduleController) ApplyTeacherList(result models.TeacherFetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := result.Request
	if entry := c.candidates[req.SubjectCode]; entry != nil && req.Ticket < entry.ticket {
		c.metrics.RecordTeacherFetch("stale")
		c.logger.Debug("stale teacher fetch ignored",
			zap.String("subject_code", req.SubjectCode),
			zap.Uint64("ticket", req.Ticket),
			zap.Uint64("current_ticket", entry.ticket),
		)
		return
	}

	if result.Err != nil {
		c.candidates[req.SubjectCode] = &candidateEntry{status: models.CandidatesUnavailable, err: appErrors.ErrTeachersUnavailable.Message, ticket: req.Ticket}
		c.metrics.RecordTeacherFetch("failed")
		c.logger.Warn("teacher list unavailable", zap.String("subject_code", req.SubjectCode), zap.Error(result.Err))
		return
	}
	teachers := make([]models.Teacher, len(result.Teachers))
	copy(teachers, result.Teachers)
	c.candidates[req.SubjectCode] = &candidateEntry{status: models.CandidatesLoaded, teachers: teachers, ticket: req.Ticket}
	c.metrics.RecordTeacherFetch("loaded")
}

// InvalidateCandidates drops the cached teacher list of a subject after a catalog write and
// reloads it in the background. Fetches issued before the call can no longer land.
// Subjects never loaded are left alone.
func (c *ScheduleController) InvalidateCandidates(subjectCode string) {
	subjectCode = strings.TrimSpace(subjectCode)

	c.mu.Lock()
	entry := c.candidates[subjectCode]
	if entry == nil {
		c.mu.Unlock()
		return
	}
	c.nextTicket++
	req := models.TeacherFetchRequest{Ticket: c.nextTicket, SubjectCode: subjectCode}
	status := models.CandidatesLoading
	if c.fetcher == nil {
		status = models.CandidatesUnknown
	}
	// Names stay for display; an entry that is not loaded never gates SelectTeacher.
	c.candidates[subjectCode] = &candidateEntry{status: status, teachers: entry.teachers, ticket: req.Ticket}
	c.mu.Unlock()

	c.logger.Debug("teacher candidates invalidated", zap.String("subject_code", subjectCode), zap.Uint64("ticket", req.Ticket))
	c.requestTeachers(req)
}

// VerifyIndex rebuilds the index from the grids and reports any divergence from the live one.
func (c *ScheduleController) VerifyIndex() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expected := RebuildAssignmentIndex(c.store).Snapshot()
	actual := c.index.Snapshot()
	if !reflect.DeepEqual(expected, actual) {
		return fmt.Errorf("teacher assignment index diverged: rebuilt %v, live %v", expected, actual)
	}
	if conflicts := len(c.index.Conflicts()); conflicts != c.index.ConflictCount() {
		return fmt.Errorf("teacher assignment index counts %d conflicts, holds %d", c.index.ConflictCount(), conflicts)
	}
	for routineID, refs := range c.index.byRoutine {
		if !c.store.Exists(routineID) || len(refs) == 0 {
			return fmt.Errorf("teacher assignment index holds stale routine %d", routineID)
		}
	}
	return nil
}

func (c *ScheduleController) requestTeachers(req models.TeacherFetchRequest) {
	if c.fetcher == nil {
		return
	}
	if err := c.fetcher.Fetch(req, c.ApplyTeacherList); err != nil {
		c.ApplyTeacherList(models.TeacherFetchResult{Request: req, Err: err})
	}
}

func (c *ScheduleController) cellView(id int, key models.TimeKey, cell models.Cell) *models.CellView {
	view := &models.CellView{
		RoutineID:   id,
		Day:         key.Day,
		Slot:        key.Slot,
		SubjectCode: cell.SubjectCode,
		TeacherID:   cell.TeacherID,
		State:       cell.State(),
	}
	if cell.TeacherID != "" {
		if entry := c.candidates[cell.SubjectCode]; entry != nil {
			for _, teacher := range entry.teachers {
				if teacher.ID == cell.TeacherID {
					view.TeacherName = teacher.Name
					break
				}
			}
		}
		if conflictID, found := c.index.ConflictingRoutine(cell.TeacherID, key, id); found {
			view.ConflictingRoutineNumber = models.DisplayNumber(c.store.IDs(), conflictID)
		}
	}
	return view
}

func (c *ScheduleController) assignedCells(id int) int {
	routine, ok := c.store.Routine(id)
	if !ok {
		return 0
	}
	count := 0
	for _, row := range routine.Rows {
		if teaching, ok := row.(*models.TeachingRow); ok {
			for _, cell := range teaching.Cells {
				if cell.SubjectCode != "" {
					count++
				}
			}
		}
	}
	return count
}

func (c *ScheduleController) observe() {
	c.metrics.ObserveSchedule(c.store.Len(), c.index.ConflictCount())
}

// storeFailure turns a store error into the controller result: missing routines are a no-op.
func (c *ScheduleController) storeFailure(err error) (*models.CellView, error) {
	if errors.Is(err, repository.ErrRoutineNotFound) {
		return nil, nil
	}
	return nil, translateStoreError(err)
}

func translateStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrBreakRow):
		return appErrors.Clone(appErrors.ErrBreakRow, "")
	case errors.Is(err, repository.ErrTeacherWithoutSubject):
		return appErrors.Clone(appErrors.ErrTeacherWithoutSubject, "")
	case errors.Is(err, repository.ErrCellOutOfRange):
		return appErrors.Clone(appErrors.ErrCellOutOfRange, "")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update routine")
	}
}

func containsTeacher(teachers []models.Teacher, id string) bool {
	for _, teacher := range teachers {
		if teacher.ID == id {
			return true
		}
	}
	return false
}
