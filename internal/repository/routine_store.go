package repository

import (
	"errors"

	"github.com/noah-isme/routine-builder/internal/models"
)

// Errors reported by RoutineStore. Services translate them into typed API errors.
var (
	ErrRoutineNotFound       = errors.New("routine not found")
	ErrCellOutOfRange        = errors.New("cell outside routine grid")
	ErrBreakRow              = errors.New("break row is not schedulable")
	ErrTeacherWithoutSubject = errors.New("teacher requires a subject")
)

// RoutineStore keeps the ordered list of open routines and their grids in memory.
// It is not safe for concurrent use; ScheduleController serialises access.
type RoutineStore struct {
	layout   models.Layout
	order    []int
	routines map[int]*models.Routine
	nextID   int
}

// NewRoutineStore creates an empty store for the given grid layout.
func NewRoutineStore(layout models.Layout) *RoutineStore {
	return &RoutineStore{
		layout:   layout,
		routines: make(map[int]*models.Routine),
		nextID:   1,
	}
}

// Layout returns the grid shape shared by every routine.
func (s *RoutineStore) Layout() models.Layout {
	return s.layout
}

// AddRoutine appends a routine with an empty grid and returns its id. Ids are never reused.
func (s *RoutineStore) AddRoutine() int {
	id := s.nextID
	s.nextID++
	s.routines[id] = models.NewRoutine(id, s.layout)
	s.order = append(s.order, id)
	return id
}

// RemoveRoutine deletes the routine. It reports false when the id is unknown.
func (s *RoutineStore) RemoveRoutine(id int) bool {
	if _, ok := s.routines[id]; !ok {
		return false
	}
	delete(s.routines, id)
	for i, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Exists reports whether the routine is live.
func (s *RoutineStore) Exists(id int) bool {
	_, ok := s.routines[id]
	return ok
}

// IDs returns the live routine ids in display order.
func (s *RoutineStore) IDs() []int {
	ids := make([]int, len(s.order))
	copy(ids, s.order)
	return ids
}

// Len returns the number of live routines.
func (s *RoutineStore) Len() int {
	return len(s.order)
}

// Routine returns a copy of the routine grid.
func (s *RoutineStore) Routine(id int) (models.Routine, bool) {
	routine, ok := s.routines[id]
	if !ok {
		return models.Routine{}, false
	}
	return routine.Clone(), true
}

// GetCell returns the cell at (day, slot).
func (s *RoutineStore) GetCell(id int, key models.TimeKey) (models.Cell, error) {
	row, err := s.teachingRow(id, key)
	if err != nil {
		return models.Cell{}, err
	}
	return row.Cells[key.Day], nil
}

// SetCell overwrites a teaching cell.
func (s *RoutineStore) SetCell(id int, key models.TimeKey, subjectCode, teacherID string) error {
	cell := models.Cell{SubjectCode: subjectCode, TeacherID: teacherID}
	if !cell.Valid() {
		return ErrTeacherWithoutSubject
	}
	row, err := s.teachingRow(id, key)
	if err != nil {
		return err
	}
	row.Cells[key.Day] = cell
	return nil
}

// ForEachAssigned calls fn for every teaching cell holding a teacher, in display order.
func (s *RoutineStore) ForEachAssigned(fn func(routineID int, key models.TimeKey, cell models.Cell)) {
	for _, id := range s.order {
		for slot, row := range s.routines[id].Rows {
			teaching, ok := row.(*models.TeachingRow)
			if !ok {
				continue
			}
			for day, cell := range teaching.Cells {
				if cell.TeacherID != "" {
					fn(id, models.TimeKey{Day: day, Slot: slot}, cell)
				}
			}
		}
	}
}

func (s *RoutineStore) teachingRow(id int, key models.TimeKey) (*models.TeachingRow, error) {
	routine, ok := s.routines[id]
	if !ok {
		return nil, ErrRoutineNotFound
	}
	if !s.layout.Contains(key) {
		return nil, ErrCellOutOfRange
	}
	row, ok := routine.Rows[key.Slot].(*models.TeachingRow)
	if !ok {
		return nil, ErrBreakRow
	}
	return row, nil
}
