package service

import (
	"sort"

	"github.com/noah-isme/routine-builder/internal/models"
)

type assignmentRef struct {
	teacherID string
	key       models.TimeKey
}

// TeacherAssignmentIndex maps teacher -> time key -> routines using that teacher at that key.
// It is a cache derivable from the routine grids and never inspects them itself. Empty
// key sets and empty teacher entries are removed eagerly. A reverse index per routine lets
// PurgeRoutine avoid a full scan.
type TeacherAssignmentIndex struct {
	entries   map[string]map[models.TimeKey]map[int]struct{}
	byRoutine map[int]map[assignmentRef]struct{}
	// conflicts counts (teacher, key) pairs held by two or more routines.
	conflicts int
}

// NewTeacherAssignmentIndex creates an empty index.
func NewTeacherAssignmentIndex() *TeacherAssignmentIndex {
	return &TeacherAssignmentIndex{
		entries:   make(map[string]map[models.TimeKey]map[int]struct{}),
		byRoutine: make(map[int]map[assignmentRef]struct{}),
	}
}

// Assign records routineID at (teacherID, key). Re-adding is a no-op.
func (x *TeacherAssignmentIndex) Assign(teacherID string, key models.TimeKey, routineID int) {
	if teacherID == "" {
		return
	}
	keys, ok := x.entries[teacherID]
	if !ok {
		keys = make(map[models.TimeKey]map[int]struct{})
		x.entries[teacherID] = keys
	}
	routines, ok := keys[key]
	if !ok {
		routines = make(map[int]struct{})
		keys[key] = routines
	}
	if _, held := routines[routineID]; !held {
		routines[routineID] = struct{}{}
		if len(routines) == 2 {
			x.conflicts++
		}
	}

	refs, ok := x.byRoutine[routineID]
	if !ok {
		refs = make(map[assignmentRef]struct{})
		x.byRoutine[routineID] = refs
	}
	refs[assignmentRef{teacherID: teacherID, key: key}] = struct{}{}
}

// Unassign removes routineID from (teacherID, key), pruning emptied entries.
func (x *TeacherAssignmentIndex) Unassign(teacherID string, key models.TimeKey, routineID int) {
	keys, ok := x.entries[teacherID]
	if !ok {
		return
	}
	routines, ok := keys[key]
	if !ok {
		return
	}
	if _, held := routines[routineID]; !held {
		return
	}
	delete(routines, routineID)
	if len(routines) == 1 {
		x.conflicts--
	}
	if len(routines) == 0 {
		delete(keys, key)
	}
	if len(keys) == 0 {
		delete(x.entries, teacherID)
	}

	if refs, ok := x.byRoutine[routineID]; ok {
		delete(refs, assignmentRef{teacherID: teacherID, key: key})
		if len(refs) == 0 {
			delete(x.byRoutine, routineID)
		}
	}
}

// PurgeRoutine removes every entry referencing routineID and returns how many were removed.
func (x *TeacherAssignmentIndex) PurgeRoutine(routineID int) int {
	refs := x.byRoutine[routineID]
	removed := 0
	for ref := range refs {
		x.Unassign(ref.teacherID, ref.key, routineID)
		removed++
	}
	delete(x.byRoutine, routineID)
	return removed
}

// IsAvailable is true when the teacher holds nothing at key other than routineID itself.
func (x *TeacherAssignmentIndex) IsAvailable(teacherID string, key models.TimeKey, routineID int) bool {
	_, conflict := x.ConflictingRoutine(teacherID, key, routineID)
	return !conflict
}

// ConflictingRoutine returns the lowest routine id other than routineID holding the teacher at key.
func (x *TeacherAssignmentIndex) ConflictingRoutine(teacherID string, key models.TimeKey, routineID int) (int, bool) {
	found := false
	lowest := 0
	for id := range x.entries[teacherID][key] {
		if id == routineID {
			continue
		}
		if !found || id < lowest {
			lowest = id
			found = true
		}
	}
	return lowest, found
}

// Routines returns the sorted routine ids holding the teacher at key.
func (x *TeacherAssignmentIndex) Routines(teacherID string, key models.TimeKey) []int {
	set := x.entries[teacherID][key]
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Conflicts lists every (teacher, key) held by two or more routines, sorted by teacher then key.
func (x *TeacherAssignmentIndex) Conflicts() []models.Conflict {
	var conflicts []models.Conflict
	for teacherID, keys := range x.entries {
		for key, routines := range keys {
			if len(routines) < 2 {
				continue
			}
			conflicts = append(conflicts, models.Conflict{
				TeacherID:  teacherID,
				Day:        key.Day,
				Slot:       key.Slot,
				RoutineIDs: x.Routines(teacherID, key),
			})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.TeacherID != b.TeacherID {
			return a.TeacherID < b.TeacherID
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Slot < b.Slot
	})
	return conflicts
}

// ConflictCount returns how many (teacher, key) pairs are held by two or more routines.
func (x *TeacherAssignmentIndex) ConflictCount() int {
	return x.conflicts
}

// Len returns the number of teachers with at least one assignment.
func (x *TeacherAssignmentIndex) Len() int {
	return len(x.entries)
}

// Snapshot returns a copy of the index as teacher -> key -> sorted routine ids.
func (x *TeacherAssignmentIndex) Snapshot() map[string]map[models.TimeKey][]int {
	out := make(map[string]map[models.TimeKey][]int, len(x.entries))
	for teacherID, keys := range x.entries {
		copied := make(map[models.TimeKey][]int, len(keys))
		for key := range keys {
			copied[key] = x.Routines(teacherID, key)
		}
		out[teacherID] = copied
	}
	return out
}
