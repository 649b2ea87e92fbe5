package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/routine-builder/internal/models"
)

var monNine = models.TimeKey{Day: 0, Slot: 0}

func TestTeacherAssignmentIndexAssignIsIdempotent(t *testing.T) {
	index := NewTeacherAssignmentIndex()
	index.Assign("T1", monNine, 1)
	index.Assign("T1", monNine, 1)

	assert.Equal(t, []int{1}, index.Routines("T1", monNine))
	assert.True(t, index.IsAvailable("T1", monNine, 1))
	assert.False(t, index.IsAvailable("T1", monNine, 2))

	index.Assign("", monNine, 1)
	assert.Equal(t, 1, index.Len())
}

func TestTeacherAssignmentIndexUnassignPrunesEmptyEntries(t *testing.T) {
	index := NewTeacherAssignmentIndex()
	index.Assign("T1", monNine, 1)
	index.Assign("T1", models.TimeKey{Day: 1, Slot: 0}, 1)

	index.Unassign("T1", monNine, 1)
	snapshot := index.Snapshot()
	require.Contains(t, snapshot, "T1")
	assert.NotContains(t, snapshot["T1"], monNine)

	index.Unassign("T1", models.TimeKey{Day: 1, Slot: 0}, 1)
	assert.Empty(t, index.Snapshot())
	assert.Equal(t, 0, index.Len())
	assert.Empty(t, index.byRoutine)

	index.Unassign("missing", monNine, 4)
	index.Unassign("T1", monNine, 4)
}

func TestTeacherAssignmentIndexConflictingRoutine(t *testing.T) {
	index := NewTeacherAssignmentIndex()
	_, found := index.ConflictingRoutine("T1", monNine, 1)
	assert.False(t, found)

	index.Assign("T1", monNine, 3)
	index.Assign("T1", monNine, 1)
	index.Assign("T1", monNine, 2)

	id, found := index.ConflictingRoutine("T1", monNine, 1)
	require.True(t, found)
	assert.Equal(t, 2, id)

	id, found = index.ConflictingRoutine("T1", monNine, 2)
	require.True(t, found)
	assert.Equal(t, 1, id)
}

func TestTeacherAssignmentIndexAvailabilitySymmetry(t *testing.T) {
	index := NewTeacherAssignmentIndex()
	index.Assign("T1", monNine, 1)
	index.Assign("T2", monNine, 1)
	index.Assign("T2", monNine, 2)

	for _, teacher := range []string{"T1", "T2", "T3"} {
		for _, routine := range []int{1, 2, 3} {
			_, conflict := index.ConflictingRoutine(teacher, monNine, routine)
			assert.Equal(t, !conflict, index.IsAvailable(teacher, monNine, routine), "%s/%d", teacher, routine)
		}
	}
}

func TestTeacherAssignmentIndexPurgeRoutine(t *testing.T) {
	index := NewTeacherAssignmentIndex()
	for _, routine := range []int{1, 2, 3} {
		index.Assign("T1", monNine, routine)
	}
	index.Assign("T2", models.TimeKey{Day: 4, Slot: 7}, 2)

	removed := index.PurgeRoutine(2)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []int{1, 3}, index.Routines("T1", monNine))
	assert.NotContains(t, index.Snapshot(), "T2")

	id, found := index.ConflictingRoutine("T1", monNine, 1)
	require.True(t, found)
	assert.Equal(t, 3, id)

	assert.Equal(t, 0, index.PurgeRoutine(2))
}

func TestTeacherAssignmentIndexConflicts(t *testing.T) {
	index := NewTeacherAssignmentIndex()
	index.Assign("T2", monNine, 1)
	index.Assign("T2", monNine, 2)
	index.Assign("T1", models.TimeKey{Day: 1, Slot: 1}, 1)
	index.Assign("T1", models.TimeKey{Day: 1, Slot: 1}, 3)
	index.Assign("T3", monNine, 1)

	conflicts := index.Conflicts()
	require.Len(t, conflicts, 2)
	assert.Equal(t, "T1", conflicts[0].TeacherID)
	assert.Equal(t, []int{1, 3}, conflicts[0].RoutineIDs)
	assert.Equal(t, "T2", conflicts[1].TeacherID)
	assert.Equal(t, []int{1, 2}, conflicts[1].RoutineIDs)
}

func TestTeacherAssignmentIndexConflictCountTracksMutations(t *testing.T) {
	index := NewTeacherAssignmentIndex()
	tueTen := models.TimeKey{Day: 1, Slot: 1}

	index.Assign("T1", monNine, 1)
	assert.Equal(t, 0, index.ConflictCount())

	index.Assign("T1", monNine, 2)
	index.Assign("T1", monNine, 2)
	index.Assign("T1", monNine, 3)
	assert.Equal(t, 1, index.ConflictCount())

	index.Assign("T2", tueTen, 1)
	index.Assign("T2", tueTen, 3)
	assert.Equal(t, 2, index.ConflictCount())
	assert.Len(t, index.Conflicts(), index.ConflictCount())

	index.Unassign("T1", monNine, 9)
	index.Unassign("T1", monNine, 2)
	assert.Equal(t, 2, index.ConflictCount())
	index.Unassign("T1", monNine, 3)
	assert.Equal(t, 1, index.ConflictCount())

	index.PurgeRoutine(3)
	assert.Equal(t, 0, index.ConflictCount())
	assert.Empty(t, index.Conflicts())
}
