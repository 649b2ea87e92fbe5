package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/routine-builder/internal/models"
)

func TestRoutineStoreAddRemove(t *testing.T) {
	store := NewRoutineStore(models.DefaultLayout())

	first := store.AddRoutine()
	second := store.AddRoutine()
	third := store.AddRoutine()
	assert.Equal(t, []int{first, second, third}, store.IDs())

	assert.True(t, store.RemoveRoutine(second))
	assert.False(t, store.RemoveRoutine(second))
	assert.Equal(t, []int{first, third}, store.IDs())
	assert.Equal(t, 2, store.Len())

	fourth := store.AddRoutine()
	assert.NotEqual(t, second, fourth)
	assert.Equal(t, 3, models.DisplayNumber(store.IDs(), fourth))
}

func TestRoutineStoreSetAndGetCell(t *testing.T) {
	store := NewRoutineStore(models.DefaultLayout())
	id := store.AddRoutine()
	key := models.TimeKey{Day: 0, Slot: 0}

	require.NoError(t, store.SetCell(id, key, "CS101", "t1"))
	cell, err := store.GetCell(id, key)
	require.NoError(t, err)
	assert.Equal(t, models.Cell{SubjectCode: "CS101", TeacherID: "t1"}, cell)

	other, err := store.GetCell(id, models.TimeKey{Day: 1, Slot: 0})
	require.NoError(t, err)
	assert.Equal(t, models.CellEmpty, other.State())
}

func TestRoutineStoreRejectsInvalidWrites(t *testing.T) {
	store := NewRoutineStore(models.DefaultLayout())
	id := store.AddRoutine()

	assert.ErrorIs(t, store.SetCell(id, models.TimeKey{Day: 0, Slot: 3}, "CS101", ""), ErrBreakRow)
	assert.ErrorIs(t, store.SetCell(id, models.TimeKey{Day: 0, Slot: 0}, "", "t1"), ErrTeacherWithoutSubject)
	assert.ErrorIs(t, store.SetCell(id, models.TimeKey{Day: 9, Slot: 0}, "CS101", ""), ErrCellOutOfRange)
	assert.ErrorIs(t, store.SetCell(id+1, models.TimeKey{Day: 0, Slot: 0}, "CS101", ""), ErrRoutineNotFound)

	_, err := store.GetCell(id, models.TimeKey{Day: 0, Slot: 3})
	assert.ErrorIs(t, err, ErrBreakRow)

	cell, err := store.GetCell(id, models.TimeKey{Day: 0, Slot: 0})
	require.NoError(t, err)
	assert.Equal(t, models.Cell{}, cell)
}

func TestRoutineStoreForEachAssigned(t *testing.T) {
	store := NewRoutineStore(models.DefaultLayout())
	first := store.AddRoutine()
	second := store.AddRoutine()
	require.NoError(t, store.SetCell(second, models.TimeKey{Day: 2, Slot: 4}, "MATH", "t2"))
	require.NoError(t, store.SetCell(first, models.TimeKey{Day: 0, Slot: 0}, "CS101", "t1"))
	require.NoError(t, store.SetCell(first, models.TimeKey{Day: 1, Slot: 0}, "CS101", ""))

	var seen []int
	store.ForEachAssigned(func(routineID int, key models.TimeKey, cell models.Cell) {
		seen = append(seen, routineID)
		assert.NotEmpty(t, cell.TeacherID)
	})
	assert.Equal(t, []int{first, second}, seen)
}

func TestRoutineStoreRoutineReturnsCopy(t *testing.T) {
	store := NewRoutineStore(models.DefaultLayout())
	id := store.AddRoutine()

	routine, ok := store.Routine(id)
	require.True(t, ok)
	routine.Rows[0].(*models.TeachingRow).Cells[0].SubjectCode = "HACK"

	cell, err := store.GetCell(id, models.TimeKey{})
	require.NoError(t, err)
	assert.Empty(t, cell.SubjectCode)

	_, ok = store.Routine(id + 10)
	assert.False(t, ok)
}
