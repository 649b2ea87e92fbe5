package models

import "fmt"

// Availability answers whether a teacher may take a key in a routine.
type Availability struct {
	TeacherID                string `json:"teacher_id"`
	Day                      int    `json:"day"`
	Slot                     int    `json:"slot"`
	RoutineID                int    `json:"routine_id"`
	Available                bool   `json:"available"`
	ConflictingRoutineID     int    `json:"conflicting_routine_id,omitempty"`
	ConflictingRoutineNumber int    `json:"conflicting_routine_number,omitempty"`
}

// Conflict lists the routines sharing one teacher at one key.
type Conflict struct {
	TeacherID      string `json:"teacher_id"`
	Day            int    `json:"day"`
	Slot           int    `json:"slot"`
	RoutineIDs     []int  `json:"routine_ids"`
	RoutineNumbers []int  `json:"routine_numbers"`
}

// TeacherConflictError is returned when enforcement rejects a double booking.
type TeacherConflictError struct {
	TeacherID     string  `json:"teacher_id"`
	Key           TimeKey `json:"key"`
	RoutineID     int     `json:"routine_id"`
	RoutineNumber int     `json:"routine_number"`
}

// Error implements the error interface.
func (e *TeacherConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("teacher %s already scheduled at %s in routine %d", e.TeacherID, e.Key, e.RoutineNumber)
}
