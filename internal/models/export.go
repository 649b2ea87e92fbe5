package models

// CellKind distinguishes teaching cells from break labels in exports.
type CellKind string

const (
	CellKindTeaching CellKind = "teaching"
	CellKindBreak    CellKind = "break"
)

// Placeholder texts used when a name cannot be resolved or a cell is empty.
const (
	NoSubjectText      = "No Subject"
	UnknownSubjectName = "Unknown"
	UnknownTeacherName = "Teacher not found"
)

// ResolvedCell is a display tuple with every id already resolved to names.
type ResolvedCell struct {
	Kind        CellKind `json:"kind"`
	SubjectCode string   `json:"subject_code,omitempty"`
	SubjectName string   `json:"subject_name,omitempty"`
	TeacherName string   `json:"teacher_name,omitempty"`
	Label       string   `json:"label,omitempty"`
}

// Text renders the cell the way printed timetables show it.
func (c ResolvedCell) Text() string {
	switch {
	case c.Kind == CellKindBreak:
		return c.Label
	case c.SubjectCode == "":
		return NoSubjectText
	case c.TeacherName == "":
		return "[" + c.SubjectCode + "] " + c.SubjectName
	default:
		return "[" + c.SubjectCode + "] " + c.SubjectName + "\n" + c.TeacherName
	}
}

// ResolvedDay holds one day's cells in slot order.
type ResolvedDay struct {
	Day   string         `json:"day"`
	Cells []ResolvedCell `json:"cells"`
}

// ResolvedRoutine is one routine ready for rendering.
type ResolvedRoutine struct {
	ID     int           `json:"id"`
	Number int           `json:"number"`
	Days   []ResolvedDay `json:"days"`
}

// ResolvedSchedule is every live routine ready for rendering.
type ResolvedSchedule struct {
	Title      string            `json:"title"`
	TimeLabels []string          `json:"time_labels"`
	Routines   []ResolvedRoutine `json:"routines"`
}

// ScheduleSnapshot is a consistent copy of the live routines in display order.
type ScheduleSnapshot struct {
	Layout   Layout
	Routines []Routine
}
