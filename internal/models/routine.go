package models

// CellState is the lifecycle position of a teaching cell.
type CellState string

const (
	CellEmpty             CellState = "EMPTY"
	CellSubjectOnly       CellState = "SUBJECT_ONLY"
	CellSubjectAndTeacher CellState = "SUBJECT_AND_TEACHER"
)

// Cell holds the subject and the dependent teacher selection of one teaching slot.
type Cell struct {
	SubjectCode string `json:"subject_code,omitempty"`
	TeacherID   string `json:"teacher_id,omitempty"`
}

// State derives the cell lifecycle state.
func (c Cell) State() CellState {
	switch {
	case c.SubjectCode == "":
		return CellEmpty
	case c.TeacherID == "":
		return CellSubjectOnly
	default:
		return CellSubjectAndTeacher
	}
}

// Valid reports whether the teacher-requires-subject invariant holds.
func (c Cell) Valid() bool {
	return c.TeacherID == "" || c.SubjectCode != ""
}

// Row is either a TeachingRow or a BreakRow.
type Row interface {
	TimeLabel() string
	isRow()
}

// TeachingRow carries one cell per day.
type TeachingRow struct {
	Time  string
	Cells []Cell
}

// BreakRow is a label-only row that never holds cells.
type BreakRow struct {
	Time  string
	Label string
}

func (r *TeachingRow) TimeLabel() string { return r.Time }
func (r *BreakRow) TimeLabel() string    { return r.Time }

func (*TeachingRow) isRow() {}
func (*BreakRow) isRow()    {}

// Routine is one weekly timetable.
type Routine struct {
	ID   int
	Rows []Row
}

// NewRoutine creates a routine with every teaching cell unset.
func NewRoutine(id int, layout Layout) *Routine {
	rows := make([]Row, len(layout.Rows))
	for i, spec := range layout.Rows {
		if spec.IsBreak() {
			rows[i] = &BreakRow{Time: spec.Label, Label: spec.BreakLabel}
			continue
		}
		rows[i] = &TeachingRow{Time: spec.Label, Cells: make([]Cell, len(layout.Days))}
	}
	return &Routine{ID: id, Rows: rows}
}

// Clone returns a deep copy safe to hand outside the owning store.
func (r *Routine) Clone() Routine {
	rows := make([]Row, len(r.Rows))
	for i, row := range r.Rows {
		switch typed := row.(type) {
		case *TeachingRow:
			cells := make([]Cell, len(typed.Cells))
			copy(cells, typed.Cells)
			rows[i] = &TeachingRow{Time: typed.Time, Cells: cells}
		case *BreakRow:
			cp := *typed
			rows[i] = &cp
		}
	}
	return Routine{ID: r.ID, Rows: rows}
}

// DisplayNumber returns the 1-based position of id within the ordered live routine ids, or 0 when absent.
func DisplayNumber(order []int, id int) int {
	for i, candidate := range order {
		if candidate == id {
			return i + 1
		}
	}
	return 0
}

// RoutineSummary lists a routine with its current display number.
type RoutineSummary struct {
	ID            int `json:"id"`
	Number        int `json:"number"`
	AssignedCells int `json:"assigned_cells"`
}

// CellView is the externally visible state of a cell.
type CellView struct {
	RoutineID                int       `json:"routine_id"`
	Day                      int       `json:"day"`
	Slot                     int       `json:"slot"`
	SubjectCode              string    `json:"subject_code,omitempty"`
	TeacherID                string    `json:"teacher_id,omitempty"`
	TeacherName              string    `json:"teacher_name,omitempty"`
	State                    CellState `json:"state"`
	ConflictingRoutineNumber int       `json:"conflicting_routine_number,omitempty"`
}

// RowView renders a grid row; Cells is empty for break rows.
type RowView struct {
	Slot       int        `json:"slot"`
	Time       string     `json:"time"`
	BreakLabel string     `json:"break_label,omitempty"`
	Cells      []CellView `json:"cells,omitempty"`
}

// RoutineView is the full grid of one routine.
type RoutineView struct {
	ID     int       `json:"id"`
	Number int       `json:"number"`
	Days   []string  `json:"days"`
	Rows   []RowView `json:"rows"`
}
