package models

// CandidateStatus tracks the load state of a subject's teacher list.
type CandidateStatus string

const (
	CandidatesUnknown     CandidateStatus = "unknown"
	CandidatesLoading     CandidateStatus = "loading"
	CandidatesLoaded      CandidateStatus = "loaded"
	CandidatesUnavailable CandidateStatus = "unavailable"
)

// TeacherOption is a selectable teacher for a subject.
type TeacherOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TeacherCandidates is the teacher list for the subject currently on a cell.
type TeacherCandidates struct {
	SubjectCode string          `json:"subject_code,omitempty"`
	Status      CandidateStatus `json:"status"`
	Teachers    []TeacherOption `json:"teachers"`
	Error       string          `json:"error,omitempty"`
}

// TeacherFetchRequest asks for a subject's teachers on behalf of one cell.
type TeacherFetchRequest struct {
	Ticket      uint64
	RoutineID   int
	Key         TimeKey
	SubjectCode string
}

// TeacherFetchResult is delivered back when a fetch completes.
type TeacherFetchResult struct {
	Request  TeacherFetchRequest
	Teachers []Teacher
	Err      error
}
