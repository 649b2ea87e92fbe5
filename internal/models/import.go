package models

// ImportError reports a rejected line.
type ImportError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	SubjectsUpserted int           `json:"subjects_upserted"`
	TeachersAdded    int           `json:"teachers_added"`
	Skipped          int           `json:"skipped"`
	Errors           []ImportError `json:"errors"`
}
