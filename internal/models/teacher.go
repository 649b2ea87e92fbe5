package models

import "time"

// Teacher is an instructor listed under a subject.
type Teacher struct {
	ID          string    `db:"id" json:"id"`
	SubjectCode string    `db:"subject_code" json:"subject_code"`
	Name        string    `db:"name" json:"name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
