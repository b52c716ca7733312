package progress

import "time"

// Course groups an ordered, strictly linear sequence of modules.
type Course struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Module belongs to one course. OrderIndex is unique within the course and
// defines the unlock order. ExamID is empty while the authoring workflow has
// not attached an exam yet; such a module blocks certification.
type Module struct {
	ID         string `json:"id"`
	CourseID   string `json:"course_id"`
	Title      string `json:"title"`
	OrderIndex int    `json:"order_index"`
	ExamID     string `json:"exam_id,omitempty"`
}

// ModuleProgress exists only as a side effect of a passing attempt. Passed
// is never reverted to false once set.
type ModuleProgress struct {
	StudentID   string    `json:"student_id"`
	ModuleID    string    `json:"module_id"`
	Passed      bool      `json:"passed"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completed_at"`
}

// Certificate is issued at most once per (student, course), when every
// module of the course is passed. Immutable after issuance.
type Certificate struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"student_id"`
	CourseID         string    `json:"course_id"`
	VerificationCode string    `json:"verification_code"`
	IssuedAt         time.Time `json:"issued_at"`
}

// ModuleStatus is the per-module view rendered by the course navigation.
type ModuleStatus struct {
	Module   Module `json:"module"`
	Unlocked bool   `json:"unlocked"`
	Passed   bool   `json:"passed"`
	Score    int    `json:"score,omitempty"`
}
