package exam

import "time"

// Question types understood by the scorer. Essay questions are graded by an
// external workflow; everything else is auto-graded against the answer key.
const (
	QuestionMCQSingle = "mcq_single"
	QuestionTrueFalse = "true_false"
	QuestionEssay     = "essay"
)

type Question struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	OrderIndex int      `json:"order_index"`
	Prompt     string   `json:"prompt,omitempty"`
	Choices    []string `json:"choices,omitempty"`
	AnswerKey  string   `json:"answer_key,omitempty"`
}

// Exam is the immutable configuration supplied by the authoring workflow.
// PassingScore is an integer percentage; RetryFeeCents may be zero, in which
// case only the cooldown applies once free attempts run out.
type Exam struct {
	ID            string     `json:"id"`
	ModuleID      string     `json:"module_id"`
	Title         string     `json:"title"`
	PassingScore  int        `json:"passing_score"`
	MaxAttempts   int        `json:"max_attempts"`
	RetryWaitDays int        `json:"retry_wait_days"`
	RetryFeeCents int64      `json:"retry_fee_cents"`
	Questions     []Question `json:"questions"`
	CreatedAt     int64      `json:"created_at,omitempty"`
}

// TotalQuestions counts every question, essay included. Unanswered questions
// stay in the scoring denominator.
func (e Exam) TotalQuestions() int { return len(e.Questions) }

// HasEssay reports whether the exam contains at least one essay question, in
// which case submissions must arrive pre-scored.
func (e Exam) HasEssay() bool {
	for _, q := range e.Questions {
		if q.Type == QuestionEssay {
			return true
		}
	}
	return false
}

// Submission is one student's answer set. Answers maps question ID to the
// chosen answer. PreScore carries the final score for essay exams, assigned
// by the external grading workflow before the submission reaches the scorer.
type Submission struct {
	Answers  map[string]string `json:"answers"`
	PreScore *int              `json:"pre_score,omitempty"`
}

// AttemptRecord is one row of the append-only attempt ledger. Rows are never
// updated or deleted; attempt numbers per (student, exam) are 1-based and
// gapless.
type AttemptRecord struct {
	ID            string    `json:"id"`
	ExamID        string    `json:"exam_id"`
	StudentID     string    `json:"student_id"`
	AttemptNumber int       `json:"attempt_number"`
	Score         int       `json:"score"`
	Passed        bool      `json:"passed"`
	IsPaidRetry   bool      `json:"is_paid_retry"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// RetryPayment statuses.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// RetryPayment unlocks exactly one further attempt after the free attempts
// are exhausted. ConsumedBy is set, at most once, to the attempt it funded.
type RetryPayment struct {
	ID               string     `json:"id"`
	ExamID           string     `json:"exam_id"`
	StudentID        string     `json:"student_id"`
	AmountCents      int64      `json:"amount_cents"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	RetryAvailableAt *time.Time `json:"retry_available_at,omitempty"`
	ConsumedBy       string     `json:"consumed_by,omitempty"`
}

// Consumable reports whether the payment can fund an attempt at time now.
func (p RetryPayment) Consumable(now time.Time) bool {
	return p.Status == PaymentPaid &&
		p.ConsumedBy == "" &&
		p.RetryAvailableAt != nil &&
		!p.RetryAvailableAt.After(now)
}
