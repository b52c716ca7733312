package exam

import (
	"context"
	"time"
)

// AttemptListOpts filters ledger queries for the dashboards. Zero values mean
// "no filter".
type AttemptListOpts struct {
	ExamID    string
	StudentID string
	Limit     int
	Offset    int
}

// Store is the persistence boundary of the exam core. Implementations must
// provide the two atomic read-then-conditionally-write operations the
// correctness properties rest on: AppendAttempt rejects a duplicate
// (exam, student, attempt_number) with ErrConflict, and consumes the named
// payment in the same transaction or not at all.
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	// GetExam is the student-safe view: answer keys stripped.
	GetExam(ctx context.Context, id string) (Exam, error)
	// GetExamFull returns the exam with answer keys, for scoring and export.
	GetExamFull(ctx context.Context, id string) (Exam, error)

	// ListAttempts returns the full ledger for the pair in ascending
	// attempt_number order.
	ListAttempts(ctx context.Context, studentID, examID string) ([]AttemptRecord, error)
	// SearchAttempts is the filtered listing used by dashboards.
	SearchAttempts(ctx context.Context, opts AttemptListOpts) ([]AttemptRecord, error)
	// AppendAttempt inserts rec; when consumePaymentID is non-empty the
	// payment is marked consumed by rec in the same transaction. Returns
	// ErrConflict when either write loses a race.
	AppendAttempt(ctx context.Context, rec AttemptRecord, consumePaymentID string) error

	CreatePayment(ctx context.Context, p RetryPayment) error
	GetPayment(ctx context.Context, id string) (RetryPayment, error)
	// MarkPaymentPaid transitions pending -> paid; ErrConflict if the payment
	// is not pending.
	MarkPaymentPaid(ctx context.Context, id string, paidAt, availableAt time.Time) (RetryPayment, error)
	// ListPayments returns every retry payment for the pair in creation order.
	ListPayments(ctx context.Context, studentID, examID string) ([]RetryPayment, error)
}
