package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// conflictRetries bounds the internal read-then-write retry loop before a
// race escalates to the caller.
const conflictRetries = 3

// ProgressHook is notified after a passing attempt is appended, so module
// progress and certification can be re-evaluated. Implemented by the
// progress service.
type ProgressHook interface {
	AttemptPassed(ctx context.Context, studentID, moduleID string, score int, completedAt time.Time) error
}

// EventSink receives append-only domain events for external consumers
// (notification/rendering pipelines). Implemented by the eventlog repo.
type EventSink interface {
	Append(ctx context.Context, typ, key string, data interface{}) error
}

// Ledger is the single source of truth for attempts. Every gating decision
// reads the ledger directly; there is no cached counter to drift.
type Ledger struct {
	store    Store
	scorer   *Scorer
	progress ProgressHook
	events   EventSink
	now      func() time.Time
	newID    func() string
}

// NewLedger wires the attempt ledger. progress and events may be nil.
func NewLedger(store Store, scorer *Scorer, progress ProgressHook, events EventSink, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:    store,
		scorer:   scorer,
		progress: progress,
		events:   events,
		now:      now,
		newID:    uuid.NewString,
	}
}

// GateCheck reports the current gate decision for the pair without recording
// anything.
func (l *Ledger) GateCheck(ctx context.Context, studentID, examID string) (GateDecision, error) {
	e, err := l.store.GetExamFull(ctx, examID)
	if err != nil {
		return GateDecision{}, err
	}
	attempts, err := l.store.ListAttempts(ctx, studentID, examID)
	if err != nil {
		return GateDecision{}, err
	}
	payments, err := l.store.ListPayments(ctx, studentID, examID)
	if err != nil {
		return GateDecision{}, err
	}
	return DecideGate(e, attempts, payments, l.now()), nil
}

// RecordAttempt runs the full submission pipeline: gate, scorer, append.
// Denials surface as *GateDenied; configuration problems as *ConfigError.
// Conflicting concurrent submissions are retried internally, so callers see
// gapless attempt numbers even under races.
func (l *Ledger) RecordAttempt(ctx context.Context, studentID, examID string, sub Submission) (AttemptRecord, error) {
	e, err := l.store.GetExamFull(ctx, examID)
	if err != nil {
		return AttemptRecord{}, err
	}

	for i := 0; i < conflictRetries; i++ {
		attempts, err := l.store.ListAttempts(ctx, studentID, examID)
		if err != nil {
			return AttemptRecord{}, err
		}
		payments, err := l.store.ListPayments(ctx, studentID, examID)
		if err != nil {
			return AttemptRecord{}, err
		}

		dec := DecideGate(e, attempts, payments, l.now())
		if !dec.Allowed {
			return AttemptRecord{}, dec.Denial
		}

		res, err := l.scorer.Score(e, sub)
		if err != nil {
			return AttemptRecord{}, err
		}

		rec := AttemptRecord{
			ID:            l.newID(),
			ExamID:        examID,
			StudentID:     studentID,
			AttemptNumber: dec.NextAttempt,
			Score:         res.Score,
			Passed:        res.Passed,
			IsPaidRetry:   dec.IsPaidRetry,
			SubmittedAt:   l.now().UTC(),
		}
		if err := l.store.AppendAttempt(ctx, rec, dec.PaymentID); err != nil {
			if errors.Is(err, ErrConflict) {
				continue // somebody else got attempt N; re-derive and retry
			}
			return AttemptRecord{}, err
		}

		if l.events != nil {
			// the attempt is already durable; a lost event only delays
			// downstream consumers, so log and move on
			if err := l.events.Append(ctx, "AttemptSubmitted", rec.ID, rec); err != nil {
				log.Printf("eventlog: append AttemptSubmitted %s: %v", rec.ID, err)
			}
		}
		if rec.Passed && l.progress != nil {
			if err := l.progress.AttemptPassed(ctx, studentID, e.ModuleID, rec.Score, rec.SubmittedAt); err != nil {
				return rec, fmt.Errorf("attempt %s recorded, progress update failed: %w", rec.ID, err)
			}
		}
		return rec, nil
	}
	return AttemptRecord{}, fmt.Errorf("record attempt %s/%s: %w", studentID, examID, ErrConflict)
}

// ListAttempts returns the pair's ledger in ascending attempt_number order.
// Replayable: the same call yields the same rows until a new attempt lands.
func (l *Ledger) ListAttempts(ctx context.Context, studentID, examID string) ([]AttemptRecord, error) {
	return l.store.ListAttempts(ctx, studentID, examID)
}

// SearchAttempts is the filtered listing for dashboards.
func (l *Ledger) SearchAttempts(ctx context.Context, opts AttemptListOpts) ([]AttemptRecord, error) {
	return l.store.SearchAttempts(ctx, opts)
}

// CreateRetryPayment opens a pending payment of the exam's configured fee.
// Only meaningful in the Exhausted-Unpaid state; anywhere else the student
// either still has free attempts or already holds a usable payment.
func (l *Ledger) CreateRetryPayment(ctx context.Context, studentID, examID string) (RetryPayment, error) {
	e, err := l.store.GetExamFull(ctx, examID)
	if err != nil {
		return RetryPayment{}, err
	}
	if e.RetryFeeCents == 0 {
		return RetryPayment{}, configErrorf("exam %s has no retry fee; wait for the cooldown instead", examID)
	}
	dec, err := l.GateCheck(ctx, studentID, examID)
	if err != nil {
		return RetryPayment{}, err
	}
	if dec.State != GateExhaustedUnpaid {
		return RetryPayment{}, configErrorf("retry payment not applicable in state %s", dec.State)
	}
	p := RetryPayment{
		ID:          l.newID(),
		ExamID:      examID,
		StudentID:   studentID,
		AmountCents: e.RetryFeeCents,
		Status:      PaymentPending,
		CreatedAt:   l.now().UTC(),
	}
	if err := l.store.CreatePayment(ctx, p); err != nil {
		return RetryPayment{}, err
	}
	return p, nil
}

// ConfirmRetryPayment marks a pending payment paid. The cooldown starts at
// confirmation time: retry_available_at = paid_at + retry_wait_days.
func (l *Ledger) ConfirmRetryPayment(ctx context.Context, paymentID string) (RetryPayment, error) {
	p, err := l.store.GetPayment(ctx, paymentID)
	if err != nil {
		return RetryPayment{}, err
	}
	e, err := l.store.GetExamFull(ctx, p.ExamID)
	if err != nil {
		return RetryPayment{}, err
	}
	paidAt := l.now().UTC()
	availableAt := paidAt.Add(time.Duration(e.RetryWaitDays) * 24 * time.Hour)
	return l.store.MarkPaymentPaid(ctx, paymentID, paidAt, availableAt)
}
