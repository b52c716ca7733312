package exam

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore backs offline/dev mode and tests. It enforces the same
// conditional-write semantics as the SQL store: duplicate attempt numbers and
// double-consumed payments come back as ErrConflict, and an attempt append
// plus payment consumption succeed or fail together.
type memoryStore struct {
	mu       sync.Mutex
	exams    map[string]Exam
	attempts []AttemptRecord
	payments []RetryPayment
}

func NewInMemoryStore() Store {
	return &memoryStore{exams: map[string]Exam{}}
}

func (m *memoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[e.ID] = e
	return nil
}

func (m *memoryStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := m.GetExamFull(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	return stripAnswerKeys(e), nil
}

func (m *memoryStore) GetExamFull(_ context.Context, id string) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, studentID, examID string) ([]AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AttemptRecord
	for _, a := range m.attempts {
		if a.StudentID == studentID && a.ExamID == examID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (m *memoryStore) SearchAttempts(_ context.Context, opts AttemptListOpts) ([]AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AttemptRecord
	for _, a := range m.attempts {
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.StudentID != "" && a.StudentID != opts.StudentID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) AppendAttempt(_ context.Context, rec AttemptRecord, consumePaymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ExamID == rec.ExamID && a.StudentID == rec.StudentID && a.AttemptNumber == rec.AttemptNumber {
			return ErrConflict
		}
	}
	if consumePaymentID != "" {
		idx := -1
		for i, p := range m.payments {
			if p.ID == consumePaymentID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		p := m.payments[idx]
		if p.Status != PaymentPaid || p.ConsumedBy != "" {
			return ErrConflict
		}
		m.payments[idx].ConsumedBy = rec.ID
	}
	m.attempts = append(m.attempts, rec)
	return nil
}

func (m *memoryStore) CreatePayment(_ context.Context, p RetryPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
	return nil
}

func (m *memoryStore) GetPayment(_ context.Context, id string) (RetryPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return RetryPayment{}, ErrNotFound
}

func (m *memoryStore) MarkPaymentPaid(_ context.Context, id string, paidAt, availableAt time.Time) (RetryPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.payments {
		if p.ID != id {
			continue
		}
		if p.Status != PaymentPending {
			return RetryPayment{}, ErrConflict
		}
		m.payments[i].Status = PaymentPaid
		m.payments[i].PaidAt = &paidAt
		m.payments[i].RetryAvailableAt = &availableAt
		return m.payments[i], nil
	}
	return RetryPayment{}, ErrNotFound
}

func (m *memoryStore) ListPayments(_ context.Context, studentID, examID string) ([]RetryPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RetryPayment
	for _, p := range m.payments {
		if p.StudentID == studentID && p.ExamID == examID {
			out = append(out, p)
		}
	}
	return out, nil
}

func stripAnswerKeys(e Exam) Exam {
	qs := make([]Question, len(e.Questions))
	copy(qs, e.Questions)
	for i := range qs {
		qs[i].AnswerKey = ""
	}
	e.Questions = qs
	return e
}
