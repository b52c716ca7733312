package exam

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type passRecorder struct {
	moduleIDs []string
	scores    []int
}

func (p *passRecorder) AttemptPassed(_ context.Context, _, moduleID string, score int, _ time.Time) error {
	p.moduleIDs = append(p.moduleIDs, moduleID)
	p.scores = append(p.scores, score)
	return nil
}

func seedLedger(t *testing.T) (*Ledger, Store, *fakeClock, *passRecorder) {
	t.Helper()
	store := NewInMemoryStore()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	hook := &passRecorder{}
	ledger := NewLedger(store, NewScorer(), hook, nil, clock.Now)

	e := Exam{
		ID:            "exam-1",
		ModuleID:      "mod-1",
		Title:         "Module 1 Final",
		PassingScore:  70,
		MaxAttempts:   3,
		RetryWaitDays: 7,
		RetryFeeCents: 2500,
		Questions: []Question{
			{ID: "q1", Type: QuestionMCQSingle, AnswerKey: "a"},
			{ID: "q2", Type: QuestionMCQSingle, AnswerKey: "b"},
		},
	}
	if err := store.PutExam(context.Background(), e); err != nil {
		t.Fatalf("put exam: %v", err)
	}
	return ledger, store, clock, hook
}

func failingSub() Submission {
	return Submission{Answers: map[string]string{"q1": "a", "q2": "x"}} // 50
}

func passingSub() Submission {
	return Submission{Answers: map[string]string{"q1": "a", "q2": "b"}} // 100
}

func TestLedger_SequentialAttemptNumbers(t *testing.T) {
	ledger, _, clock, _ := seedLedger(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		rec, err := ledger.RecordAttempt(ctx, "stu-1", "exam-1", failingSub())
		if err != nil {
			t.Fatalf("attempt %d: %v", want, err)
		}
		if rec.AttemptNumber != want {
			t.Fatalf("want attempt_number %d, got %d", want, rec.AttemptNumber)
		}
		if rec.Passed {
			t.Fatalf("50 must not pass 70")
		}
		clock.Advance(time.Hour)
	}

	list, err := ledger.ListAttempts(ctx, "stu-1", "exam-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, a := range list {
		if a.AttemptNumber != i+1 {
			t.Fatalf("ledger must be gapless 1..n, got %d at index %d", a.AttemptNumber, i)
		}
	}
}

func TestLedger_ExhaustedThenPaidRetryFlow(t *testing.T) {
	ledger, _, clock, hook := seedLedger(t)
	ctx := context.Background()

	// burn the three free attempts
	for i := 0; i < 3; i++ {
		if _, err := ledger.RecordAttempt(ctx, "stu-1", "exam-1", failingSub()); err != nil {
			t.Fatalf("free attempt: %v", err)
		}
	}
	lastSubmitted := clock.Now().UTC()

	// fourth submission denied with fee + unlock guidance
	_, err := ledger.RecordAttempt(ctx, "stu-1", "exam-1", failingSub())
	var denied *GateDenied
	if !errors.As(err, &denied) {
		t.Fatalf("want GateDenied, got %v", err)
	}
	if denied.Reason != DenyExhausted || denied.FeeRequiredCents != 2500 {
		t.Fatalf("unexpected denial: %+v", denied)
	}
	wantUnlock := lastSubmitted.Add(7 * 24 * time.Hour)
	if denied.UnlockAt == nil || !denied.UnlockAt.Equal(wantUnlock) {
		t.Fatalf("want unlock %v, got %v", wantUnlock, denied.UnlockAt)
	}

	// pay the fee
	p, err := ledger.CreateRetryPayment(ctx, "stu-1", "exam-1")
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if p.AmountCents != 2500 || p.Status != PaymentPending {
		t.Fatalf("unexpected payment: %+v", p)
	}
	p, err = ledger.ConfirmRetryPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if p.Status != PaymentPaid || p.RetryAvailableAt == nil {
		t.Fatalf("confirm must set paid status and availability: %+v", p)
	}

	// still waiting out the cooldown
	_, err = ledger.RecordAttempt(ctx, "stu-1", "exam-1", passingSub())
	if !errors.As(err, &denied) || denied.Reason != DenyCooldown {
		t.Fatalf("want cooldown denial, got %v", err)
	}

	// cooldown over: paid retry goes through and passes
	clock.Advance(7 * 24 * time.Hour)
	rec, err := ledger.RecordAttempt(ctx, "stu-1", "exam-1", passingSub())
	if err != nil {
		t.Fatalf("paid retry: %v", err)
	}
	if rec.AttemptNumber != 4 || !rec.IsPaidRetry || !rec.Passed {
		t.Fatalf("want passing paid attempt 4, got %+v", rec)
	}
	if len(hook.moduleIDs) != 1 || hook.moduleIDs[0] != "mod-1" {
		t.Fatalf("passing attempt must notify progress once, got %v", hook.moduleIDs)
	}

	// the payment funded exactly one attempt
	_, err = ledger.RecordAttempt(ctx, "stu-1", "exam-1", passingSub())
	if !errors.As(err, &denied) {
		t.Fatalf("fifth attempt must be denied again, got %v", err)
	}
}

// eventRecorder captures appended events; err, when set, fails every append.
type eventRecorder struct {
	types []string
	keys  []string
	err   error
}

func (e *eventRecorder) Append(_ context.Context, typ, key string, _ interface{}) error {
	if e.err != nil {
		return e.err
	}
	e.types = append(e.types, typ)
	e.keys = append(e.keys, key)
	return nil
}

func TestLedger_EmitsAttemptSubmittedEvents(t *testing.T) {
	store := NewInMemoryStore()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	events := &eventRecorder{}
	ledger := NewLedger(store, NewScorer(), nil, events, clock.Now)

	e := Exam{
		ID: "exam-1", ModuleID: "mod-1", PassingScore: 70, MaxAttempts: 3,
		Questions: []Question{{ID: "q1", Type: QuestionMCQSingle, AnswerKey: "a"}},
	}
	if err := store.PutExam(context.Background(), e); err != nil {
		t.Fatalf("put exam: %v", err)
	}

	var ids []string
	for i := 0; i < 2; i++ {
		rec, err := ledger.RecordAttempt(context.Background(), "stu-1", "exam-1",
			Submission{Answers: map[string]string{"q1": "a"}})
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		ids = append(ids, rec.ID)
		clock.Advance(time.Hour)
	}

	if len(events.types) != 2 {
		t.Fatalf("want one event per attempt, got %v", events.types)
	}
	for i, typ := range events.types {
		if typ != "AttemptSubmitted" {
			t.Fatalf("want AttemptSubmitted, got %q", typ)
		}
		if events.keys[i] != ids[i] {
			t.Fatalf("event key must be the attempt id: want %s, got %s", ids[i], events.keys[i])
		}
	}
}

func TestLedger_EventSinkFailureDoesNotFailAttempt(t *testing.T) {
	store := NewInMemoryStore()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	events := &eventRecorder{err: errors.New("feed down")}
	ledger := NewLedger(store, NewScorer(), nil, events, clock.Now)

	e := Exam{
		ID: "exam-1", ModuleID: "mod-1", PassingScore: 70, MaxAttempts: 3,
		Questions: []Question{{ID: "q1", Type: QuestionMCQSingle, AnswerKey: "a"}},
	}
	if err := store.PutExam(context.Background(), e); err != nil {
		t.Fatalf("put exam: %v", err)
	}

	rec, err := ledger.RecordAttempt(context.Background(), "stu-1", "exam-1",
		Submission{Answers: map[string]string{"q1": "a"}})
	if err != nil {
		t.Fatalf("a broken event sink must not block the submission: %v", err)
	}
	list, _ := store.ListAttempts(context.Background(), "stu-1", "exam-1")
	if len(list) != 1 || list[0].ID != rec.ID {
		t.Fatalf("attempt must be durable regardless of the sink, got %+v", list)
	}
}

func TestLedger_GateCheckDoesNotRecord(t *testing.T) {
	ledger, _, _, _ := seedLedger(t)
	ctx := context.Background()

	dec, err := ledger.GateCheck(ctx, "stu-1", "exam-1")
	if err != nil {
		t.Fatalf("gate check: %v", err)
	}
	if !dec.Allowed || dec.NextAttempt != 1 {
		t.Fatalf("fresh pair must be eligible for attempt 1, got %+v", dec)
	}
	list, err := ledger.ListAttempts(ctx, "stu-1", "exam-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("gate check must not append, got %d rows", len(list))
	}
}

func TestLedger_UnknownExam(t *testing.T) {
	ledger, _, _, _ := seedLedger(t)
	_, err := ledger.RecordAttempt(context.Background(), "stu-1", "nope", failingSub())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

// conflictStore injects append conflicts to simulate concurrent submissions.
type conflictStore struct {
	Store
	conflicts int
}

func (s *conflictStore) AppendAttempt(ctx context.Context, rec AttemptRecord, consumePaymentID string) error {
	if s.conflicts > 0 {
		s.conflicts--
		return ErrConflict
	}
	return s.Store.AppendAttempt(ctx, rec, consumePaymentID)
}

func TestLedger_RetriesConflictsTransparently(t *testing.T) {
	inner := NewInMemoryStore()
	cs := &conflictStore{Store: inner, conflicts: 2}
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledger := NewLedger(cs, NewScorer(), nil, nil, clock.Now)

	e := Exam{
		ID: "exam-1", ModuleID: "mod-1", PassingScore: 70, MaxAttempts: 3,
		Questions: []Question{{ID: "q1", Type: QuestionMCQSingle, AnswerKey: "a"}},
	}
	if err := inner.PutExam(context.Background(), e); err != nil {
		t.Fatalf("put exam: %v", err)
	}

	rec, err := ledger.RecordAttempt(context.Background(), "stu-1", "exam-1", Submission{Answers: map[string]string{"q1": "a"}})
	if err != nil {
		t.Fatalf("conflicts within budget must be retried: %v", err)
	}
	if rec.AttemptNumber != 1 {
		t.Fatalf("want attempt 1 after retries, got %d", rec.AttemptNumber)
	}
}

func TestLedger_EscalatesAfterRetryBudget(t *testing.T) {
	inner := NewInMemoryStore()
	cs := &conflictStore{Store: inner, conflicts: 10}
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledger := NewLedger(cs, NewScorer(), nil, nil, clock.Now)

	e := Exam{
		ID: "exam-1", ModuleID: "mod-1", PassingScore: 70, MaxAttempts: 3,
		Questions: []Question{{ID: "q1", Type: QuestionMCQSingle, AnswerKey: "a"}},
	}
	if err := inner.PutExam(context.Background(), e); err != nil {
		t.Fatalf("put exam: %v", err)
	}

	_, err := ledger.RecordAttempt(context.Background(), "stu-1", "exam-1", Submission{Answers: map[string]string{"q1": "a"}})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("persistent conflicts must escalate as ErrConflict, got %v", err)
	}
}

func TestLedger_PaymentNotApplicableWhileEligible(t *testing.T) {
	ledger, _, _, _ := seedLedger(t)
	_, err := ledger.CreateRetryPayment(context.Background(), "stu-1", "exam-1")
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("payment while still eligible must be rejected, got %v", err)
	}
}

func TestStore_PaymentConsumedAtMostOnce(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	paidAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	availAt := paidAt
	p := RetryPayment{ID: "pay-1", ExamID: "exam-1", StudentID: "stu-1",
		Status: PaymentPaid, PaidAt: &paidAt, RetryAvailableAt: &availAt}
	if err := store.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	first := AttemptRecord{ID: "a1", ExamID: "exam-1", StudentID: "stu-1", AttemptNumber: 4, IsPaidRetry: true}
	if err := store.AppendAttempt(ctx, first, "pay-1"); err != nil {
		t.Fatalf("first consume: %v", err)
	}

	second := AttemptRecord{ID: "a2", ExamID: "exam-1", StudentID: "stu-1", AttemptNumber: 5, IsPaidRetry: true}
	err := store.AppendAttempt(ctx, second, "pay-1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("double consumption must conflict, got %v", err)
	}
	// and the conflicting attempt must not have been appended
	list, _ := store.ListAttempts(ctx, "stu-1", "exam-1")
	if len(list) != 1 {
		t.Fatalf("failed consume must not leave a ledger row, got %d", len(list))
	}
}
