package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skillpath/skillpath-lms/internal/exam"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seedCourse(t *testing.T, moduleExams ...string) (*Service, Store) {
	t.Helper()
	store := NewInMemoryStore()
	svc := NewService(store, nil, func() time.Time { return t0 })

	ctx := context.Background()
	if err := store.PutCourse(ctx, Course{ID: "course-1", Title: "Intro to Go"}); err != nil {
		t.Fatalf("put course: %v", err)
	}
	for i, examID := range moduleExams {
		m := Module{
			ID:         modID(i + 1),
			CourseID:   "course-1",
			Title:      "Module",
			OrderIndex: i,
			ExamID:     examID,
		}
		if err := store.PutModule(ctx, m); err != nil {
			t.Fatalf("put module: %v", err)
		}
	}
	return svc, store
}

func modID(n int) string {
	return "mod-" + string(rune('0'+n))
}

func passModule(t *testing.T, svc *Service, moduleID string) {
	t.Helper()
	if err := svc.AttemptPassed(context.Background(), "stu-1", moduleID, 85, t0); err != nil {
		t.Fatalf("pass %s: %v", moduleID, err)
	}
}

func TestTracker_FirstModuleAlwaysUnlocked(t *testing.T) {
	svc, _ := seedCourse(t, "exam-1", "exam-2", "exam-3")
	statuses, err := svc.UnlockedModules(context.Background(), "stu-1", "course-1")
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("want 3 modules, got %d", len(statuses))
	}
	if !statuses[0].Unlocked || statuses[1].Unlocked || statuses[2].Unlocked {
		t.Fatalf("only the first module starts unlocked: %+v", statuses)
	}
}

func TestTracker_LinearUnlock(t *testing.T) {
	svc, _ := seedCourse(t, "exam-1", "exam-2", "exam-3")
	passModule(t, svc, modID(1))
	passModule(t, svc, modID(2))

	statuses, err := svc.UnlockedModules(context.Background(), "stu-1", "course-1")
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	// modules 1 and 2 passed; 3 reachable but not passed
	if !statuses[0].Passed || !statuses[1].Passed || statuses[2].Passed {
		t.Fatalf("want passed,passed,unpassed: %+v", statuses)
	}
	if !statuses[2].Unlocked {
		t.Fatalf("module 3 must be unlocked once module 2 passed")
	}
}

func TestTracker_GateBypassDoesNotUnlockBeyondFirstUnpassed(t *testing.T) {
	svc, store := seedCourse(t, "exam-1", "exam-2", "exam-3")
	// a stray progress row for module 3, with modules 1-2 untouched
	err := store.MarkModulePassed(context.Background(), ModuleProgress{
		StudentID: "stu-1", ModuleID: modID(3), Passed: true, Score: 90, CompletedAt: t0,
	})
	if err != nil {
		t.Fatalf("mark: %v", err)
	}

	statuses, err := svc.UnlockedModules(context.Background(), "stu-1", "course-1")
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if statuses[1].Unlocked || statuses[2].Unlocked {
		t.Fatalf("modules beyond the first unpassed must stay locked: %+v", statuses)
	}
	if statuses[2].Passed {
		t.Fatalf("a bypassed module must not count as passed on the linear path")
	}
}

func TestTracker_UnknownCourse(t *testing.T) {
	svc, _ := seedCourse(t, "exam-1")
	_, err := svc.UnlockedModules(context.Background(), "stu-1", "nope")
	if !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestProgress_PassedIsSticky(t *testing.T) {
	_, store := seedCourse(t, "exam-1")
	ctx := context.Background()
	err := store.MarkModulePassed(ctx, ModuleProgress{
		StudentID: "stu-1", ModuleID: modID(1), Passed: true, Score: 75, CompletedAt: t0,
	})
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	// a later call must not overwrite the recorded pass
	err = store.MarkModulePassed(ctx, ModuleProgress{
		StudentID: "stu-1", ModuleID: modID(1), Passed: true, Score: 95, CompletedAt: t0.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	prog, err := store.GetProgress(ctx, "stu-1", "course-1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	p := prog[modID(1)]
	if !p.Passed || p.Score != 75 {
		t.Fatalf("first pass must stick, got %+v", p)
	}
}

func TestCertification_IssuedOnceWhenCourseComplete(t *testing.T) {
	svc, store := seedCourse(t, "exam-1", "exam-2", "exam-3")
	ctx := context.Background()

	passModule(t, svc, modID(1))
	passModule(t, svc, modID(2))
	if _, err := store.GetCertificate(ctx, "stu-1", "course-1"); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("incomplete course must not certify, got %v", err)
	}

	passModule(t, svc, modID(3))
	cert, err := store.GetCertificate(ctx, "stu-1", "course-1")
	if err != nil {
		t.Fatalf("want certificate after final pass: %v", err)
	}
	if cert.VerificationCode == "" {
		t.Fatalf("certificate must carry a verification code")
	}

	// idempotence: repeated evaluation yields the same single certificate
	for i := 0; i < 3; i++ {
		got, err := svc.EvaluateCertification(ctx, "stu-1", "course-1")
		if err != nil {
			t.Fatalf("re-evaluate: %v", err)
		}
		if got == nil || got.ID != cert.ID {
			t.Fatalf("re-evaluation must return the existing certificate, got %+v", got)
		}
	}

	byCode, err := svc.VerifyCertificate(ctx, cert.VerificationCode)
	if err != nil || byCode.ID != cert.ID {
		t.Fatalf("verification lookup failed: %v %+v", err, byCode)
	}
}

func TestCertification_ModuleWithoutExamBlocks(t *testing.T) {
	svc, store := seedCourse(t, "exam-1", "")
	ctx := context.Background()

	// even with every progress row present, an unconfigured module blocks
	for i := 1; i <= 2; i++ {
		err := store.MarkModulePassed(ctx, ModuleProgress{
			StudentID: "stu-1", ModuleID: modID(i), Passed: true, Score: 80, CompletedAt: t0,
		})
		if err != nil {
			t.Fatalf("mark: %v", err)
		}
	}
	_, err := svc.EvaluateCertification(ctx, "stu-1", "course-1")
	var ce *exam.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConfigError for module without exam, got %v", err)
	}
	if _, err := store.GetCertificate(ctx, "stu-1", "course-1"); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("blocked course must not certify")
	}
}

type eventRecorder struct {
	types []string
	keys  []string
}

func (e *eventRecorder) Append(_ context.Context, typ, key string, _ interface{}) error {
	e.types = append(e.types, typ)
	e.keys = append(e.keys, key)
	return nil
}

func TestCertification_EmitsIssuedEventExactlyOnce(t *testing.T) {
	store := NewInMemoryStore()
	events := &eventRecorder{}
	svc := NewService(store, events, func() time.Time { return t0 })
	ctx := context.Background()

	if err := store.PutCourse(ctx, Course{ID: "course-1", Title: "Intro to Go"}); err != nil {
		t.Fatalf("put course: %v", err)
	}
	err := store.PutModule(ctx, Module{
		ID: modID(1), CourseID: "course-1", Title: "Module", OrderIndex: 0, ExamID: "exam-1",
	})
	if err != nil {
		t.Fatalf("put module: %v", err)
	}

	if err := svc.AttemptPassed(ctx, "stu-1", modID(1), 85, t0); err != nil {
		t.Fatalf("attempt passed: %v", err)
	}
	cert, err := store.GetCertificate(ctx, "stu-1", "course-1")
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if len(events.types) != 1 || events.types[0] != "CertificateIssued" {
		t.Fatalf("want exactly one CertificateIssued, got %v", events.types)
	}
	if events.keys[0] != cert.ID {
		t.Fatalf("event key must be the certificate id: want %s, got %s", cert.ID, events.keys[0])
	}

	// re-evaluation returns the existing certificate without a second event
	if _, err := svc.EvaluateCertification(ctx, "stu-1", "course-1"); err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if len(events.types) != 1 {
		t.Fatalf("idempotent issuance must not re-emit, got %v", events.types)
	}
}

func TestAttemptPassed_SiblingWithoutExamDoesNotFailAttempt(t *testing.T) {
	svc, _ := seedCourse(t, "exam-1", "")
	// recording the pass must succeed even though certification is blocked
	if err := svc.AttemptPassed(context.Background(), "stu-1", modID(1), 80, t0); err != nil {
		t.Fatalf("attempt hook must swallow the blocking config error: %v", err)
	}
}
