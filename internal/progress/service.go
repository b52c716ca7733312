package progress

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/skillpath/skillpath-lms/internal/exam"
)

// EventSink receives domain events for external consumers. Implemented by
// the eventlog repo; may be nil.
type EventSink interface {
	Append(ctx context.Context, typ, key string, data interface{}) error
}

// Service is the progression tracker and certification trigger. It also
// implements the attempt ledger's ProgressHook, so a passing attempt flows
// straight into module progress and, when the course is complete, into a
// certificate.
type Service struct {
	store   Store
	events  EventSink
	now     func() time.Time
	newCode func() string
}

func NewService(store Store, events EventSink, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, events: events, now: now, newCode: uuid.NewString}
}

// UnlockedModules returns every module of the course with its unlock state
// for the student. Progression is strictly linear: the first module is
// always unlocked, and module K+1 only once module K is passed. Progress
// rows beyond the first unpassed module never unlock anything, even if a
// later exam was somehow attempted directly.
func (s *Service) UnlockedModules(ctx context.Context, studentID, courseID string) ([]ModuleStatus, error) {
	if _, err := s.store.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	modules, err := s.store.ListModules(ctx, courseID)
	if err != nil {
		return nil, err
	}
	prog, err := s.store.GetProgress(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}

	out := make([]ModuleStatus, 0, len(modules))
	unlocked := true // first module is always reachable
	for _, m := range modules {
		st := ModuleStatus{Module: m, Unlocked: unlocked}
		if p, ok := prog[m.ID]; ok && p.Passed && unlocked {
			st.Passed = true
			st.Score = p.Score
		}
		// next module unlocks only off a passed module on the linear path
		unlocked = st.Passed
		out = append(out, st)
	}
	return out, nil
}

// AttemptPassed records a passed module and re-evaluates certification.
// Implements the exam package's ProgressHook.
func (s *Service) AttemptPassed(ctx context.Context, studentID, moduleID string, score int, completedAt time.Time) error {
	m, err := s.store.GetModule(ctx, moduleID)
	if err != nil {
		return err
	}
	err = s.store.MarkModulePassed(ctx, ModuleProgress{
		StudentID:   studentID,
		ModuleID:    moduleID,
		Passed:      true,
		Score:       score,
		CompletedAt: completedAt,
	})
	if err != nil {
		return err
	}
	if _, err := s.EvaluateCertification(ctx, studentID, m.CourseID); err != nil {
		var ce *exam.ConfigError
		if errors.As(err, &ce) {
			// an unconfigured sibling module blocks certification, not the
			// attempt that was just recorded
			return nil
		}
		return err
	}
	return nil
}

// EvaluateCertification issues exactly one certificate once every module of
// the course is passed. Safe to call any number of times: once issued,
// further calls return the existing certificate. A module without an exam
// blocks certification and is surfaced as a configuration error, never
// treated as auto-passed.
func (s *Service) EvaluateCertification(ctx context.Context, studentID, courseID string) (*Certificate, error) {
	modules, err := s.store.ListModules(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, nil
	}
	prog, err := s.store.GetProgress(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		if m.ExamID == "" {
			return nil, &exam.ConfigError{Msg: "module " + m.ID + " has no exam configured"}
		}
		if p, ok := prog[m.ID]; !ok || !p.Passed {
			return nil, nil // not complete yet
		}
	}

	cert := Certificate{
		ID:               uuid.NewString(),
		StudentID:        studentID,
		CourseID:         courseID,
		VerificationCode: s.newCode(),
		IssuedAt:         s.now().UTC(),
	}
	created, err := s.store.CreateCertificate(ctx, cert)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.store.GetCertificate(ctx, studentID, courseID)
		if err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if s.events != nil {
		// certificate row is durable; consumers can re-read via the feed
		if err := s.events.Append(ctx, "CertificateIssued", cert.ID, cert); err != nil {
			log.Printf("eventlog: append CertificateIssued %s: %v", cert.ID, err)
		}
	}
	return &cert, nil
}

// Certificate returns the issued certificate for the pair, or ErrNotFound.
func (s *Service) Certificate(ctx context.Context, studentID, courseID string) (Certificate, error) {
	return s.store.GetCertificate(ctx, studentID, courseID)
}

// VerifyCertificate resolves a verification code, for the public
// certificate-check endpoint.
func (s *Service) VerifyCertificate(ctx context.Context, code string) (Certificate, error) {
	return s.store.GetCertificateByCode(ctx, code)
}

// IsNotFound reports whether err is the store's missing-row error.
func IsNotFound(err error) bool { return errors.Is(err, exam.ErrNotFound) }
