package progress

import "context"

// Store is the persistence boundary for courses, module progress and
// certificates. MarkModulePassed and CreateCertificate are the two writes,
// and both are idempotent: progress never flips back to failed, and a second
// certificate for the same (student, course) is silently dropped.
type Store interface {
	PutCourse(ctx context.Context, c Course) error
	GetCourse(ctx context.Context, id string) (Course, error)
	PutModule(ctx context.Context, m Module) error
	GetModule(ctx context.Context, id string) (Module, error)
	// ListModules returns the course's modules ordered by order_index.
	ListModules(ctx context.Context, courseID string) ([]Module, error)

	// GetProgress returns the student's progress rows for one course, keyed
	// by module ID.
	GetProgress(ctx context.Context, studentID, courseID string) (map[string]ModuleProgress, error)
	// MarkModulePassed upserts a passed row. A row that is already passed is
	// left untouched.
	MarkModulePassed(ctx context.Context, p ModuleProgress) error

	// CreateCertificate inserts c unless a certificate for the pair already
	// exists; created reports whether a row was written.
	CreateCertificate(ctx context.Context, c Certificate) (created bool, err error)
	GetCertificate(ctx context.Context, studentID, courseID string) (Certificate, error)
	GetCertificateByCode(ctx context.Context, code string) (Certificate, error)
}
