package progress

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/skillpath/skillpath-lms/internal/exam"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (id,title)
		VALUES ($1,$2) ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title`,
		c.ID, c.Title)
	return err
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	err := s.db.QueryRowContext(ctx, `SELECT id,title FROM courses WHERE id=$1`, id).
		Scan(&c.ID, &c.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, exam.ErrNotFound
	}
	return c, err
}

func (s *SQLStore) PutModule(ctx context.Context, m Module) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO modules (id,course_id,title,order_index,exam_id)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET
			course_id=EXCLUDED.course_id, title=EXCLUDED.title,
			order_index=EXCLUDED.order_index, exam_id=EXCLUDED.exam_id`,
		m.ID, m.CourseID, m.Title, m.OrderIndex, nullEmpty(m.ExamID))
	return err
}

func (s *SQLStore) GetModule(ctx context.Context, id string) (Module, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,course_id,title,order_index,exam_id FROM modules WHERE id=$1`, id)
	m, err := scanModule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Module{}, exam.ErrNotFound
	}
	return m, err
}

func (s *SQLStore) ListModules(ctx context.Context, courseID string) ([]Module, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,course_id,title,order_index,exam_id
		FROM modules WHERE course_id=$1 ORDER BY order_index ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetProgress(ctx context.Context, studentID, courseID string) (map[string]ModuleProgress, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT p.student_id,p.module_id,p.passed,p.score,p.completed_at
		FROM module_progress p JOIN modules m ON m.id=p.module_id
		WHERE p.student_id=$1 AND m.course_id=$2`, studentID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]ModuleProgress{}
	for rows.Next() {
		var p ModuleProgress
		var completed int64
		if err := rows.Scan(&p.StudentID, &p.ModuleID, &p.Passed, &p.Score, &completed); err != nil {
			return nil, err
		}
		p.CompletedAt = time.Unix(completed, 0).UTC()
		out[p.ModuleID] = p
	}
	return out, rows.Err()
}

// MarkModulePassed upserts, but a row that already has passed=true is left
// exactly as it was: passed never reverts and the first passing score sticks.
func (s *SQLStore) MarkModulePassed(ctx context.Context, p ModuleProgress) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO module_progress (student_id,module_id,passed,score,completed_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (student_id,module_id) DO NOTHING`,
		p.StudentID, p.ModuleID, true, p.Score, p.CompletedAt.Unix())
	return err
}

func (s *SQLStore) CreateCertificate(ctx context.Context, c Certificate) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO certificates (id,student_id,course_id,verification_code,issued_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (student_id,course_id) DO NOTHING`,
		c.ID, c.StudentID, c.CourseID, c.VerificationCode, c.IssuedAt.Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) GetCertificate(ctx context.Context, studentID, courseID string) (Certificate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,student_id,course_id,verification_code,issued_at
		FROM certificates WHERE student_id=$1 AND course_id=$2`, studentID, courseID)
	return scanCertificate(row)
}

func (s *SQLStore) GetCertificateByCode(ctx context.Context, code string) (Certificate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,student_id,course_id,verification_code,issued_at
		FROM certificates WHERE verification_code=$1`, code)
	return scanCertificate(row)
}

type scanner interface{ Scan(dest ...interface{}) error }

func scanModule(row scanner) (Module, error) {
	var m Module
	var examID sql.NullString
	if err := row.Scan(&m.ID, &m.CourseID, &m.Title, &m.OrderIndex, &examID); err != nil {
		return Module{}, err
	}
	m.ExamID = examID.String
	return m, nil
}

func scanCertificate(row scanner) (Certificate, error) {
	var c Certificate
	var issued int64
	err := row.Scan(&c.ID, &c.StudentID, &c.CourseID, &c.VerificationCode, &issued)
	if errors.Is(err, sql.ErrNoRows) {
		return Certificate{}, exam.ErrNotFound
	}
	if err != nil {
		return Certificate{}, err
	}
	c.IssuedAt = time.Unix(issued, 0).UTC()
	return c, nil
}

func nullEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
