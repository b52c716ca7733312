package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SQLStore persists the exam core in sqlite (offline) or postgres (online).
// The attempt_number uniqueness and payment consumption guarantees live in
// one transaction plus a unique index, so concurrent submissions collapse to
// ErrConflict instead of corrupting the ledger.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	qj, err := json.Marshal(e.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams
		(id,module_id,title,passing_score,max_attempts,retry_wait_days,retry_fee_cents,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			module_id=EXCLUDED.module_id, title=EXCLUDED.title,
			passing_score=EXCLUDED.passing_score, max_attempts=EXCLUDED.max_attempts,
			retry_wait_days=EXCLUDED.retry_wait_days, retry_fee_cents=EXCLUDED.retry_fee_cents,
			questions_json=EXCLUDED.questions_json`,
		e.ID, e.ModuleID, e.Title, e.PassingScore, e.MaxAttempts, e.RetryWaitDays,
		e.RetryFeeCents, string(qj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.GetExamFull(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	return stripAnswerKeys(e), nil
}

func (s *SQLStore) GetExamFull(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,module_id,title,passing_score,max_attempts,
		retry_wait_days,retry_fee_cents,questions_json,created_at FROM exams WHERE id=$1`, id)
	var e Exam
	var qjson string
	err := row.Scan(&e.ID, &e.ModuleID, &e.Title, &e.PassingScore, &e.MaxAttempts,
		&e.RetryWaitDays, &e.RetryFeeCents, &qjson, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrNotFound
	}
	if err != nil {
		return Exam{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &e.Questions); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, studentID, examID string) ([]AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,exam_id,student_id,attempt_number,score,passed,is_paid_retry,submitted_at
		FROM attempts WHERE student_id=$1 AND exam_id=$2 ORDER BY attempt_number ASC`, studentID, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *SQLStore) SearchAttempts(ctx context.Context, opts AttemptListOpts) ([]AttemptRecord, error) {
	q := `SELECT id,exam_id,student_id,attempt_number,score,passed,is_paid_retry,submitted_at FROM attempts`
	var conds []string
	var args []interface{}
	if opts.ExamID != "" {
		args = append(args, opts.ExamID)
		conds = append(conds, "exam_id=$"+itoa(len(args)))
	}
	if opts.StudentID != "" {
		args = append(args, opts.StudentID)
		conds = append(conds, "student_id=$"+itoa(len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY submitted_at DESC"
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	q += " LIMIT $" + itoa(len(args))
	args = append(args, opts.Offset)
	q += " OFFSET $" + itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *SQLStore) AppendAttempt(ctx context.Context, rec AttemptRecord, consumePaymentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// UNIQUE(exam_id,student_id,attempt_number) turns a lost race into a
	// constraint violation instead of a duplicate attempt number.
	_, err = tx.ExecContext(ctx, `INSERT INTO attempts
		(id,exam_id,student_id,attempt_number,score,passed,is_paid_retry,submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.ExamID, rec.StudentID, rec.AttemptNumber, rec.Score,
		rec.Passed, rec.IsPaidRetry, rec.SubmittedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	if consumePaymentID != "" {
		res, err := tx.ExecContext(ctx, `UPDATE retry_payments SET consumed_by=$1
			WHERE id=$2 AND status=$3 AND consumed_by IS NULL`,
			rec.ID, consumePaymentID, PaymentPaid)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Payment consumed by a concurrent attempt (or revoked): abort so
			// the paid-flagged attempt never lands without its payment.
			return ErrConflict
		}
	}
	return tx.Commit()
}

func (s *SQLStore) CreatePayment(ctx context.Context, p RetryPayment) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO retry_payments
		(id,exam_id,student_id,amount_cents,status,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.ExamID, p.StudentID, p.AmountCents, p.Status, p.CreatedAt.Unix())
	return err
}

func (s *SQLStore) GetPayment(ctx context.Context, id string) (RetryPayment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,exam_id,student_id,amount_cents,status,created_at,paid_at,retry_available_at,consumed_by
		FROM retry_payments WHERE id=$1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RetryPayment{}, ErrNotFound
	}
	return p, err
}

func (s *SQLStore) MarkPaymentPaid(ctx context.Context, id string, paidAt, availableAt time.Time) (RetryPayment, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE retry_payments
		SET status=$1, paid_at=$2, retry_available_at=$3
		WHERE id=$4 AND status=$5`,
		PaymentPaid, paidAt.Unix(), availableAt.Unix(), id, PaymentPending)
	if err != nil {
		return RetryPayment{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return RetryPayment{}, err
	}
	if n == 0 {
		if _, err := s.GetPayment(ctx, id); errors.Is(err, ErrNotFound) {
			return RetryPayment{}, ErrNotFound
		}
		return RetryPayment{}, ErrConflict
	}
	return s.GetPayment(ctx, id)
}

func (s *SQLStore) ListPayments(ctx context.Context, studentID, examID string) ([]RetryPayment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,exam_id,student_id,amount_cents,status,created_at,paid_at,retry_available_at,consumed_by
		FROM retry_payments WHERE student_id=$1 AND exam_id=$2 ORDER BY created_at ASC`, studentID, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RetryPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...interface{}) error }

func scanAttempts(rows *sql.Rows) ([]AttemptRecord, error) {
	var out []AttemptRecord
	for rows.Next() {
		var a AttemptRecord
		var submitted int64
		if err := rows.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.AttemptNumber,
			&a.Score, &a.Passed, &a.IsPaidRetry, &submitted); err != nil {
			return nil, err
		}
		a.SubmittedAt = time.Unix(submitted, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanPayment(row scanner) (RetryPayment, error) {
	var p RetryPayment
	var created int64
	var paidAt, availAt sql.NullInt64
	var consumedBy sql.NullString
	if err := row.Scan(&p.ID, &p.ExamID, &p.StudentID, &p.AmountCents, &p.Status,
		&created, &paidAt, &availAt, &consumedBy); err != nil {
		return RetryPayment{}, err
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	if paidAt.Valid {
		t := time.Unix(paidAt.Int64, 0).UTC()
		p.PaidAt = &t
	}
	if availAt.Valid {
		t := time.Unix(availAt.Int64, 0).UTC()
		p.RetryAvailableAt = &t
	}
	p.ConsumedBy = consumedBy.String
	return p, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}

func itoa(n int) string { return strconv.Itoa(n) }
