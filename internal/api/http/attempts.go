package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/skillpath/skillpath-lms/internal/auth/middleware"
	"github.com/skillpath/skillpath-lms/internal/exam"
	"github.com/skillpath/skillpath-lms/internal/rbac"
)

type submissionPayload struct {
	Answers  map[string]string `json:"answers"`
	PreScore *int              `json:"pre_score" validate:"omitempty,gte=0,lte=100"`
}

// POST /exams/{examID}/attempts — submit answers as the authenticated
// student. 201 with the appended ledger row; 409 with the structured denial
// when the retry gate says no.
func SubmitAttemptHandler(ledger *exam.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		if studentID == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req submissionPayload
		if err := decodeValid(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec, err := ledger.RecordAttempt(r.Context(), studentID, chi.URLParam(r, "examID"),
			exam.Submission{Answers: req.Answers, PreScore: req.PreScore})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

// GET /exams/{examID}/gate — current gate decision for the caller, rendered
// by the UI as "take exam", "pay fee" or "wait until".
func GateStatusHandler(ledger *exam.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		dec, err := ledger.GateCheck(r.Context(), studentID, chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dec)
	}
}

// GET /attempts?exam_id=...&student_id=...&limit=50&offset=0
// Roles without attempt:view-all are scoped to their own rows.
func ListAttemptsHandler(ledger *exam.Ledger) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := auth.SubjectFromContext(r.Context())

		examID := strings.TrimSpace(r.URL.Query().Get("exam_id"))
		studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

		if !checker.Has(role, "attempt:view-all") {
			studentID = sub
		}

		list, err := ledger.SearchAttempts(r.Context(), exam.AttemptListOpts{
			ExamID:    examID,
			StudentID: studentID,
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []exam.AttemptRecord{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
