package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/skillpath/skillpath-lms/internal/auth/middleware"
	"github.com/skillpath/skillpath-lms/internal/exam"
)

// POST /exams/{examID}/retry-payments — open a pending payment of the
// configured retry fee. Only valid while the gate is in Exhausted-Unpaid.
func CreateRetryPaymentHandler(ledger *exam.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		if studentID == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		p, err := ledger.CreateRetryPayment(r.Context(), studentID, chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// POST /retry-payments/{paymentID}/confirm — the external payment
// collaborator reports the fee as settled. The cooldown clock starts here:
// retry_available_at = paid_at + retry_wait_days.
func ConfirmRetryPaymentHandler(ledger *exam.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := ledger.ConfirmRetryPayment(r.Context(), chi.URLParam(r, "paymentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
