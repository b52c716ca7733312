package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skillpath/skillpath-lms/internal/exam"
)

type questionPayload struct {
	ID         string   `json:"id" validate:"required"`
	Type       string   `json:"type" validate:"required,oneof=mcq_single true_false essay"`
	OrderIndex int      `json:"order_index" validate:"gte=0"`
	Prompt     string   `json:"prompt"`
	Choices    []string `json:"choices"`
	AnswerKey  string   `json:"answer_key"`
}

type examPayload struct {
	ID            string            `json:"id" validate:"required"`
	ModuleID      string            `json:"module_id" validate:"required"`
	Title         string            `json:"title" validate:"required"`
	PassingScore  int               `json:"passing_score" validate:"gte=0,lte=100"`
	MaxAttempts   int               `json:"max_attempts" validate:"gte=1"`
	RetryWaitDays int               `json:"retry_wait_days" validate:"gte=0"`
	RetryFeeCents int64             `json:"retry_fee_cents" validate:"gte=0"`
	Questions     []questionPayload `json:"questions" validate:"required,min=1,dive"`
}

// POST /exams — authoring workflow upload (professor/admin).
func UploadExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req examPayload
		if err := decodeValid(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		seen := map[int]bool{}
		for _, q := range req.Questions {
			if seen[q.OrderIndex] {
				http.Error(w, "duplicate question order_index", http.StatusBadRequest)
				return
			}
			seen[q.OrderIndex] = true
			if q.Type != exam.QuestionEssay && q.AnswerKey == "" {
				http.Error(w, "answer_key required for question "+q.ID, http.StatusBadRequest)
				return
			}
		}
		e := exam.Exam{
			ID:            req.ID,
			ModuleID:      req.ModuleID,
			Title:         req.Title,
			PassingScore:  req.PassingScore,
			MaxAttempts:   req.MaxAttempts,
			RetryWaitDays: req.RetryWaitDays,
			RetryFeeCents: req.RetryFeeCents,
		}
		for _, q := range req.Questions {
			e.Questions = append(e.Questions, exam.Question{
				ID:         q.ID,
				Type:       q.Type,
				OrderIndex: q.OrderIndex,
				Prompt:     q.Prompt,
				Choices:    q.Choices,
				AnswerKey:  q.AnswerKey,
			})
		}
		if err := store.PutExam(r.Context(), e); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": e.ID})
	}
}

// GET /exams/{examID} — student-safe view, answer keys stripped.
func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := store.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}
