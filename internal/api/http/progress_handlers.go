package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/skillpath/skillpath-lms/internal/auth/middleware"
	"github.com/skillpath/skillpath-lms/internal/progress"
)

type coursePayload struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title" validate:"required"`
}

type modulePayload struct {
	ID         string `json:"id" validate:"required"`
	CourseID   string `json:"course_id" validate:"required"`
	Title      string `json:"title" validate:"required"`
	OrderIndex int    `json:"order_index" validate:"gte=0"`
	ExamID     string `json:"exam_id"`
}

// POST /courses — authoring workflow (professor/admin).
func PutCourseHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req coursePayload
		if err := decodeValid(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := store.PutCourse(r.Context(), progress.Course{ID: req.ID, Title: req.Title}); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
	}
}

// POST /modules — authoring workflow (professor/admin).
func PutModuleHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req modulePayload
		if err := decodeValid(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m := progress.Module{
			ID:         req.ID,
			CourseID:   req.CourseID,
			Title:      req.Title,
			OrderIndex: req.OrderIndex,
			ExamID:     req.ExamID,
		}
		if err := store.PutModule(r.Context(), m); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
	}
}

// GET /courses/{courseID}/progress — unlocked module set for the caller,
// rendered by the course navigation.
func CourseProgressHandler(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		statuses, err := svc.UnlockedModules(r.Context(), studentID, chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if statuses == nil {
			statuses = []progress.ModuleStatus{}
		}
		writeJSON(w, http.StatusOK, statuses)
	}
}

// GET /courses/{courseID}/certificate — the caller's certificate, 404 until
// issued.
func CertificateHandler(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		cert, err := svc.Certificate(r.Context(), studentID, chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cert)
	}
}

// GET /certificates/{code}/verify — public verification lookup.
func VerifyCertificateHandler(svc *progress.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cert, err := svc.VerifyCertificate(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"valid":       true,
			"student_id":  cert.StudentID,
			"course_id":   cert.CourseID,
			"issued_at":   cert.IssuedAt,
			"certificate": cert.ID,
		})
	}
}
