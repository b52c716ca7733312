package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/skillpath/skillpath-lms/internal/exam"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps core errors to HTTP statuses. A gate denial is a normal
// outcome: it comes back as 409 with the structured denial payload so the
// UI can render the fee/wait guidance.
func writeError(w http.ResponseWriter, err error) {
	var denied *exam.GateDenied
	if errors.As(err, &denied) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  "gate_denied",
			"denial": denied,
		})
		return
	}
	var cfg *exam.ConfigError
	if errors.As(err, &cfg) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": cfg.Msg})
		return
	}
	if errors.Is(err, exam.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	// includes exam.ErrConflict that survived the ledger's internal retries
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// decodeValid decodes a JSON body into dst and runs struct validation.
func decodeValid(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("bad json")
	}
	return validate.Struct(dst)
}

// parseIntDefault parses a small non-negative integer query parameter,
// falling back to def on junk, signs, or anything long enough to overflow.
func parseIntDefault(s string, def int) int {
	if s == "" || len(s) > 9 {
		return def
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}
