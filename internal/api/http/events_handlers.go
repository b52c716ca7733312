package http

import (
	"net/http"

	"github.com/skillpath/skillpath-lms/internal/eventlog"
)

// GET /events?after=0&limit=100 — pull-based feed of domain events for
// external consumers (notification, certificate rendering). Offsets are
// monotonic; a consumer checkpoints the last offset it processed and
// resumes from there.
func ListEventsHandler(events *eventlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after := parseIntDefault(r.URL.Query().Get("after"), 0)
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		list, err := events.After(r.Context(), int64(after), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []eventlog.Event{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
