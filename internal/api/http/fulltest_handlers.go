package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mind-engage/detprep/internal/auth"
	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/results"
	"github.com/mind-engage/detprep/internal/sequencer"
)

// StartFullTestHandler handles POST /api/fulltest/start {difficulty}.
func StartFullTestHandler(seq *sequencer.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Difficulty string `json:"difficulty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "bad json", err.Error())
			return
		}
		d, err := catalog.ParseDifficulty(req.Difficulty)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad difficulty", err.Error())
			return
		}
		next := seq.Start(r.Context(), auth.SessionFromContext(r.Context()), d)
		writeJSON(w, http.StatusOK, map[string]string{"next": next})
	}
}

// NextModuleHandler handles GET /api/fulltest/next?path=&difficulty=. The
// reply carries an empty next for the last module and for paths outside the
// order.
func NextModuleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := sequencer.ParseQuery(r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad difficulty", err.Error())
			return
		}
		path := r.URL.Query().Get("path")
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		out := map[string]interface{}{"next": "", "last": sequencer.IsLast(path)}
		if next, ok := sequencer.Next(path); ok {
			out["next"] = sequencer.NextURL(next, mode.Difficulty)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// PushResultHandler handles POST /api/fulltest/results with one record.
// Storage failures are not reported to the client.
func PushResultHandler(agg *results.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec results.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "bad json", err.Error())
			return
		}
		if _, ok := catalog.Lookup(rec.Module); !ok {
			writeError(w, http.StatusBadRequest, "unknown module", rec.Module)
			return
		}
		if rec.TotalQuestions < 0 || rec.TotalCorrect < 0 || rec.TotalIncorrect < 0 {
			writeError(w, http.StatusBadRequest, "totals must not be negative", "")
			return
		}
		if rec.Timestamp == 0 {
			rec.Timestamp = time.Now().UnixMilli()
		}
		agg.PushSectionResult(r.Context(), auth.SessionFromContext(r.Context()), rec)
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetResultsHandler handles GET /api/fulltest/results.
func GetResultsHandler(agg *results.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, agg.GetFullTestResults(r.Context(), auth.SessionFromContext(r.Context())))
	}
}

// ClearResultsHandler handles DELETE /api/fulltest/results.
func ClearResultsHandler(agg *results.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg.ClearFullTestResults(r.Context(), auth.SessionFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReportHandler handles GET /api/fulltest/report.
func ReportHandler(agg *results.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, agg.Report(r.Context(), auth.SessionFromContext(r.Context())))
	}
}
