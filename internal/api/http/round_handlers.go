package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/detprep/internal/auth"
	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/grading"
	"github.com/mind-engage/detprep/internal/logger"
	"github.com/mind-engage/detprep/internal/results"
	"github.com/mind-engage/detprep/internal/round"
	"github.com/mind-engage/detprep/internal/sequencer"
)

type roundReply struct {
	Round   round.View       `json:"round"`
	Outcome *grading.Outcome `json:"outcome,omitempty"`
	Next    string           `json:"next,omitempty"`
	Report  *results.Report  `json:"report,omitempty"`
}

// RoundHandlers serves /api/rounds.
type RoundHandlers struct {
	Rounds *round.Service
	Seq    *sequencer.Sequencer
	Log    *logger.Logger
}

// Create handles POST /api/rounds.
func (h *RoundHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Module     string `json:"module"`
			Difficulty string `json:"difficulty"`
			Count      int    `json:"count"`
			FullTest   bool   `json:"full_test"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json", err.Error())
			return
		}
		m, ok := catalog.Lookup(req.Module)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown module", req.Module)
			return
		}
		d, err := catalog.ParseDifficulty(req.Difficulty)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad difficulty", err.Error())
			return
		}
		if req.Count < 0 {
			writeError(w, http.StatusBadRequest, "count must not be negative", "")
			return
		}
		sid := auth.SessionFromContext(r.Context())
		rd, err := h.Rounds.Create(r.Context(), sid, m, d, req.Count, req.FullTest)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not start round", err.Error())
			return
		}
		reply := roundReply{}
		h.finishStep(r, rd, &reply)
		reply.Round = rd.View()
		writeJSON(w, http.StatusCreated, reply)
	}
}

// Get handles GET /api/rounds/{roundID}.
func (h *RoundHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd, ok := h.lookup(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, roundReply{Round: rd.View()})
	}
}

// Answer handles POST /api/rounds/{roundID}/answer.
func (h *RoundHandlers) Answer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd, ok := h.lookup(w, r)
		if !ok {
			return
		}
		var req struct {
			Answer interface{} `json:"answer"`
			Finish bool        `json:"finish"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json", err.Error())
			return
		}
		out, err := rd.Submit(r.Context(), req.Answer, req.Finish)
		switch {
		case errors.Is(err, round.ErrNotRunning):
			writeError(w, http.StatusConflict, err.Error(), string(rd.State()))
			return
		case errors.Is(err, grading.ErrBadResponse):
			writeError(w, http.StatusBadRequest, "bad answer", err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "grading failed", err.Error())
			return
		}
		reply := roundReply{Outcome: &out}
		h.finishStep(r, rd, &reply)
		reply.Round = rd.View()
		writeJSON(w, http.StatusOK, reply)
	}
}

// Advance handles POST /api/rounds/{roundID}/advance.
func (h *RoundHandlers) Advance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd, ok := h.lookup(w, r)
		if !ok {
			return
		}
		if _, err := rd.Advance(); err != nil {
			writeError(w, http.StatusConflict, err.Error(), string(rd.State()))
			return
		}
		reply := roundReply{}
		h.finishStep(r, rd, &reply)
		reply.Round = rd.View()
		writeJSON(w, http.StatusOK, reply)
	}
}

// Finish handles POST /api/rounds/{roundID}/finish: the time limit ran out or
// the learner ended the module. Answered items count; the rest do not.
func (h *RoundHandlers) Finish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd, ok := h.lookup(w, r)
		if !ok {
			return
		}
		rd.Finish()
		reply := roundReply{}
		h.finishStep(r, rd, &reply)
		reply.Round = rd.View()
		writeJSON(w, http.StatusOK, reply)
	}
}

// Delete handles DELETE /api/rounds/{roundID}.
func (h *RoundHandlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := auth.SessionFromContext(r.Context())
		if err := h.Rounds.Rounds.Delete(sid, chi.URLParam(r, "roundID")); err != nil {
			writeError(w, http.StatusNotFound, err.Error(), "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *RoundHandlers) lookup(w http.ResponseWriter, r *http.Request) (*round.Round, bool) {
	sid := auth.SessionFromContext(r.Context())
	rd, err := h.Rounds.Rounds.Get(sid, chi.URLParam(r, "roundID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "")
		return nil, false
	}
	return rd, true
}

// finishStep hands a finished Full Test round to the sequencer once and
// copies the navigation step into the reply.
func (h *RoundHandlers) finishStep(r *http.Request, rd *round.Round, reply *roundReply) {
	if !rd.FullTest || !rd.MarkReported() {
		return
	}
	step := h.Seq.Complete(r.Context(), rd.SessionID, rd.Module.Route, rd.Difficulty, rd.Summary())
	reply.Next = step.Next
	reply.Report = step.Report
	if step.Next == "" && step.Report == nil {
		h.Log.Warn("module outside the full test order", "module", rd.Module.ID, "session", rd.SessionID)
	}
}
