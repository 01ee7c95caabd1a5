package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mind-engage/detprep/internal/grammar"
	"github.com/mind-engage/detprep/internal/logger"
)

// GrammarChecker grades one text.
type GrammarChecker interface {
	Check(ctx context.Context, text string) (*grammar.Result, error)
}

// maxGrammarBody caps the request body; a practice answer is a few hundred words.
const maxGrammarBody = 64 << 10

// CheckGrammarHandler handles /api/checkGrammar. It is mounted for every
// method so non-POST requests get a JSON 405.
func CheckGrammarHandler(c GrammarChecker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
			return
		}
		var req struct {
			Text interface{} `json:"text"`
		}
		// a missing or unreadable body is treated like a missing text
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGrammarBody)).Decode(&req)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "")
			return
		}
		text, _ := req.Text.(string)

		res, err := c.Check(r.Context(), text)
		if err != nil {
			var ge *grammar.Error
			if !errors.As(err, &ge) {
				ge = &grammar.Error{Status: http.StatusInternalServerError, Message: "Internal error", Detail: err.Error()}
			}
			if ge.Status >= 500 {
				log.Warn("grammar check failed", "status", ge.Status, "err", ge.Message)
			}
			body := map[string]string{"error": ge.Message}
			if ge.Detail != "" {
				body["detail"] = ge.Detail
			}
			if ge.Raw != "" {
				body["raw"] = ge.Raw
			}
			writeJSON(w, ge.Status, body)
			return
		}
		// the model's object goes out as returned, plus the derived fields
		out := map[string]interface{}{
			"corrected": res.Corrected,
			"score":     res.Score,
			"issues":    res.Issues,
		}
		for k, v := range res.Body {
			out[k] = v
		}
		out["suggested"] = grammar.Suggest(text, res)
		out["annotations"] = grammar.Annotate(text, res.Issues)
		writeJSON(w, http.StatusOK, out)
	}
}
