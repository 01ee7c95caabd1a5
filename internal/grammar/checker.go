// Package grammar scores a short written answer by asking a chat-completion
// model for a corrected text, a 0-100 score and a list of issues.
package grammar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/detprep/internal/logger"
)

// Error is a failure with the HTTP status the caller should reply with.
type Error struct {
	Status  int
	Message string
	Detail  string
	Raw     string // unparsed model output
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// Issue is one problem the model found.
type Issue struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Explanation string `json:"explanation"`
}

// Result is the model's verdict. Body is the JSON object the model returned,
// unchanged; the typed fields are read from it leniently.
type Result struct {
	Corrected string                 `json:"corrected"`
	Score     *float64               `json:"score"`
	Issues    []Issue                `json:"issues"`
	Body      map[string]interface{} `json:"-"`
}

const systemPrompt = `You are a helpful assistant that evaluates short written responses for the Duolingo English Test (DET) "Write about the photo" task.
For the input text, produce a corrected version, a short numeric score 0-100 (higher is better) reflecting grammar/fluency/vocabulary for DET-style scoring, and a list of concrete issues. Each issue must include: original (the exact substring detected), replacement (suggested correction if any, otherwise empty string), and explanation (one short sentence why it is an issue).
Return only a single JSON object with the following shape: { "corrected": "...", "score": 0-100, "issues": [ { "original": "...", "replacement": "...", "explanation": "..." }, ... ] }.
Do not return any additional text or commentary. Treat the input as a practice response; tailor suggestions to common DET expectations (conciseness, grammatical accuracy, clear vocabulary).`

// Checker forwards one text per call. No retries and no caching.
type Checker struct {
	Keys    KeySource
	Chat    *ChatClient
	Model   string
	Timeout time.Duration
	Log     *logger.Logger
}

var ErrMissingText = &Error{Status: http.StatusBadRequest, Message: "Missing text in request body"}

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// Check grades text. Errors are always *Error.
func (c *Checker) Check(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrMissingText
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	key, err := c.Keys.APIKey(ctx)
	if err != nil {
		return nil, asError(err)
	}

	model := c.Model
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	req := ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: `Text: """` + strings.ReplaceAll(text, `"""`, `"`) + `"""` + "\n\nPlease reply only with the JSON object described."},
		},
		MaxTokens:   800,
		Temperature: 0.2,
	}
	content, err := c.Chat.Complete(ctx, key, req)
	if err != nil {
		var up *UpstreamError
		if errors.As(err, &up) {
			c.log().Warn("grammar upstream error", "status", up.Status)
			return nil, &Error{Status: up.Status, Message: "OpenAI error", Detail: up.Body}
		}
		if errors.Is(err, ErrMalformedReply) {
			return nil, asError(err)
		}
		return nil, &Error{Status: http.StatusBadGateway, Message: "OpenAI error", Detail: err.Error()}
	}

	res, ok := parseResult(content)
	if !ok {
		return nil, &Error{Status: http.StatusBadGateway, Message: "Failed to parse OpenAI response as JSON", Raw: content}
	}
	return res, nil
}

// parseResult reads the model output strictly, then once more from the
// outermost {...} span.
func parseResult(content string) (*Result, bool) {
	if r, ok := decodeObject(content); ok {
		return r, true
	}
	if m := jsonObjectRe.FindString(content); m != "" {
		return decodeObject(m)
	}
	return nil, false
}

// decodeObject accepts any JSON object. A score may arrive as a number or a
// numeric string, and an issue as an object or a bare string.
func decodeObject(s string) (*Result, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	r := &Result{Body: obj, Issues: []Issue{}}
	r.Corrected, _ = obj["corrected"].(string)
	r.Score = toScore(obj["score"])
	if list, ok := obj["issues"].([]interface{}); ok {
		for _, v := range list {
			if is, ok := toIssue(v); ok {
				r.Issues = append(r.Issues, is)
			}
		}
	}
	return r, true
}

func toScore(v interface{}) *float64 {
	switch v := v.(type) {
	case float64:
		return &v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return &f
		}
	}
	return nil
}

func toIssue(v interface{}) (Issue, bool) {
	switch v := v.(type) {
	case string:
		return Issue{Explanation: v}, v != ""
	case map[string]interface{}:
		is := Issue{}
		is.Original, _ = v["original"].(string)
		is.Replacement, _ = v["replacement"].(string)
		is.Explanation, _ = v["explanation"].(string)
		return is, true
	}
	return Issue{}, false
}

func asError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return &Error{Status: http.StatusInternalServerError, Message: "Internal error", Detail: err.Error()}
}

func (c *Checker) log() *logger.Logger {
	if c.Log == nil {
		return logger.Nop()
	}
	return c.Log
}
