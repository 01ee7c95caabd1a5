package grammar

import "strings"

// Suggest returns the corrected text, or builds one by applying each issue's
// replacement to text when the model left corrected empty.
func Suggest(text string, r *Result) string {
	if r == nil {
		return text
	}
	if strings.TrimSpace(r.Corrected) != "" {
		return r.Corrected
	}
	out := text
	for _, is := range r.Issues {
		if is.Original == "" || is.Replacement == "" {
			continue
		}
		out = strings.Replace(out, is.Original, is.Replacement, 1)
	}
	return out
}

// Annotation locates an issue in the submitted text for highlighting.
type Annotation struct {
	Offset       int      `json:"offset"`
	Length       int      `json:"length"`
	Word         string   `json:"word"`
	Replacements []string `json:"replacements"`
	Message      string   `json:"message"`
}

// Annotate maps issues to byte offsets in text. An issue whose original text
// is not found is placed at offset 0.
func Annotate(text string, issues []Issue) []Annotation {
	out := make([]Annotation, 0, len(issues))
	for _, is := range issues {
		a := Annotation{Word: is.Original, Length: len(is.Original), Message: is.Explanation, Replacements: []string{}}
		if is.Original != "" {
			if i := strings.Index(text, is.Original); i >= 0 {
				a.Offset = i
			}
		}
		if is.Replacement != "" {
			a.Replacements = []string{is.Replacement}
		}
		out = append(out, a)
	}
	return out
}
