// Package suggest defines the link suggestion record and its export
// formats.
package suggest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Suggestion is one recommended internal link from one post to another.
// Score holds the raw cosine similarity; SimilarityScore is the
// percentage string that goes into exports.
type Suggestion struct {
	FromPost        string  `json:"from_post"`
	ToPost          string  `json:"to_post"`
	ToTitle         string  `json:"to_title,omitempty"`
	Reason          string  `json:"reason"`
	AnchorText      string  `json:"anchor_text"`
	SimilarityScore string  `json:"similarity_score"`
	Score           float64 `json:"-"`
	Incomplete      bool    `json:"incomplete,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// FormatPercent renders a cosine similarity in [0,1] as a one-decimal
// percentage string, e.g. 0.875 -> "87.5%".
func FormatPercent(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

// WriteJSON writes suggestions as an indented JSON array. A nil or
// empty slice writes an empty array, not null.
func WriteJSON(w io.Writer, suggestions []Suggestion) error {
	if suggestions == nil {
		suggestions = []Suggestion{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(suggestions)
}

// ExportFile writes suggestions to path as JSON.
func ExportFile(path string, suggestions []Suggestion) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteJSON(f, suggestions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Render writes a human-readable listing for terminal output.
func Render(w io.Writer, suggestions []Suggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No suggestions above the similarity threshold.")
		return
	}
	for i, s := range suggestions {
		title := s.ToTitle
		if title == "" {
			title = s.ToPost
		}
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, title, s.SimilarityScore)
		fmt.Fprintf(w, "   %s\n", s.ToPost)
		if s.Incomplete {
			fmt.Fprintf(w, "   incomplete: %s\n", s.Error)
		} else {
			fmt.Fprintf(w, "   reason: %s\n", s.Reason)
			fmt.Fprintf(w, "   anchor: %q\n", s.AnchorText)
		}
		if i < len(suggestions)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
}
