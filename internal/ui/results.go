package ui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Aman-CERP/mojify/internal/search"
)

// ResultsRenderer prints search results.
type ResultsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultsRenderer creates a results renderer.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints one block per hit, best first.
func (r *ResultsRenderer) Render(query string, results []*search.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintf(r.out, "No results for %q\n", query)
		return err
	}

	for i, res := range results {
		_, _ = fmt.Fprintf(r.out, "%2d. %s %s %s\n",
			i+1,
			r.styles.Stage.Render(fmt.Sprintf("%-8s", res.EntityType)),
			r.styles.Header.Render(res.Title),
			r.styles.Score.Render(fmt.Sprintf("(%.4f)", res.Score)))

		id := res.EntityID
		if res.PromptID != "" {
			id += " · prompt " + res.PromptID
		}
		_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Dim.Render(id))
		if res.Snippet != nil && *res.Snippet != "" {
			_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Label.Render(*res.Snippet))
		}
	}
	return nil
}

// RenderJSON prints the same shape as the HTTP search endpoint.
func (r *ResultsRenderer) RenderJSON(query string, results []*search.Result) error {
	if results == nil {
		results = []*search.Result{}
	}
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		Query   string           `json:"query"`
		Results []*search.Result `json:"results"`
	}{query, results})
}
