// Package report formats ranked candidates and summarizes a scan.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/pairscan/internal/pipeline"
)

// Summary describes what a scan fetched, dropped and emitted.
type Summary struct {
	ScanID     string                  `json:"scanId"`
	Preset     string                  `json:"preset,omitempty"`
	Now        time.Time               `json:"now"`
	Outcome    string                  `json:"outcome"`
	Stats      pipeline.Stats          `json:"stats"`
	Rejections map[string]int          `json:"rejections"`
	Failures   []pipeline.FetchFailure `json:"failures"`
}

// GenerateSummary builds the summary of res.
func GenerateSummary(preset string, res *pipeline.Result) Summary {
	s := Summary{
		ScanID:     res.ScanID.String(),
		Preset:     preset,
		Now:        res.Now,
		Outcome:    res.Outcome(),
		Stats:      res.Stats,
		Rejections: make(map[string]int, len(res.Rejections)),
		Failures:   res.Failures,
	}
	for check, n := range res.Rejections {
		s.Rejections[check] = n
	}
	if s.Failures == nil {
		s.Failures = []pipeline.FetchFailure{}
	}
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode summary: %w", err)
	}
	return nil
}

const textTmpl = `Scan Summary
------------
Scan ID:     {{.ScanID}}
{{- if .Preset}}
Preset:      {{.Preset}}
{{- end}}
Time:        {{.Now.Format "2006-01-02 15:04:05 MST"}}
Outcome:     {{outcome .}}
Terms:       {{.Stats.TermsQueried}} queried, {{.Stats.TermsFailed}} failed
Pairs:       {{.Stats.PairsFetched}} fetched, {{.Stats.PairsAdmitted}} admitted
Stages:      chain {{.Stats.AfterChain}} -> dedupe {{.Stats.AfterDedupe}} -> filter {{.Stats.AfterFilter}} -> ranked {{.Stats.Emitted}}

Rejections:
{{- range $check, $n := .Rejections}}
  {{$check}}: {{$n}}
{{- else}}
  None
{{- end}}

Failures:
{{- range .Failures}}
  {{.Term}}: {{.Kind}}{{if .StatusCode}} (http {{.StatusCode}}){{end}}{{if .Challenge}}, challenged by {{.Challenge}}{{end}}
{{- else}}
  None
{{- end}}
`

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"outcome": describeOutcome,
}).Parse(textTmpl))

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	if err := summaryTmpl.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render summary: %w", err)
	}
	return nil
}

func describeOutcome(s Summary) string {
	switch s.Outcome {
	case "no_data":
		if s.Stats.TermsQueried > 0 && s.Stats.TermsFailed == s.Stats.TermsQueried {
			return "zero fetched (every search failed)"
		}
		return "zero fetched (searches returned no pairs)"
	case "no_match":
		return "zero matched policy"
	}
	return fmt.Sprintf("%d candidates", s.Stats.Emitted)
}
