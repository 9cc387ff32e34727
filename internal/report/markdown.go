package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/resolver-cli/internal/model"
)

// Markdown renders the report as the auditable document: summary, confusion
// matrix, per-class metrics, one detail section per question in input order,
// and a failures section when structural failures occurred. Output depends
// only on the report's frozen fields.
func Markdown(rep *AssessmentReport) string {
	var b strings.Builder

	b.WriteString("# Assessment Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", rep.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Questions scored: %d\n", rep.Total)
	fmt.Fprintf(&b, "- Correct: %d\n", rep.Correct)
	fmt.Fprintf(&b, "- Accuracy: %s\n", formatPercent(rep.Accuracy))
	fmt.Fprintf(&b, "- Token usage: %d input, %d output\n",
		rep.TokenUsage.InputTokens, rep.TokenUsage.OutputTokens)
	fmt.Fprintf(&b, "- Estimated cost: $%.4f\n", rep.CostUSD)
	if n := len(rep.Failures); n > 0 {
		fmt.Fprintf(&b, "- Structural failures: %d\n", n)
	}
	b.WriteString("\n")

	writeMatrix(&b, rep.Matrix)
	writePerClass(&b, rep)
	writeOutcomes(&b, rep.Outcomes)
	writeFailures(&b, rep.Failures)

	return b.String()
}

func writeMatrix(b *strings.Builder, m model.ConfusionMatrix) {
	b.WriteString("## Confusion Matrix\n\n")

	b.WriteString("| Actual \\ Predicted |")
	for _, predicted := range model.PredictionLabels() {
		fmt.Fprintf(b, " %s |", predicted)
	}
	b.WriteString("\n|---|")
	for range model.PredictionLabels() {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, actual := range model.GroundTruthLabels() {
		fmt.Fprintf(b, "| %s |", actual)
		for _, predicted := range model.PredictionLabels() {
			fmt.Fprintf(b, " %d |", m.Cell(actual, predicted))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writePerClass(b *strings.Builder, rep *AssessmentReport) {
	b.WriteString("## Per-Class Metrics\n\n")
	b.WriteString("| Label | Precision | Recall |\n|---|---|---|\n")
	for _, cm := range rep.PerClass() {
		fmt.Fprintf(b, "| %s | %s | %s |\n",
			cm.Label, formatPercent(cm.Precision), formatPercent(cm.Recall))
	}
	b.WriteString("\n")
}

func writeOutcomes(b *strings.Builder, outcomes []model.Outcome) {
	b.WriteString("## Questions\n\n")
	if len(outcomes) == 0 {
		b.WriteString("No questions were scored.\n\n")
		return
	}

	for i, o := range outcomes {
		q := o.Record.Question

		title := q.Title
		if title == "" {
			title = q.ID
		}
		fmt.Fprintf(b, "### %d. %s\n\n", i+1, title)
		if q.URL != "" {
			fmt.Fprintf(b, "URL: %s\n\n", q.URL)
		}

		for _, line := range strings.Split(strings.TrimRight(q.Criteria, "\n"), "\n") {
			fmt.Fprintf(b, "> %s\n", line)
		}
		b.WriteString("\n")

		b.WriteString("| | Label |\n|---|---|\n")
		fmt.Fprintf(b, "| Predicted | %s |\n", o.Record.Predicted)
		fmt.Fprintf(b, "| Actual | %s |\n\n", o.Actual)

		if o.Record.Rationale != "" {
			fmt.Fprintf(b, "%s\n\n", o.Record.Rationale)
		}

		if len(o.Record.Citations) > 0 {
			b.WriteString("Citations:\n\n")
			for _, c := range o.Record.Citations {
				fmt.Fprintf(b, "> %q (%s)\n", c.Quote, citationSource(c))
			}
			b.WriteString("\n")
		}

		fmt.Fprintf(b, "Cost: $%.4f (%dms)\n\n", o.Record.CostUSD, o.Record.Duration)
	}
}

func writeFailures(b *strings.Builder, failures []model.ItemFailure) {
	if len(failures) == 0 {
		return
	}
	b.WriteString("## Failures\n\n")
	for _, f := range failures {
		id := f.QuestionID
		if id == "" {
			id = "unknown"
		}
		fmt.Fprintf(b, "- item %d (%s): %s\n", f.Index, id, f.Reason)
	}
	b.WriteString("\n")
}

func citationSource(c model.Citation) string {
	switch {
	case c.Title != "" && c.SourceURL != "":
		return c.Title + ", " + c.SourceURL
	case c.SourceURL != "":
		return c.SourceURL
	case c.Title != "":
		return c.Title
	default:
		return "unattributed"
	}
}

func formatPercent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}
