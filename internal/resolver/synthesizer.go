package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolver-cli/internal/model"
)

// maxProposalQuotes caps how many supporting quotes a proposal carries.
const maxProposalQuotes = 5

// ErrMalformedReply marks a synthesizer reply that could not be parsed into
// a label, rationale, and quotes. The resolver treats it as a synthesis
// failure and falls back to deterministic labeling.
var ErrMalformedReply = eris.New("resolver: malformed synthesizer reply")

// Proposal is a synthesizer's suggested verdict. Quotes are untrusted until
// the resolver verifies each one against the collected evidence. Label is
// UNMATCHED when the reply parsed but its label literal falls outside the
// taxonomy; Raw preserves the literal for logging.
type Proposal struct {
	Label     model.Label
	Raw       string
	Rationale string
	Quotes    []string
	Usage     model.TokenUsage
	CostUSD   float64
}

// Synthesizer proposes a verdict from a question's criteria plus numbered
// evidence. Synthesizers are optional; without one the resolver labels
// deterministically.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, q model.Question, items []model.EvidenceItem) (*Proposal, error)
}

const synthSystemPrompt = `You are a forecasting-question resolution analyst. Given a question's resolution criteria and numbered evidence snippets, decide how the question resolves.

Rules:
- Decide ONLY from the evidence provided. Do not use outside knowledge.
- TRUE means the evidence shows the criteria were met; FALSE means the evidence shows they were not met.
- UNRESOLVABLE means the evidence is insufficient or contradictory; CANCELLED means the question was withdrawn or became moot before the criteria could be evaluated.
- Every quote must be copied character-for-character from one of the evidence snippets.
- Prefer official primary sources over secondary commentary when evidence conflicts.
- Return valid JSON for every response.`

// buildSynthesisPrompt renders the user message: the question, its criteria,
// the numbered evidence with tier and source, and the required reply shape.
func buildSynthesisPrompt(q model.Question, items []model.EvidenceItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", q.Title)
	if q.CloseTime != nil {
		fmt.Fprintf(&sb, "Close time: %s\n", q.CloseTime.Format("2006-01-02"))
	}
	fmt.Fprintf(&sb, "\nResolution criteria:\n%s\n\nEvidence:\n", q.Criteria)

	for i, item := range items {
		src := item.SourceURL
		if src == "" {
			src = "unattributed"
		}
		fmt.Fprintf(&sb, "[%d] (%s, %s) %s\n", i+1, tierOf(item), src, item.Text)
	}

	sb.WriteString(`
Respond with ONLY valid JSON in this format:
{
  "label": "<TRUE | FALSE | UNRESOLVABLE | CANCELLED>",
  "rationale": "<2-4 sentences explaining the verdict>",
  "quotes": ["<1-5 verbatim quotes from the evidence>"]
}`)
	return sb.String()
}

// parseProposal parses a synthesizer reply strictly. Unparseable JSON or a
// missing label or rationale is ErrMalformedReply. A reply whose label
// literal is outside the taxonomy is not malformed: the proposal is real but
// un-comparable, so it maps to UNMATCHED with the literal preserved.
func parseProposal(text string) (*Proposal, error) {
	var raw struct {
		Label     string   `json:"label"`
		Rationale string   `json:"rationale"`
		Quotes    []string `json:"quotes"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return nil, eris.Wrapf(ErrMalformedReply, "unmarshal: %v", err)
	}

	raw.Label = strings.TrimSpace(raw.Label)
	raw.Rationale = strings.TrimSpace(raw.Rationale)
	if raw.Label == "" {
		return nil, eris.Wrap(ErrMalformedReply, "missing label")
	}
	if raw.Rationale == "" {
		return nil, eris.Wrap(ErrMalformedReply, "missing rationale")
	}
	if len(raw.Quotes) > maxProposalQuotes {
		raw.Quotes = raw.Quotes[:maxProposalQuotes]
	}

	p := &Proposal{
		Raw:       raw.Label,
		Rationale: raw.Rationale,
		Quotes:    raw.Quotes,
	}

	label, err := model.ParseGroundTruth(raw.Label)
	if err != nil {
		p.Label = model.LabelUnmatched
		return p, nil
	}
	p.Label = label
	return p, nil
}

// cleanJSON strips code fences and leading/trailing prose around the first
// JSON object in a model reply.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
