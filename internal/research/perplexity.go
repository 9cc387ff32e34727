package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/cost"
	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/pkg/perplexity"
)

const defaultMaxResults = 8

// collectPromptTemplate asks for evidence that settles the condition rather
// than an opinion about it; the answer text is only used for per-source
// sentence attribution.
const collectPromptTemplate = `Find direct evidence that settles whether the following condition held. State specific facts and cite a source for each.

Question: %s

Condition: %s`

// PerplexityCollector collects evidence with one search-grounded chat
// completion per question.
type PerplexityCollector struct {
	client     perplexity.Client
	model      string
	maxResults int
	calc       *cost.Calculator
}

// NewPerplexityCollector creates a Perplexity-backed collector. An empty
// model uses the client default; maxResults <= 0 uses the package default.
func NewPerplexityCollector(client perplexity.Client, model string, maxResults int, calc *cost.Calculator) *PerplexityCollector {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &PerplexityCollector{
		client:     client,
		model:      model,
		maxResults: maxResults,
		calc:       calc,
	}
}

// Name identifies the provider in logs and retry messages.
func (c *PerplexityCollector) Name() string { return "perplexity" }

// Collect performs the search completion and maps each search result to an
// EvidenceItem in result order. When the API returns no structured results,
// the synthesized answer is attached as a single tertiary item so the
// resolver still sees what the search surfaced.
func (c *PerplexityCollector) Collect(ctx context.Context, q model.Question) (*Evidence, error) {
	req := perplexity.ChatCompletionRequest{
		Model: c.model,
		Messages: []perplexity.Message{
			{Role: "user", Content: fmt.Sprintf(collectPromptTemplate, q.Title, q.Criteria)},
		},
	}
	if q.CloseTime != nil {
		// Focus the search window on reporting contemporaneous with the
		// close; outcome coverage postdates it, so no before-filter.
		after := q.CloseTime.AddDate(0, -6, 0)
		req.SearchAfterDateFilter = fmt.Sprintf("%d/%d/%d", after.Month(), after.Day(), after.Year())
	}

	resp, err := c.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyProviderError(err)
	}

	var answer string
	if len(resp.Choices) > 0 {
		answer = resp.Choices[0].Message.Content
	}

	results := resp.SearchResults
	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}

	items := make([]model.EvidenceItem, 0, len(results)+1)
	for i, sr := range results {
		text := sentencesCiting(answer, i+1)
		if text == "" {
			text = sr.Title
		}
		items = append(items, model.EvidenceItem{
			Text:        text,
			SourceURL:   sr.URL,
			Title:       sr.Title,
			PublishedAt: parseResultDate(sr.Date),
			Rank:        i,
			Tier:        ClassifyAuthority(sr.URL),
		})
	}
	if len(items) == 0 && strings.TrimSpace(answer) != "" {
		items = append(items, model.EvidenceItem{
			Text:  answer,
			Title: "synthesized search answer",
			Rank:  0,
			Tier:  model.TierTertiary,
		})
	}

	ev := &Evidence{
		Items: items,
		Usage: model.TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
		CostUSD: c.calc.PerplexityQuery(),
	}

	zap.L().Debug("research: collected evidence",
		zap.String("provider", c.Name()),
		zap.String("question_id", q.ID),
		zap.Int("items", len(ev.Items)),
	)
	return ev, nil
}

// sentencesCiting extracts the answer sentences that cite search result n
// (1-based, marker "[n]").
func sentencesCiting(answer string, n int) string {
	marker := fmt.Sprintf("[%d]", n)
	if !strings.Contains(answer, marker) {
		return ""
	}
	var picked []string
	for _, s := range splitSentences(answer) {
		if strings.Contains(s, marker) {
			picked = append(picked, s)
		}
	}
	return strings.Join(picked, " ")
}

// splitSentences splits on sentence terminators and newlines, trimming
// whitespace. Good enough for citation-marker attribution; not a tokenizer.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// parseResultDate parses the yyyy-mm-dd publication date the API returns
// when it knows one.
func parseResultDate(date string) *time.Time {
	if date == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}
	return &t
}
