package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/cost"
	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/pkg/jina"
)

// maxSnippetLen caps a single evidence item's text. Jina returns full page
// content; anything past this adds prompt cost without adding signal.
const maxSnippetLen = 2000

// JinaCollector collects evidence from the Jina search API, keyed on the
// criteria's literal condition.
type JinaCollector struct {
	client     jina.Client
	maxResults int
	calc       *cost.Calculator
	siteFilter string
	deepReads  int
}

// JinaCollectorOption configures a JinaCollector.
type JinaCollectorOption func(*JinaCollector)

// WithSearchSite restricts search results to a single domain.
func WithSearchSite(domain string) JinaCollectorOption {
	return func(c *JinaCollector) {
		c.siteFilter = domain
	}
}

// WithDeepReads fetches full page content through the reader endpoint for up
// to n search hits that came back without a content body.
func WithDeepReads(n int) JinaCollectorOption {
	return func(c *JinaCollector) {
		c.deepReads = n
	}
}

// NewJinaCollector creates a Jina-backed collector.
func NewJinaCollector(client jina.Client, maxResults int, calc *cost.Calculator, opts ...JinaCollectorOption) *JinaCollector {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	c := &JinaCollector{
		client:     client,
		maxResults: maxResults,
		calc:       calc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the provider in logs and retry messages.
func (c *JinaCollector) Name() string { return "jina" }

// Collect searches for the criteria text and maps result content onto
// evidence items in result order. Hits that arrive without a content body
// are backfilled through the reader endpoint, up to the deep-read budget;
// a failed read keeps the search snippet.
func (c *JinaCollector) Collect(ctx context.Context, q model.Question) (*Evidence, error) {
	var searchOpts []jina.SearchOption
	if c.siteFilter != "" {
		searchOpts = append(searchOpts, jina.WithSiteFilter(c.siteFilter))
	}
	resp, err := c.client.Search(ctx, q.Criteria, searchOpts...)
	if err != nil {
		return nil, classifyProviderError(err)
	}

	results := resp.Data
	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}

	items := make([]model.EvidenceItem, 0, len(results))
	totalChars := 0
	readTokens := int64(0)
	readsLeft := c.deepReads
	for i, sr := range results {
		text := sr.Content
		fromReader := false
		if text == "" && readsLeft > 0 && sr.URL != "" {
			readsLeft--
			if body, tokens := c.deepRead(ctx, sr.URL); body != "" {
				text = body
				readTokens += tokens
				fromReader = true
			}
		}
		if text == "" {
			text = sr.Description
		}
		if text == "" {
			text = sr.Title
		}
		if !fromReader {
			totalChars += len(text)
		}
		text = truncateRunes(text, maxSnippetLen)
		items = append(items, model.EvidenceItem{
			Text:      text,
			SourceURL: sr.URL,
			Title:     sr.Title,
			Rank:      i,
			Tier:      ClassifyAuthority(sr.URL),
		})
	}

	// The search response reports no usage; estimate tokens from returned
	// content at ~4 chars/token. Reader calls report real counts.
	estTokens := int64(totalChars)/4 + readTokens
	ev := &Evidence{
		Items:   items,
		Usage:   model.TokenUsage{InputTokens: estTokens},
		CostUSD: c.calc.Jina(estTokens),
	}

	zap.L().Debug("research: collected evidence",
		zap.String("provider", c.Name()),
		zap.String("question_id", q.ID),
		zap.Int("items", len(ev.Items)),
	)
	return ev, nil
}

// deepRead fetches a page through the reader endpoint. Failures are logged
// and swallowed; the caller falls back to the search snippet.
func (c *JinaCollector) deepRead(ctx context.Context, pageURL string) (string, int64) {
	resp, err := c.client.Read(ctx, pageURL)
	if err != nil {
		zap.L().Warn("research: deep read failed",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return "", 0
	}
	return resp.Data.Content, int64(resp.Data.Usage.Tokens)
}

// truncateRunes caps s at n runes without splitting a multi-byte character.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
