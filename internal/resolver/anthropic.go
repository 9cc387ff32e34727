package resolver

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/cost"
	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/pkg/anthropic"
)

const synthMaxTokens = 1024

// AnthropicSynthesizer proposes verdicts through the Anthropic messages API.
// The static system prompt carries cache control so repeated questions in a
// run reuse the cached prefix.
type AnthropicSynthesizer struct {
	client anthropic.Client
	model  string
	calc   *cost.Calculator
}

// NewAnthropicSynthesizer creates a synthesizer for the given Claude model.
func NewAnthropicSynthesizer(client anthropic.Client, modelID string, calc *cost.Calculator) *AnthropicSynthesizer {
	return &AnthropicSynthesizer{client: client, model: modelID, calc: calc}
}

// Name identifies the backend.
func (s *AnthropicSynthesizer) Name() string { return "anthropic" }

// Synthesize prompts the model with criteria plus numbered evidence and
// parses the constrained reply.
func (s *AnthropicSynthesizer) Synthesize(ctx context.Context, q model.Question, items []model.EvidenceItem) (*Proposal, error) {
	temp := 0.0
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: synthMaxTokens,
		System: []anthropic.SystemBlock{{
			Text:         synthSystemPrompt,
			CacheControl: &anthropic.CacheControl{TTL: "5m"},
		}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: buildSynthesisPrompt(q, items),
		}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: anthropic synthesis for %s", q.ID)
	}

	var text strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			text.WriteString(b.Text)
		}
	}

	p, err := parseProposal(text.String())
	if err != nil {
		return nil, err
	}

	p.Usage = model.TokenUsage{
		InputTokens:         resp.Usage.InputTokens,
		OutputTokens:        resp.Usage.OutputTokens,
		CacheCreationTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:     resp.Usage.CacheReadInputTokens,
	}
	p.CostUSD = s.calc.Claude(s.model,
		p.Usage.InputTokens,
		p.Usage.OutputTokens,
		p.Usage.CacheCreationTokens,
		p.Usage.CacheReadTokens,
	)

	zap.L().Debug("resolver: synthesis cost",
		zap.String("model", s.model),
		zap.String("question_id", q.ID),
		zap.Int64("input_tokens", p.Usage.InputTokens),
		zap.Int64("output_tokens", p.Usage.OutputTokens),
		zap.Int64("cache_write_tokens", p.Usage.CacheCreationTokens),
		zap.Int64("cache_read_tokens", p.Usage.CacheReadTokens),
		zap.Float64("cost_usd", p.CostUSD),
	)
	return p, nil
}
