package resolver

import (
	"context"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/resolver-cli/internal/cost"
	"github.com/sells-group/resolver-cli/internal/model"
)

// ChatClient is the slice of the go-openai client the synthesizer needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient builds a go-openai client against api.openai.com or, when
// baseURL is non-empty, an OpenAI-compatible gateway such as OpenRouter.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAISynthesizer proposes verdicts through an OpenAI-compatible chat
// completions endpoint.
type OpenAISynthesizer struct {
	client ChatClient
	model  string
	calc   *cost.Calculator
}

// NewOpenAISynthesizer creates a synthesizer for the given model slug.
func NewOpenAISynthesizer(client ChatClient, modelID string, calc *cost.Calculator) *OpenAISynthesizer {
	return &OpenAISynthesizer{client: client, model: modelID, calc: calc}
}

// Name identifies the backend.
func (s *OpenAISynthesizer) Name() string { return "openai" }

// Synthesize prompts the model with criteria plus numbered evidence and
// parses the constrained reply.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, q model.Question, items []model.EvidenceItem) (*Proposal, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: synthSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildSynthesisPrompt(q, items)},
		},
		MaxTokens: synthMaxTokens,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: openai synthesis for %s", q.ID)
	}
	if len(resp.Choices) == 0 {
		return nil, eris.Wrap(ErrMalformedReply, "no choices in response")
	}

	p, err := parseProposal(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	p.Usage = model.TokenUsage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}
	p.CostUSD = s.calc.OpenAI(s.model, p.Usage.InputTokens, p.Usage.OutputTokens)
	return p, nil
}
