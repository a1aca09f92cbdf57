package llm

// #region imports
import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// #endregion

// #region provider

// OpenAIProvider generates text through the official openai-go SDK
// (chat completions).
type OpenAIProvider struct {
	name   string
	apiKey string
	model  string
	opts   []option.RequestOption
}

// NewOpenAIProvider builds a provider for the given model. baseURL may be
// empty for the default endpoint, or point at any compatible gateway.
func NewOpenAIProvider(name, apiKey, model, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{name: name, apiKey: apiKey, model: model, opts: opts}
}

func (p *OpenAIProvider) Name() string { return p.name }

// #endregion

// #region generate

// Generate sends the conversation as a chat completion request.
func (p *OpenAIProvider) Generate(ctx context.Context, msgs []Message, temperature float64, maxTokens int) (string, error) {
	client := openai.NewClient(p.opts...)

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// #endregion

// #region healthcheck

// Healthcheck only verifies a key is configured; a failed generate already
// opens the circuit.
func (p *OpenAIProvider) Healthcheck(ctx context.Context) bool {
	return p.apiKey != ""
}

// #endregion
