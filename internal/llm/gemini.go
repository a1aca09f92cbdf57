package llm

// #region imports
import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// #endregion

// #region provider

// GeminiProvider generates text through the official generative-ai-go SDK.
type GeminiProvider struct {
	name   string
	apiKey string
	model  string
}

// NewGeminiProvider builds a provider for the given Gemini model.
func NewGeminiProvider(name, apiKey, model string) *GeminiProvider {
	return &GeminiProvider{
		name:   name,
		apiKey: strings.TrimSpace(apiKey),
		model:  strings.TrimSpace(model),
	}
}

func (p *GeminiProvider) Name() string { return p.name }

// #endregion

// #region generate

// Generate maps the conversation onto Gemini content parts. System messages
// become the model's system instruction; assistant turns map to the "model"
// role.
func (p *GeminiProvider) Generate(ctx context.Context, msgs []Message, temperature float64, maxTokens int) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("gemini: api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("gemini: new client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(p.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptrFloat32(float32(temperature)),
		MaxOutputTokens: ptrInt32(int32(maxTokens)),
	}

	var systemParts []genai.Part
	var history []*genai.Content
	var last []genai.Part
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, genai.Text(msg.Content))
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(systemParts) > 0 {
		m.SystemInstruction = &genai.Content{Parts: systemParts}
	}
	if len(history) == 0 {
		return "", fmt.Errorf("gemini: no user content")
	}
	last = history[len(history)-1].Parts
	if len(history) > 1 {
		cs := m.StartChat()
		cs.History = history[:len(history)-1]
		resp, err := cs.SendMessage(ctx, last...)
		if err != nil {
			return "", fmt.Errorf("gemini: %w", err)
		}
		return firstText(resp), nil
	}

	resp, err := m.GenerateContent(ctx, last...)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return firstText(resp), nil
}

// firstText extracts the first text part of the first candidate.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			return strings.TrimSpace(string(t))
		}
	}
	return ""
}

// #endregion

// #region healthcheck

// Healthcheck only verifies a key is configured; the SDK has no cheap probe
// and a failed generate already opens the circuit.
func (p *GeminiProvider) Healthcheck(ctx context.Context) bool {
	return p.apiKey != ""
}

// #endregion

// #region helpers

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }

// #endregion
