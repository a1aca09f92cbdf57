package llm

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// #endregion

// #region provider

// OllamaProvider talks to a local Ollama server via its /api/chat endpoint.
type OllamaProvider struct {
	name    string
	baseURL string
	model   string
	httpc   *http.Client
}

// NewOllamaProvider builds a provider for the given Ollama base URL and model.
func NewOllamaProvider(name, baseURL, model string, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OllamaProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (p *OllamaProvider) Name() string { return p.name }

// #endregion

// #region generate

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// Generate sends a non-streaming chat request and returns the reply content.
func (p *OllamaProvider) Generate(ctx context.Context, msgs []Message, temperature float64, maxTokens int) (string, error) {
	body := ollamaChatRequest{
		Model:   p.model,
		Stream:  false,
		Options: ollamaOptions{Temperature: temperature, NumPredict: maxTokens},
	}
	for _, m := range msgs {
		body.Messages = append(body.Messages, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(snippet))
	}

	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	return out.Message.Content, nil
}

// #endregion

// #region healthcheck

// Healthcheck probes the tags endpoint, which answers without loading a model.
func (p *OllamaProvider) Healthcheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// #endregion
