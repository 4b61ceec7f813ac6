package llmsql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ankaflow/ankaflow/internal/model"
)

// Client abstracts the chat-completion call so the connector can run
// against the real provider, a REST proxy fronting one, or a deterministic
// mock for offline pipelines, per §4.K.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	MaxRetries() int
}

func newClient(cfg *model.LLMConfig) (Client, error) {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	switch cfg.Protocol {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ankaflow: llm protocol %q requires an api_key", cfg.Protocol)
		}
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		return &openaiClient{client: openai.NewClientWithConfig(clientCfg), model: modelOrDefault(cfg.Model), temperature: float32(cfg.Temperature), retries: retries}, nil
	case "proxy":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("ankaflow: llm protocol %q requires a base_url", cfg.Protocol)
		}
		return &proxyClient{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, model: modelOrDefault(cfg.Model), http: &http.Client{Timeout: 30 * time.Second}, retries: retries}, nil
	case "mock":
		return &mockClient{retries: retries}, nil
	default:
		return nil, fmt.Errorf("ankaflow: unknown llm protocol %q", cfg.Protocol)
	}
}

func modelOrDefault(m string) string {
	if m == "" {
		return openai.GPT4oMini
	}
	return m
}

type openaiClient struct {
	client      *openai.Client
	model       string
	temperature float32
	retries     int
}

func (c *openaiClient) MaxRetries() int { return c.retries }

func (c *openaiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You translate requests into a single SQL statement. Respond with SQL only."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ankaflow: llm chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ankaflow: llm returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// proxyClient speaks the same OpenAI-shaped chat-completion request/response
// body over a plain REST POST, for deployments that front the real provider
// with an internal gateway.
type proxyClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	retries int
}

func (c *proxyClient) MaxRetries() int { return c.retries }

func (c *proxyClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You translate requests into a single SQL statement. Respond with SQL only."},
			{"role": "user", "content": prompt},
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.baseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ankaflow: building llm proxy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ankaflow: calling llm proxy: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ankaflow: reading llm proxy response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ankaflow: llm proxy returned %d: %s", resp.StatusCode, data)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("ankaflow: decoding llm proxy response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("ankaflow: llm proxy returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// mockClient is selected when llm.protocol is "mock", for pipelines and
// tests that must not depend on network access. It echoes the prompt back
// as a trivial passthrough query when the prompt itself already looks like
// SQL, otherwise it fails clearly rather than fabricating a guess.
type mockClient struct {
	retries int
}

func (c *mockClient) MaxRetries() int { return c.retries }

func (c *mockClient) Generate(ctx context.Context, prompt string) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") {
		return trimmed, nil
	}
	return "", fmt.Errorf("ankaflow: mock llm client requires a prompt that is already a SELECT/WITH statement, got %q", prompt)
}
