package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/anchormap/anchormap/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIEmbedder calls the OpenAI embeddings API.
type openAIEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	http       *HTTPClient
}

func newOpenAIEmbedder(cfg config.EmbeddingConfig, httpClient *HTTPClient) *openAIEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIEmbedder{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		baseURL:    baseURL,
		http:       httpClient,
	}
}

func (e *openAIEmbedder) Model() string   { return e.model }
func (e *openAIEmbedder) Dimensions() int { return e.dimensions }

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = truncate(t, maxEmbedChars)
	}

	requestBody := map[string]interface{}{
		"model": e.model,
		"input": input,
	}

	var openaiResp struct {
		Data []struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}
	if err := e.http.DoJSON(ctx, "POST", e.baseURL+"/embeddings", headers, requestBody, &openaiResp); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(openaiResp.Data) != len(input) {
		return nil, fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(input), len(openaiResp.Data))
	}

	vecs := make([][]float32, len(openaiResp.Data))
	for _, d := range openaiResp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("openai embeddings: vector index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// openAIChat calls the OpenAI chat completions API.
type openAIChat struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	baseURL     string
	http        *HTTPClient
}

func newOpenAIChat(cfg config.GenerationConfig, httpClient *HTTPClient) *openAIChat {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIChat{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		baseURL:     baseURL,
		http:        httpClient,
	}
}

// message represents a message in a conversation
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openAIChat) Complete(ctx context.Context, system, user string) (string, error) {
	var messages []message
	if system != "" {
		messages = append(messages, message{Role: "system", Content: system})
	}
	messages = append(messages, message{Role: "user", Content: user})

	requestBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := c.http.DoJSON(ctx, "POST", c.baseURL+"/chat/completions", headers, requestBody, &resp); err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
