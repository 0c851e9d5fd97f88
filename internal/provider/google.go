package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anchormap/anchormap/config"
)

const defaultGoogleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// googleEmbedder calls the Google Generative Language batch embedding API.
type googleEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	http       *HTTPClient
}

func newGoogleEmbedder(cfg config.EmbeddingConfig, httpClient *HTTPClient) *googleEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &googleEmbedder{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		baseURL:    baseURL,
		http:       httpClient,
	}
}

func (e *googleEmbedder) Model() string   { return e.model }
func (e *googleEmbedder) Dimensions() int { return e.dimensions }

// modelPath returns the API model name, which carries a models/ prefix.
func (e *googleEmbedder) modelPath() string {
	if strings.HasPrefix(e.model, "models/") {
		return e.model
	}
	return "models/" + e.model
}

type googleEmbedContent struct {
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type googleEmbedRequest struct {
	Model   string             `json:"model"`
	Content googleEmbedContent `json:"content"`
}

func (e *googleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requests := make([]googleEmbedRequest, len(texts))
	for i, t := range texts {
		var content googleEmbedContent
		content.Parts = append(content.Parts, struct {
			Text string `json:"text"`
		}{Text: truncate(t, maxEmbedChars)})
		requests[i] = googleEmbedRequest{Model: e.modelPath(), Content: content}
	}

	var googleResp struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	url := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", e.baseURL, e.modelPath(), e.apiKey)
	body := map[string]interface{}{"requests": requests}
	if err := e.http.DoJSON(ctx, "POST", url, nil, body, &googleResp); err != nil {
		return nil, fmt.Errorf("google embeddings: %w", err)
	}
	if len(googleResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google embeddings: expected %d vectors, got %d", len(texts), len(googleResp.Embeddings))
	}

	vecs := make([][]float32, len(googleResp.Embeddings))
	for i, emb := range googleResp.Embeddings {
		vecs[i] = emb.Values
	}
	return vecs, nil
}
