package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TextGenerator is the contract with the external text-generation
// collaborator: one prompt in, free text out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig configures the Gemini REST client. APIKey is required
// configuration with no embedded default; without it the enricher runs in
// fallback-only mode.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// DefaultGeminiConfig returns defaults for everything except the key.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model:   "gemini-pro",
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Timeout: 20 * time.Second,
	}
}

// GeminiClient calls the generateContent endpoint over plain HTTP.
type GeminiClient struct {
	cfg    GeminiConfig
	client *http.Client
}

// NewGeminiClient creates a client, or an error when the API key is absent.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key not configured")
	}
	d := DefaultGeminiConfig()
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &GeminiClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate implements TextGenerator.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.cfg.BaseURL, g.cfg.Model, g.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gemini: status %d: %s", resp.StatusCode, string(msg))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini: decoding response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
