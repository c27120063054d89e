package enrich_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a11ygate/a11ygate/internal/enrich"
)

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := enrich.NewGeminiClient(enrich.GeminiConfig{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestGeminiClient_Generate(t *testing.T) {
	t.Parallel()

	var gotPath, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && len(body.Contents) > 0 && len(body.Contents[0].Parts) > 0 {
			gotPrompt = body.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello from gemini"}]}}]}`))
	}))
	t.Cleanup(srv.Close)

	client, err := enrich.NewGeminiClient(enrich.GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}

	text, err := client.Generate(context.Background(), "explain this")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "hello from gemini" {
		t.Errorf("text = %q", text)
	}
	if !strings.Contains(gotPath, "gemini-pro:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotPrompt != "explain this" {
		t.Errorf("prompt = %q", gotPrompt)
	}
}

func TestGeminiClient_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client, err := enrich.NewGeminiClient(enrich.GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	if _, err := client.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	t.Cleanup(srv.Close)

	client, err := enrich.NewGeminiClient(enrich.GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	if _, err := client.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}
