package oracle_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"briefline/internal/oracle"
)

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func TestCompleteStripsThinkingAndPinsTemperature(t *testing.T) {
	var captured struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(completionBody("<think>let me reason</think>\n{\"ok\": true}")))
	}))
	defer srv.Close()

	client := oracle.NewChatClient(oracle.Config{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "test-key",
		Model:   "test-model",
	})
	out, err := client.Complete(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"ok": true}` {
		t.Fatalf("thinking block not stripped: %q", out)
	}
	if captured.Temperature != 0 {
		t.Fatalf("temperature %v, want 0", captured.Temperature)
	}
	if captured.Model != "test-model" {
		t.Fatalf("model %q", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := oracle.NewChatClient(oracle.Config{BaseURL: "http://localhost:1", Model: "m"})
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestCompleteSurfacesHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := oracle.NewChatClient(oracle.Config{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	_, err := client.Complete(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	client := oracle.NewChatClient(oracle.Config{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	_, err := client.Complete(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	client := oracle.NewChatClient(oracle.Config{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestStripThinking(t *testing.T) {
	cases := []struct{ in, want string }{
		{"<think>a</think>answer", "answer"},
		{"<think>a\nb\nc</think>\n\nanswer", "answer"},
		{"answer without reasoning", "answer without reasoning"},
		{"<think>one</think>x<think>two</think>y", "xy"},
	}
	for _, tc := range cases {
		if got := oracle.StripThinking(tc.in); got != tc.want {
			t.Fatalf("StripThinking(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
