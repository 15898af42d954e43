package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/rehearse/internal/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c := NewClient("rk-123", "claude-test")
	c.SetTestTransport(server.URL)
	return c
}

func TestGenerateText_RequestShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("x-api-key"); got != "rk-123" {
			t.Errorf("expected x-api-key rk-123, got %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("expected anthropic-version 2023-06-01, got %q", got)
		}

		body, _ := io.ReadAll(r.Body)
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if string(raw["temperature"]) != "0.7" {
			t.Errorf("expected temperature 0.7, got %s", raw["temperature"])
		}
		var req request
		json.Unmarshal(body, &req)
		if req.Model != "claude-test" {
			t.Errorf("expected model claude-test, got %q", req.Model)
		}
		if req.MaxTokens != textMaxTokens {
			t.Errorf("expected max_tokens %d, got %d", textMaxTokens, req.MaxTokens)
		}
		if req.System != "你是经理教练" {
			t.Errorf("expected system prompt, got %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "生成一个场景" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		textReply(w, "场景已生成")
	})

	temp := float32(0.7)
	got, err := c.GenerateText(context.Background(), "生成一个场景", llm.TextOptions{System: "你是经理教练", Temperature: &temp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "场景已生成" {
		t.Errorf("expected reply text, got %q", got)
	}
}

func TestGenerateText_OmitsUnsetTemperatureAndSystem(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["temperature"]; ok {
			t.Errorf("expected no temperature, got %s", raw["temperature"])
		}
		if _, ok := raw["system"]; ok {
			t.Errorf("expected no system, got %s", raw["system"])
		}
		textReply(w, "ok")
	})

	if _, err := c.GenerateText(context.Background(), "hi", llm.TextOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateText_FirstNonEmptyTextBlock(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":[
			{"type":"thinking","text":"ignored"},
			{"type":"text","text":""},
			{"type":"text","text":"第一段"},
			{"type":"text","text":"第二段"}
		],"stop_reason":"end_turn"}`))
	})

	got, err := c.GenerateText(context.Background(), "hi", llm.TextOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "第一段" {
		t.Errorf("expected first non-empty text block, got %q", got)
	}
}

func TestGenerateText_EmptyContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":[],"stop_reason":"end_turn"}`))
	})

	_, err := c.GenerateText(context.Background(), "hi", llm.TextOptions{})
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerateText_APIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   []string
	}{
		{
			name:   "typed error",
			status: http.StatusBadRequest,
			body:   `{"error":{"type":"invalid_request_error","message":"max_tokens is too large"}}`,
			want:   []string{"400", "invalid_request_error", "max_tokens is too large"},
		},
		{
			name:   "untyped body",
			status: http.StatusBadGateway,
			body:   `upstream unavailable`,
			want:   []string{"502", "upstream unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.GenerateText(context.Background(), "hi", llm.TextOptions{})
			if err == nil {
				t.Fatal("expected error")
			}
			for _, s := range tt.want {
				if !strings.Contains(err.Error(), s) {
					t.Errorf("expected error to contain %q, got %v", s, err)
				}
			}
		})
	}
}

func TestGenerateText_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":`))
	})

	_, err := c.GenerateText(context.Background(), "hi", llm.TextOptions{})
	if err == nil || !strings.Contains(err.Error(), "unmarshal response") {
		t.Fatalf("expected unmarshal error, got %v", err)
	}
}
