package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/rehearse/internal/llm"
)

func textReply(w http.ResponseWriter, text string) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"content":     []any{map[string]any{"type": "text", "text": text}},
		"stop_reason": "end_turn",
	})
}

func TestChat_HistoryOnlyOnSuccess(t *testing.T) {
	var seen [][]Message
	fail := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		seen = append(seen, req.Messages)
		if req.System != "你是小陈" {
			t.Errorf("expected system prompt, got %q", req.System)
		}
		if req.Temperature == nil || *req.Temperature != 0.9 {
			t.Errorf("expected temperature 0.9, got %v", req.Temperature)
		}
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"type":"api_error","message":"overloaded"}}`))
			return
		}
		textReply(w, "reply")
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model")
	c.SetTestTransport(server.URL)
	ch, _ := c.NewChat(context.Background(), llm.ChatOptions{System: "你是小陈", Temperature: 0.9})

	if _, err := ch.Send(context.Background(), "one"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	fail = true
	if _, err := ch.Send(context.Background(), "two"); err == nil {
		t.Fatal("expected failure")
	}
	fail = false
	if _, err := ch.Send(context.Background(), "three"); err != nil {
		t.Fatalf("third send: %v", err)
	}

	last := seen[len(seen)-1]
	if len(last) != 3 {
		t.Fatalf("expected 3 messages after a failed send, got %d: %+v", len(last), last)
	}
	if last[0].Content != "one" || last[1].Role != "assistant" || last[2].Content != "three" {
		t.Errorf("unexpected history %+v", last)
	}
}

func TestGenerateStructured_StripsFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		if !strings.Contains(req.System, `"score"`) {
			t.Errorf("expected schema in system prompt, got %q", req.System)
		}
		textReply(w, "```json\n{\"score\": 70}\n```")
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model")
	c.SetTestTransport(server.URL)

	schema := llm.Object(nil, map[string]*llm.Schema{"score": llm.Number("overall")}, "score")
	got, err := c.GenerateStructured(context.Background(), "评估", schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"score": 70}` {
		t.Errorf("expected fences stripped, got %q", got)
	}
}

func TestGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		textReply(w, "建议")
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model")
	c.SetTestTransport(server.URL)

	got, err := c.GenerateText(context.Background(), "prompt", llm.TextOptions{})
	if err != nil || got != "建议" {
		t.Errorf("expected 建议, got %q (%v)", got, err)
	}
}

func TestSynthesizeSpeech_Unsupported(t *testing.T) {
	c := NewClient("k", "m")
	if _, err := c.SynthesizeSpeech(context.Background(), "hi", "Kore"); !errors.Is(err, llm.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                   `{"a":1}`,
		"```\n{\"a\":1}\n```":       `{"a":1}`,
		"```json\n{\"a\":1}\n```":   `{"a":1}`,
		"  ```json\n{\"a\":1}```  ": `{"a":1}`,
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

var _ llm.Client = (*Client)(nil)
