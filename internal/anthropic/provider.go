package anthropic

import (
	"context"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/rehearse/internal/llm"
)

const (
	textMaxTokens   = 1024
	reportMaxTokens = 4096
	chatMaxTokens   = 1024
)

const structuredInstruction = `Respond with a single JSON object that conforms to this JSON Schema. Output only the JSON, no prose and no code fences.

`

func (c *Client) GenerateText(ctx context.Context, prompt string, opts llm.TextOptions) (string, error) {
	return c.complete(ctx, request{
		Model:       c.model,
		MaxTokens:   textMaxTokens,
		System:      opts.System,
		Temperature: opts.Temperature,
		Messages:    []Message{{Role: "user", Content: prompt}},
	})
}

// GenerateStructured has no native schema support here, so the schema is
// rendered into the system prompt and any code fence is stripped.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema *llm.Schema) (string, error) {
	out, err := c.complete(ctx, request{
		Model:     c.model,
		MaxTokens: reportMaxTokens,
		System:    structuredInstruction + schema.JSON(),
		Messages:  []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return stripFences(out), nil
}

func (c *Client) SynthesizeSpeech(context.Context, string, string) ([]byte, error) {
	return nil, llm.ErrUnsupported
}

func (c *Client) NewChat(_ context.Context, opts llm.ChatOptions) (llm.Chat, error) {
	return &chat{client: c, system: opts.System, temperature: opts.Temperature}, nil
}

type chat struct {
	client      *Client
	system      string
	temperature float32

	mu      sync.Mutex
	history []Message
}

func (s *chat) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	msgs := make([]Message, len(s.history), len(s.history)+1)
	copy(msgs, s.history)
	s.mu.Unlock()
	msgs = append(msgs, Message{Role: "user", Content: text})

	temp := s.temperature
	reply, err := s.client.complete(ctx, request{
		Model:       s.client.model,
		MaxTokens:   chatMaxTokens,
		System:      s.system,
		Temperature: &temp,
		Messages:    msgs,
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.history = append(s.history, Message{Role: "user", Content: text}, Message{Role: "assistant", Content: reply})
	s.mu.Unlock()
	return reply, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
