// Package llmtest provides a scriptable llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/MikeSquared-Agency/rehearse/internal/llm"
)

// Call records one invocation on the fake.
type Call struct {
	Op     string
	Prompt string
	Schema *llm.Schema
	Voice  string
}

// Fake answers each capability from a function. Unset functions return
// llm.ErrUnsupported.
type Fake struct {
	TextFunc       func(ctx context.Context, prompt string) (string, error)
	StructuredFunc func(ctx context.Context, prompt string, schema *llm.Schema) (string, error)
	SpeechFunc     func(ctx context.Context, text, voice string) ([]byte, error)
	ChatFunc       func(ctx context.Context, history []string, text string) (string, error)

	mu          sync.Mutex
	calls       []Call
	chatOptions []llm.ChatOptions
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

// Calls returns a copy of every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CountOp counts recorded calls of one operation.
func (f *Fake) CountOp(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ChatOptions returns the options passed to every NewChat call.
func (f *Fake) ChatOptions() []llm.ChatOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ChatOptions, len(f.chatOptions))
	copy(out, f.chatOptions)
	return out
}

func (f *Fake) GenerateText(ctx context.Context, prompt string, _ llm.TextOptions) (string, error) {
	f.record(Call{Op: "text", Prompt: prompt})
	if f.TextFunc == nil {
		return "", llm.ErrUnsupported
	}
	return f.TextFunc(ctx, prompt)
}

func (f *Fake) GenerateStructured(ctx context.Context, prompt string, schema *llm.Schema) (string, error) {
	f.record(Call{Op: "structured", Prompt: prompt, Schema: schema})
	if f.StructuredFunc == nil {
		return "", llm.ErrUnsupported
	}
	return f.StructuredFunc(ctx, prompt, schema)
}

func (f *Fake) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	f.record(Call{Op: "speech", Prompt: text, Voice: voice})
	if f.SpeechFunc == nil {
		return nil, llm.ErrUnsupported
	}
	return f.SpeechFunc(ctx, text, voice)
}

func (f *Fake) NewChat(_ context.Context, opts llm.ChatOptions) (llm.Chat, error) {
	f.mu.Lock()
	f.chatOptions = append(f.chatOptions, opts)
	f.mu.Unlock()
	return &chat{fake: f}, nil
}

type chat struct {
	fake    *Fake
	mu      sync.Mutex
	history []string
}

func (c *chat) Send(ctx context.Context, text string) (string, error) {
	c.fake.record(Call{Op: "chat", Prompt: text})
	if c.fake.ChatFunc == nil {
		return "", llm.ErrUnsupported
	}

	c.mu.Lock()
	history := append([]string(nil), c.history...)
	c.mu.Unlock()

	reply, err := c.fake.ChatFunc(ctx, history, text)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.history = append(c.history, text, reply)
	c.mu.Unlock()
	return reply, nil
}
