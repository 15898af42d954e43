// Package llm defines the model capabilities the rehearsal core depends on.
// Providers live in their own packages and are injected at startup.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported is returned by providers that lack a capability.
	ErrUnsupported = errors.New("llm: capability not supported by provider")
	// ErrEmptyResponse is returned when the provider answers with no content.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Speech output format shared by all providers.
const (
	SpeechSampleRate = 24000
	SpeechChannels   = 1
)

type TextOptions struct {
	System      string
	Temperature *float32
}

type ChatOptions struct {
	System      string
	Temperature float32
}

// Client is the full set of model calls used by the service.
type Client interface {
	// GenerateText is a single-shot completion.
	GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, error)
	// GenerateStructured asks for JSON conforming to schema and returns the raw JSON text.
	GenerateStructured(ctx context.Context, prompt string, schema *Schema) (string, error)
	// SynthesizeSpeech returns raw mono 24 kHz signed 16-bit little-endian PCM.
	SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error)
	// NewChat opens a multi-turn context whose history is owned by the provider.
	NewChat(ctx context.Context, opts ChatOptions) (Chat, error)
}

// Chat is a stateful multi-turn conversation. A failed Send leaves the
// history unchanged.
type Chat interface {
	Send(ctx context.Context, text string) (string, error)
}
