// Package gemini implements llm.Client on the Google GenAI SDK.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/MikeSquared-Agency/rehearse/internal/llm"
)

const (
	DefaultChatModel   = "gemini-2.5-flash"
	DefaultReportModel = "gemini-2.5-flash"
	DefaultTTSModel    = "gemini-2.5-flash-preview-tts"
	DefaultVoice       = "Kore"
)

type Config struct {
	APIKey      string
	ChatModel   string
	ReportModel string
	TTSModel    string
	// BaseURL overrides the API endpoint. Used by tests.
	BaseURL string
}

type Client struct {
	genai       *genai.Client
	chatModel   string
	reportModel string
	ttsModel    string
	logger      *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	c := &Client{
		genai:       gc,
		chatModel:   orDefault(cfg.ChatModel, DefaultChatModel),
		reportModel: orDefault(cfg.ReportModel, DefaultReportModel),
		ttsModel:    orDefault(cfg.TTSModel, DefaultTTSModel),
		logger:      logger,
	}
	return c, nil
}

func (c *Client) GenerateText(ctx context.Context, prompt string, opts llm.TextOptions) (string, error) {
	config := &genai.GenerateContentConfig{Temperature: opts.Temperature}
	if opts.System != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}

	res, err := c.genai.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}
	return firstText(res)
}

func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema *llm.Schema) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(schema),
	}

	res, err := c.genai.Models.GenerateContent(ctx, c.reportModel, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate structured: %w", err)
	}
	return firstText(res)
}

func (c *Client) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = DefaultVoice
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"audio"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	res, err := c.genai.Models.GenerateContent(ctx, c.ttsModel,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}}, config)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}

	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil, llm.ErrEmptyResponse
	}
	for _, p := range res.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData.Data, nil
		}
	}
	return nil, llm.ErrEmptyResponse
}

func (c *Client) NewChat(ctx context.Context, opts llm.ChatOptions) (llm.Chat, error) {
	temp := opts.Temperature
	config := &genai.GenerateContentConfig{Temperature: &temp}
	if opts.System != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}

	chat, err := c.genai.Chats.Create(ctx, c.chatModel, config, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &chatSession{chat: chat, logger: c.logger}, nil
}

type chatSession struct {
	chat   *genai.Chat
	logger *slog.Logger
}

// Send relies on genai.Chat only recording history after a successful call.
func (s *chatSession) Send(ctx context.Context, text string) (string, error) {
	res, err := s.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", fmt.Errorf("chat send: %w", err)
	}
	reply, err := firstText(res)
	if err != nil {
		s.logger.Warn("chat reply had no text", "error", err)
		return "", err
	}
	return reply, nil
}

// firstText concatenates the text parts of the first candidate.
func firstText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", llm.ErrEmptyResponse
	}
	var sb strings.Builder
	for _, p := range res.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", llm.ErrEmptyResponse
	}
	return sb.String(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
