// Package conversation runs one rehearsal: the chat with the simulated
// employee, its transcript and the on-demand coaching annotations.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rehearse/internal/llm"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/prompt"
	"github.com/MikeSquared-Agency/rehearse/internal/protocol"
)

// DefaultTemperature keeps the persona emotionally reactive.
const DefaultTemperature float32 = 0.9

var (
	ErrBusy              = errors.New("a message is already being sent")
	ErrClosed            = errors.New("session closed")
	ErrEmptyInput        = errors.New("message text is empty")
	ErrMessageNotFound   = errors.New("message not found")
	ErrNotAnnotatable    = errors.New("system messages cannot be annotated")
	ErrUnknownAnnotation = errors.New("unknown annotation")
)

// AudioSink receives synthesized speech for a model reply.
type AudioSink interface {
	PutAudio(messageID string, pcm []byte)
}

type Options struct {
	// Temperature for the role-play chat. Zero means DefaultTemperature.
	Temperature float32
	// Speech enables synthesis of model replies into Sink.
	Speech bool
	Sink   AudioSink
	Logger *slog.Logger
}

type annotationKey struct {
	messageID string
	kind      Annotation
}

type Session struct {
	ID        string
	StartedAt time.Time

	persona persona.Persona
	client  llm.Client
	chat    llm.Chat
	opts    Options
	logger  *slog.Logger

	// base outlives individual requests so speech can finish after Send returns.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	messages []Message
	inFlight map[annotationKey]bool
	sending  bool
	closed   bool
}

// Start compiles the persona prompt, opens the chat and seeds the transcript
// with the scenario message.
func Start(ctx context.Context, client llm.Client, p persona.Persona, opts Options) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	chat, err := client.NewChat(ctx, llm.ChatOptions{
		System:      prompt.Compile(p),
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("open chat: %w", err)
	}

	base, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.New().String(),
		StartedAt: now,
		persona:   p,
		client:    client,
		chat:      chat,
		opts:      opts,
		base:      base,
		cancel:    cancel,
		inFlight:  make(map[annotationKey]bool),
		messages: []Message{{
			ID:        uuid.New().String(),
			Role:      RoleSystem,
			Text:      openingText(p),
			Timestamp: now,
		}},
	}
	s.logger = opts.Logger.With("session_id", s.ID)
	s.logger.Info("session started", "persona", p.Name)
	return s, nil
}

func (s *Session) Persona() persona.Persona {
	return s.persona
}

// Send appends the user turn and asks the model for a reply. On failure the
// user turn stays in the transcript and the error is returned so the caller
// can retry.
func (s *Session) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Message{}, ErrClosed
	}
	if s.sending {
		s.mu.Unlock()
		return Message{}, ErrBusy
	}
	s.sending = true
	s.messages = append(s.messages, Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	s.mu.Unlock()

	raw, err := s.chat.Send(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false

	if s.closed {
		return Message{}, ErrClosed
	}
	if err != nil {
		s.logger.Error("chat send failed", "error", err)
		return Message{}, fmt.Errorf("send: %w", err)
	}

	turn := protocol.Parse(raw)
	scores := turn.Scores
	msg := Message{
		ID:         uuid.New().String(),
		Role:       RoleModel,
		Text:       turn.Text,
		Timestamp:  time.Now().UTC(),
		Scores:     &scores,
		Evaluation: turn.Evaluation,
	}
	s.messages = append(s.messages, msg)

	s.logger.Debug("model replied",
		"evaluation", turn.Evaluation,
		"openness", scores.Openness,
		"clarity", scores.Clarity,
		"acceptance", scores.Acceptance,
		"commitment", scores.Commitment,
	)

	if s.opts.Speech && s.opts.Sink != nil && turn.Text != "" {
		s.wg.Add(1)
		go s.synthesize(msg.ID, turn.Text)
	}

	return msg.clone(), nil
}

func (s *Session) synthesize(messageID, text string) {
	defer s.wg.Done()

	pcm, err := s.client.SynthesizeSpeech(s.base, text, s.persona.Voice())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("speech synthesis failed", "message_id", messageID, "error", err)
		}
		return
	}
	if s.base.Err() != nil {
		return
	}
	s.opts.Sink.PutAudio(messageID, pcm)
}

// RequestCoachHint fills the suggestion for a message. It is a no-op when the
// suggestion already exists or is being generated.
func (s *Session) RequestCoachHint(ctx context.Context, messageID string) (Message, error) {
	return s.annotate(ctx, messageID, AnnotationSuggestion)
}

// RequestTurnAnalysis fills the analysis for a message with the same
// deduplication as RequestCoachHint.
func (s *Session) RequestTurnAnalysis(ctx context.Context, messageID string) (Message, error) {
	return s.annotate(ctx, messageID, AnnotationAnalysis)
}

func (s *Session) annotate(ctx context.Context, messageID string, kind Annotation) (Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Message{}, ErrClosed
	}
	idx := s.indexOf(messageID)
	if idx < 0 {
		s.mu.Unlock()
		return Message{}, ErrMessageNotFound
	}
	if s.messages[idx].Role == RoleSystem {
		s.mu.Unlock()
		return Message{}, ErrNotAnnotatable
	}
	key := annotationKey{messageID: messageID, kind: kind}
	if s.inFlight[key] || annotationOf(s.messages[idx], kind) != "" {
		msg := s.viewLocked(idx)
		s.mu.Unlock()
		return msg, nil
	}
	s.inFlight[key] = true
	prefix := make([]Message, idx+1)
	copy(prefix, s.messages[:idx+1])
	s.mu.Unlock()

	var p string
	if kind == AnnotationSuggestion {
		p = buildCoachPrompt(s.persona, prefix)
	} else {
		p = buildAnalysisPrompt(s.persona, prefix)
	}

	out, err := s.client.GenerateText(ctx, p, llm.TextOptions{})
	out = strings.TrimSpace(out)
	if err != nil {
		s.logger.Warn("annotation failed", "kind", kind, "message_id", messageID, "error", err)
		out = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
	if s.closed {
		return Message{}, ErrClosed
	}
	if out != "" {
		setAnnotation(&s.messages[idx], kind, out)
	}
	return s.viewLocked(idx), nil
}

// ClearAnnotation removes an annotation's text. Nothing else changes.
func (s *Session) ClearAnnotation(messageID string, kind Annotation) error {
	if !kind.valid() {
		return ErrUnknownAnnotation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(messageID)
	if idx < 0 {
		return ErrMessageNotFound
	}
	setAnnotation(&s.messages[idx], kind, "")
	return nil
}

// Snapshot returns a copy of the transcript.
func (s *Session) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i := range s.messages {
		out[i] = s.viewLocked(i)
	}
	return out
}

// Close stops consuming in-flight results and waits for speech workers.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("session closed")
}

func (s *Session) indexOf(id string) int {
	for i, m := range s.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) viewLocked(i int) Message {
	m := s.messages[i].clone()
	m.IsAnalyzing = s.inFlight[annotationKey{m.ID, AnnotationSuggestion}] ||
		s.inFlight[annotationKey{m.ID, AnnotationAnalysis}]
	return m
}

func annotationOf(m Message, kind Annotation) string {
	if kind == AnnotationSuggestion {
		return m.Suggestion
	}
	return m.Analysis
}

func setAnnotation(m *Message, kind Annotation, text string) {
	if kind == AnnotationSuggestion {
		m.Suggestion = text
	} else {
		m.Analysis = text
	}
}
