// Package bus publishes rehearsal lifecycle events on NATS.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectSessionStarted    = "rehearse.session.started"
	SubjectSessionCompleted  = "rehearse.session.completed"
	SubjectFeedbackSubmitted = "rehearse.feedback.submitted"
)

// SessionStarted is emitted when a rehearsal opens.
type SessionStarted struct {
	SessionID   string    `json:"session_id"`
	PersonaID   string    `json:"persona_id,omitempty"`
	PersonaName string    `json:"persona_name"`
	Rating      string    `json:"rating"`
	StartedAt   time.Time `json:"started_at"`
}

// SessionCompleted is emitted once the report for a rehearsal is compiled.
type SessionCompleted struct {
	SessionID   string    `json:"session_id"`
	PersonaName string    `json:"persona_name"`
	Turns       int       `json:"turns"`
	Score       float64   `json:"score"`
	Level       string    `json:"level"`
	Grade       string    `json:"grade"`
	Persisted   bool      `json:"persisted"`
	Fallback    bool      `json:"fallback"`
	CompletedAt time.Time `json:"completed_at"`
}

// FeedbackSubmitted is emitted when a user rates a saved session.
type FeedbackSubmitted struct {
	SessionID    string `json:"session_id"`
	NPS          *int   `json:"nps,omitempty"`
	OverallScore *int   `json:"overall_score,omitempty"`
	RealismScore *int   `json:"realism_score,omitempty"`
	UtilityScore *int   `json:"utility_score,omitempty"`
	HasComment   bool   `json:"has_comment"`
}

// Publisher is the narrow view of the bus used by the rehearsal manager.
type Publisher interface {
	Publish(subject string, data any) error
}

// Nop drops every event. Used when NATS_URL is unset.
type Nop struct{}

func (Nop) Publish(string, any) error { return nil }

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("rehearse"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Flush waits until the server has processed everything published so far.
func (c *Client) Flush(ctx context.Context) error {
	return c.conn.FlushWithContext(ctx)
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Drain()
}
