// Package slack posts report digests of finished rehearsals to a channel.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/rehearse/internal/report"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostReportDigest posts the headline of a compiled report and threads the
// five-step breakdown under it. Returns the parent message timestamp.
func (p *Poster) PostReportDigest(ctx context.Context, rec report.Record) (string, error) {
	text := formatDigest(rec)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("Session `%s`", rec.ID),
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted report digest to slack", "ts", ts, "session_id", rec.ID)

	if steps := formatSteps(rec.Report.FiveSteps); steps != "" {
		if err := p.PostThread(ctx, ts, steps); err != nil {
			p.logger.Warn("failed to post step breakdown", "ts", ts, "error", err)
		}
	}
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatDigest(rec report.Record) string {
	rep := rec.Report
	grade := rep.Grade()
	var sb strings.Builder

	fmt.Fprintf(&sb, "*绩效面谈演练:* %s (%s, 本次绩效 %s)\n", rec.Persona.Name, rec.Persona.JobTitle, rec.Persona.ThisPerformance)
	fmt.Fprintf(&sb, "*得分:* %.0f  *评级:* %s %s  *水平:* %s\n", rep.Score, grade.Letter, grade.Label, rep.Level)
	fmt.Fprintf(&sb, "*SBI:* %.1f | *GROW:* %.1f | *倾听:* %.1f\n", rep.SBI.Score, rep.GROW.Score, rep.Listening.Score)
	if rep.RotationFallacyDetected {
		sb.WriteString(":warning: 检测到轮流坐庄谬误\n")
	}
	if rep.Summary != "" {
		fmt.Fprintf(&sb, "\n%s\n", rep.Summary)
	}
	writeList(&sb, "亮点", rep.Strengths)
	writeList(&sb, "待改进", rep.Challenges)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n*%s:*\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "• %s\n", it)
	}
}

func formatSteps(steps []report.FiveStepEvaluation) string {
	if len(steps) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, s := range steps {
		mark := ":white_check_mark:"
		if !s.Executed {
			mark = ":x:"
		}
		fmt.Fprintf(&sb, "%d. %s %s", i+1, mark, s.StepName)
		if s.Analysis != "" {
			fmt.Fprintf(&sb, ": %s", s.Analysis)
		}
		sb.WriteString("\n")
		if s.RecommendedScript != "" {
			fmt.Fprintf(&sb, "   > %s\n", s.RecommendedScript)
		}
	}
	return sb.String()
}
