package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Any long run of underscores counts as a separator so that a model
	// drifting from the exact width still splits correctly.
	separatorRe  = regexp.MustCompile(`_{10,}`)
	replyPrefix  = regexp.MustCompile(`(?s)^.+?回复[：:]`)
	evalMarkerRe = regexp.MustCompile(`评价(?:\*\*)?\s*[：:]\s*(.*)`)
	scoreRes     = buildScoreRes()
)

func buildScoreRes() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(Dimensions))
	for _, d := range Dimensions {
		out[d.Key] = regexp.MustCompile(regexp.QuoteMeta(d.Label) + `.*?([+-]?(?:\d+(?:\.\d*)?|\.\d+))`)
	}
	return out
}

// Parse decodes a raw model reply. It never fails: fields that cannot be
// recovered keep their defaults (text = trimmed input, evaluation =
// DefaultEvaluation, scores = 0).
func Parse(raw string) Turn {
	t := Turn{
		Text:       strings.TrimSpace(raw),
		Evaluation: DefaultEvaluation,
	}

	parts := separatorRe.Split(raw, 3)

	reply := strings.TrimSpace(parts[0])
	t.Text = strings.TrimSpace(replyPrefix.ReplaceAllString(reply, ""))

	if len(parts) >= 2 {
		if label := parseEvaluation(parts[1]); label != "" {
			t.Evaluation = label
		}
	}

	if len(parts) >= 3 {
		t.Scores = parseScores(parts[2])
	}

	return t
}

func parseEvaluation(section string) string {
	m := evalMarkerRe.FindStringSubmatch(section)
	if m == nil {
		return ""
	}
	rest := strings.TrimSpace(m[1])

	var token string
	switch {
	case strings.HasPrefix(rest, "["):
		token = between(rest, "[", "]")
	case strings.HasPrefix(rest, "【"):
		token = between(rest, "【", "】")
	default:
		if fields := strings.Fields(rest); len(fields) > 0 {
			token = fields[0]
		}
	}

	token = strings.NewReplacer("[", "", "]", "", "【", "", "】", "", "*", "").Replace(token)
	return strings.TrimSpace(token)
}

func between(s, open, close string) string {
	s = strings.TrimPrefix(s, open)
	if i := strings.Index(s, close); i >= 0 {
		return s[:i]
	}
	return s
}

func parseScores(section string) AcceptanceState {
	var s AcceptanceState
	for _, d := range Dimensions {
		m := scoreRes[d.Key].FindStringSubmatch(section)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		s.set(d.Key, v)
	}
	return s
}
