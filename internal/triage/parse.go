package triage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloo-solutions/supportiq/internal/domain"
)

var errNoJSONObject = errors.New("no JSON object found in classifier output")

// rawSignals is the classifier's JSON contract. Unknown fields are ignored.
type rawSignals struct {
	Category   string     `json:"category"`
	Priority   string     `json:"priority"`
	Sentiment  string     `json:"sentiment"`
	Risk       string     `json:"risk"`
	Confidence confidence `json:"confidence"`
	Summary    string     `json:"summary"`
	AISummary  string     `json:"ai_summary"`
}

// confidence accepts a JSON number or a string holding one
type confidence struct {
	value float64
	set   bool
}

func (c *confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("confidence is not numeric: %q", s)
		}
		c.value, c.set = v, true
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("confidence is not numeric: %s", data)
	}
	c.value, c.set = v, true
	return nil
}

// Parse turns raw classifier output into validated signals. It never
// substitutes defaults; any problem is returned as an error.
func Parse(output string) (domain.ClassificationSignals, error) {
	obj, err := extractJSON(output)
	if err != nil {
		return domain.ClassificationSignals{}, err
	}

	var raw rawSignals
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return domain.ClassificationSignals{}, fmt.Errorf("failed to parse classification JSON: %w", err)
	}

	if !raw.Confidence.set {
		return domain.ClassificationSignals{}, fmt.Errorf("confidence is required")
	}

	summary := raw.Summary
	if strings.TrimSpace(summary) == "" {
		summary = raw.AISummary
	}

	signals := domain.ClassificationSignals{
		Category:   domain.Category(normalize(raw.Category)),
		Priority:   domain.Priority(normalize(raw.Priority)),
		Sentiment:  domain.Sentiment(normalize(raw.Sentiment)),
		Risk:       domain.RiskLevel(normalize(raw.Risk)),
		Confidence: raw.Confidence.value,
		Summary:    strings.TrimSpace(summary),
	}

	if err := domain.ValidateSignals(signals); err != nil {
		return domain.ClassificationSignals{}, err
	}
	return signals, nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// extractJSON returns the first balanced JSON object in text, skipping
// markdown fences and any prose around it. Braces inside strings are ignored.
func extractJSON(text string) (string, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", errNoJSONObject
	}

	depth := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unterminated JSON object in classifier output")
}
