package coach

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedAnswer is returned when the model's answer is not a critique.
var ErrMalformedAnswer = errors.New("malformed coaching answer")

// Critique is the model's structured assessment of a session.
type Critique struct {
	ContentQualityScore   float64  `json:"content_quality_score"`
	ContentFeedback       string   `json:"content_feedback"`
	CommunicationScore    float64  `json:"communication_score"`
	CommunicationFeedback string   `json:"communication_feedback"`
	KeyStrengths          []string `json:"key_strengths"`
	ImprovementAreas      []string `json:"improvement_areas"`
	SpecificSuggestions   []string `json:"specific_suggestions"`
	MissingElements       []string `json:"missing_elements"`
	OverallImpression     string   `json:"overall_impression"`
}

// ParseCritique decodes a model answer, tolerating markdown code fences
// around the JSON. Scores are clamped to [0, 10].
func ParseCritique(answer string) (*Critique, error) {
	body := StripFences(answer)
	if body == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrMalformedAnswer)
	}

	var c Critique
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}

	c.ContentQualityScore = clampScore(c.ContentQualityScore)
	c.CommunicationScore = clampScore(c.CommunicationScore)
	for _, list := range []*[]string{&c.KeyStrengths, &c.ImprovementAreas, &c.SpecificSuggestions, &c.MissingElements} {
		if *list == nil {
			*list = []string{}
		}
	}
	return &c, nil
}

// StripFences removes a leading ```json or ``` fence and any closing fence.
func StripFences(answer string) string {
	s := strings.TrimSpace(answer)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampScore(v float64) float64 {
	return min(max(v, 0), 10)
}
