package coach

import (
	"fmt"
	"strings"

	"github.com/echomind/coach-gateway/internal/session"
)

const systemPrompt = "You are an expert interview coach. Answer with a single JSON object and nothing else."

const promptTemplate = `You are an expert interview coach. Analyze this interview practice session.

TRANSCRIPT:
%s

SESSION STATISTICS:
- Duration: %d seconds
- Total words: %d
- Filler count: %d
- Average pace: %.1f WPM
- Filler details: %s

Provide a comprehensive analysis in the following JSON format:

{
  "content_quality_score": <0-10>,
  "content_feedback": "<2-3 sentences about answer quality, depth, and relevance>",
  "communication_score": <0-10>,
  "communication_feedback": "<2-3 sentences about clarity, structure, and delivery>",
  "key_strengths": ["<strength 1>", "<strength 2>", "<strength 3>"],
  "improvement_areas": ["<improvement 1>", "<improvement 2>", "<improvement 3>"],
  "specific_suggestions": ["<actionable tip 1>", "<actionable tip 2>", "<actionable tip 3>"],
  "missing_elements": ["<what could have been added>"],
  "overall_impression": "<1-2 sentences summary>"
}

Focus on:
1. Answer quality (not just delivery)
2. Content depth and specificity
3. Structure and organization
4. Missing key elements (metrics, examples, results)
5. Professional communication style

Be constructive and specific. Provide actionable feedback.`

// BuildPrompt renders the critique request for summary.
func BuildPrompt(summary session.Summary) string {
	return fmt.Sprintf(promptTemplate,
		summary.FullTranscript,
		summary.DurationSeconds,
		summary.TotalWords,
		summary.FillerCount,
		summary.AvgWPM,
		formatFillers(summary.FillerDetails),
	)
}

func formatFillers(b session.FillerBreakdown) string {
	if len(b) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(b))
	for _, fc := range b {
		parts = append(parts, fmt.Sprintf("%q: %d", fc.Filler, fc.Count))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
