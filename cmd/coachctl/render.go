package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/echomind/coach-gateway/internal/analysis"
	"github.com/echomind/coach-gateway/internal/coach"
	"github.com/echomind/coach-gateway/internal/session"
	"github.com/echomind/coach-gateway/internal/store"
)

var (
	red      = lipgloss.Color("#f38ba8")
	peach    = lipgloss.Color("#fab387")
	green    = lipgloss.Color("#a6e3a1")
	sapphire = lipgloss.Color("#74c7ec")
	subtext  = lipgloss.Color("#a6adc8")
	surface  = lipgloss.Color("#45475a")

	titleStyle = lipgloss.NewStyle().Foreground(sapphire).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(subtext).Width(12)
	mutedStyle = lipgloss.NewStyle().Foreground(subtext)
	errorStyle = lipgloss.NewStyle().Foreground(red).Bold(true)
	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(surface).
		Padding(0, 1)

	categoryStyles = map[analysis.Category]lipgloss.Style{
		analysis.CategoryWarning: lipgloss.NewStyle().Foreground(red).Bold(true),
		analysis.CategoryInfo:    lipgloss.NewStyle().Foreground(peach).Bold(true),
		analysis.CategorySuccess: lipgloss.NewStyle().Foreground(green).Bold(true),
	}
)

func renderFeedback(fb analysis.Feedback) string {
	style, ok := categoryStyles[fb.Category]
	if !ok {
		style = mutedStyle
	}
	return fmt.Sprintf("%s %s", style.Render(fmt.Sprintf("[%-7s]", fb.Category)), fb.Message)
}

func renderSummary(s session.Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Session summary"))
	b.WriteString("\n")
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label), value)
	}
	row("duration", fmt.Sprintf("%ds", s.DurationSeconds))
	row("words", fmt.Sprintf("%d", s.TotalWords))
	row("sentences", fmt.Sprintf("%d", s.TotalSentences))
	row("pace", fmt.Sprintf("%.1f wpm", s.AvgWPM))
	row("fillers", fmt.Sprintf("%d %s", s.FillerCount, renderFillers(s.FillerDetails)))
	row("confidence", fmt.Sprintf("%d/100", s.ConfidenceScore))
	row("strengths", strings.Join(s.Strengths, "; "))
	row("improve", strings.Join(s.Improvements, "; "))
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderFillers(b session.FillerBreakdown) string {
	if len(b) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b))
	for _, fc := range b {
		parts = append(parts, fmt.Sprintf("%s×%d", fc.Filler, fc.Count))
	}
	return mutedStyle.Render("(" + strings.Join(parts, ", ") + ")")
}

func renderCritique(c *coach.Critique) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Coaching report"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %.1f/10  %s\n", labelStyle.Render("content"), c.ContentQualityScore, c.ContentFeedback)
	fmt.Fprintf(&b, "%s %.1f/10  %s\n", labelStyle.Render("delivery"), c.CommunicationScore, c.CommunicationFeedback)
	list := func(label string, items []string) {
		for i, item := range items {
			if i == 0 {
				fmt.Fprintf(&b, "%s • %s\n", labelStyle.Render(label), item)
				continue
			}
			fmt.Fprintf(&b, "%s • %s\n", labelStyle.Render(""), item)
		}
	}
	list("strengths", c.KeyStrengths)
	list("improve", c.ImprovementAreas)
	list("try", c.SpecificSuggestions)
	list("missing", c.MissingElements)
	b.WriteString(c.OverallImpression)
	return panelStyle.Render(b.String())
}

func renderSessionTable(records []store.Record) string {
	header := lipgloss.NewStyle().Foreground(sapphire).Bold(true)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", header.Render(fmt.Sprintf("%-36s  %-19s  %-9s  %8s  %6s  %10s", "SESSION", "STARTED", "STATUS", "DURATION", "WPM", "CONFIDENCE")))
	for _, r := range records {
		duration, wpm, confidence := "-", "-", "-"
		if r.Summary != nil {
			duration = fmt.Sprintf("%ds", r.Summary.DurationSeconds)
			wpm = fmt.Sprintf("%.1f", r.Summary.AvgWPM)
			confidence = fmt.Sprintf("%d", r.Summary.ConfidenceScore)
		}
		fmt.Fprintf(&b, "%-36s  %-19s  %-9s  %8s  %6s  %10s\n",
			r.SessionID, r.StartTime.Local().Format("2006-01-02 15:04:05"), r.Status, duration, wpm, confidence)
	}
	return strings.TrimRight(b.String(), "\n")
}

func decodeCritique(raw json.RawMessage) (*coach.Critique, error) {
	var c coach.Critique
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
