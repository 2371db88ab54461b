// Package gateway serves the client control protocol over websockets and
// drives one coaching session per connection.
package gateway

import (
	"github.com/echomind/coach-gateway/internal/analysis"
	"github.com/echomind/coach-gateway/internal/coach"
	"github.com/echomind/coach-gateway/internal/session"
)

// Client to server control messages
const (
	MsgStartSession  = "START_SESSION"
	MsgPauseSession  = "PAUSE_SESSION"
	MsgResumeSession = "RESUME_SESSION"
	MsgEndSession    = "END_SESSION"
)

// Server to client messages
const (
	MsgSessionStarted = "SESSION_STARTED"
	MsgSessionPaused  = "SESSION_PAUSED"
	MsgSessionResumed = "SESSION_RESUMED"
	MsgSessionSummary = "SESSION_SUMMARY"
	MsgFeedback       = "FEEDBACK"
	MsgCoachingReport = "COACHING_REPORT"
	MsgCoachingFailed = "COACHING_FAILED"
)

// ClientMessage is a decoded text frame from the client
type ClientMessage struct {
	Type string `json:"type"`
}

// ServerMessage is any message pushed to the client
type ServerMessage struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id,omitempty"`
	Data      *analysis.Feedback `json:"data,omitempty"`
	Summary   *session.Summary   `json:"summary,omitempty"`
	Persisted *bool              `json:"persisted,omitempty"`
	Report    *coach.Critique    `json:"report,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func feedbackMessage(fb analysis.Feedback) ServerMessage {
	return ServerMessage{Type: MsgFeedback, Data: &fb}
}

func summaryMessage(summary session.Summary, persisted bool) ServerMessage {
	msg := ServerMessage{Type: MsgSessionSummary, Summary: &summary}
	if !persisted {
		msg.Persisted = &persisted
	}
	return msg
}
