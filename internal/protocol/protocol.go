// Package protocol defines the JSON message types exchanged between the
// server and connected listeners over WebSocket.
package protocol

import "time"

// MessageType tags a broadcast message variant.
type MessageType string

const (
	TypeVoiceStatus   MessageType = "voice-status"
	TypeTranscription MessageType = "transcription"
	TypeProgress      MessageType = "progress"
	TypeError         MessageType = "error"
	TypeSummary       MessageType = "summary"
	TypeAssistant     MessageType = "assistant"
	TypeLog           MessageType = "log"
	TypeStatusAudio   MessageType = "status-audio"
	TypeRefreshNow    MessageType = "refresh-now"
)

// Error kinds carried on error messages in the Step field so listeners can
// distinguish failure classes.
const (
	ErrCollaborator = "collaborator-failure"
	ErrStaleSession = "stale-session"
	ErrRebuild      = "rebuild-failure"
)

// Message is the envelope broadcast to listeners. Listeners must ignore
// messages whose SessionID does not match the session they are tracking.
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
	Step      string      `json:"step,omitempty"`
	Progress  *int        `json:"progress,omitempty"`
	Summary   string      `json:"summary,omitempty"`
	Text      string      `json:"text,omitempty"`
	AudioURL  string      `json:"audioUrl,omitempty"`
}

// Command is sent from a listener to the server.
type Command struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
}

const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// New returns a Message of the given type stamped with the current server time.
func New(t MessageType, sessionID string) Message {
	return Message{Type: t, SessionID: sessionID, Timestamp: time.Now().UnixMilli()}
}

// Status returns a voice-status message carrying a step marker for the UI.
func Status(sessionID, step, text string) Message {
	m := New(TypeVoiceStatus, sessionID)
	m.Step = step
	m.Message = text
	return m
}

// ProgressMsg returns a staged progress message. pct must increase monotonically
// within one rebuild cycle.
func ProgressMsg(sessionID, step, text string, pct int) Message {
	m := New(TypeProgress, sessionID)
	m.Step = step
	m.Message = text
	m.Progress = IntPtr(pct)
	return m
}

// Error returns an error message for the session.
func Error(sessionID, text string) Message {
	m := New(TypeError, sessionID)
	m.Message = text
	return m
}

// IntPtr returns a pointer to an int value. Convenience for building messages.
func IntPtr(n int) *int { return &n }
