package entities

import "time"

// SessionStatus is the lifecycle state of one live interrogation session.
// The status is a single tagged value; connecting/live/mic flags observed by
// a UI are all derived from it so impossible combinations cannot exist.
type SessionStatus string

const (
	SessionIdle       SessionStatus = "idle"
	SessionConnecting SessionStatus = "connecting"
	SessionLive       SessionStatus = "live"
	SessionClosing    SessionStatus = "closing"
	SessionClosed     SessionStatus = "closed"
	SessionFailed     SessionStatus = "failed"
)

// CanConnect reports whether a new connect attempt may begin from this
// status. Closed and Failed sessions are retryable with a fresh connect.
func (s SessionStatus) CanConnect() bool {
	return s == SessionIdle || s == SessionClosed || s == SessionFailed
}

// Terminal reports whether the session has fully released its resources.
func (s SessionStatus) Terminal() bool {
	return s == SessionClosed || s == SessionFailed
}

// TranscriptRole identifies which participant produced a transcript entry.
type TranscriptRole string

const (
	TranscriptUser  TranscriptRole = "user"
	TranscriptModel TranscriptRole = "model"
)

// TranscriptEntry is one committed conversation turn.
type TranscriptEntry struct {
	Role      TranscriptRole `json:"role"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
}

// CapturedFrame is a single still image sampled from the live camera feed.
// Frames are transient: sent to the channel immediately, never retained.
type CapturedFrame struct {
	Data       []byte
	MIMEType   string
	Quality    float64
	CapturedAt time.Time
}
