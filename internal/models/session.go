package models

// SessionStatus represents the status of a parse session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusParsing  SessionStatus = "parsing"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// ParseSession represents a log parsing session.
type ParseSession struct {
	ID               string        `json:"id"`
	FileID           string        `json:"fileId"`
	FileIDs          []string      `json:"fileIds,omitempty"` // all file IDs for multi-file sessions
	Status           SessionStatus `json:"status"`
	Progress         float64       `json:"progress"` // 0-100
	SampleCount      int           `json:"sampleCount,omitempty"`
	CameraCount      int           `json:"cameraCount,omitempty"`
	SkippedLines     int           `json:"skippedLines,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	StartTime        int64         `json:"startTime,omitempty"` // Unix micros
	EndTime          int64         `json:"endTime,omitempty"`   // Unix micros
	Error            string        `json:"error,omitempty"`
}

// ParseError records a log line that failed the envelope grammar.
type ParseError struct {
	Line    int    `json:"line"`
	File    string `json:"file,omitempty"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// NewParseSession creates a new ParseSession in pending status.
func NewParseSession(id, fileID string) *ParseSession {
	return &ParseSession{
		ID:       id,
		FileID:   fileID,
		Status:   SessionStatusPending,
		Progress: 0,
	}
}
