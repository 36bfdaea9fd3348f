// FILE: src/internal/core/entry.go
package core

import (
	"fmt"
	"time"
)

// LogRecord is a single structured log line as it travels from a client to
// the collector and into the file sink. Immutable once constructed.
type LogRecord struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Caller    string `json:"caller"`
}

// Envelope wraps one LogRecord with the name of the emitting logical process.
// One envelope carries exactly one record; frames are newline-delimited JSON.
type Envelope struct {
	Type    string    `json:"type"`
	Service string    `json:"service"`
	Entry   LogRecord `json:"entry"`
}

// Ack is the collector's reply frame for one received envelope.
type Ack struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// NewRecord builds a record stamped with the current wall-clock time.
func NewRecord(level, message, caller string) LogRecord {
	return LogRecord{
		Level:     level,
		Message:   message,
		Timestamp: time.Now().Format(TimestampLayout),
		Caller:    caller,
	}
}

// NewEnvelope wraps a record for the wire.
func NewEnvelope(service string, entry LogRecord) Envelope {
	return Envelope{
		Type:    EnvelopeType,
		Service: service,
		Entry:   entry,
	}
}

// FormatLine renders the record in the sink line format shared by the
// collector's files and the client's console mirror. No trailing newline.
func (r LogRecord) FormatLine(service string) string {
	return fmt.Sprintf("[%s, %s, %s, %s] %s", r.Timestamp, service, r.Level, r.Caller, r.Message)
}
