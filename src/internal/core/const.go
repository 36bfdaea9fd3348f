// FILE: src/internal/core/const.go
package core

import "time"

const (
	// EnvelopeType is the only frame type accepted by the collector.
	EnvelopeType = "log_entry"

	// DefaultCollectorAddr carries application log traffic; test scenarios
	// point clients at ephemeral ports instead.
	DefaultCollectorAddr = "127.0.0.1:9776"

	// TimestampLayout is the second-precision record timestamp.
	TimestampLayout = "2006-01-02 15:04:05"

	// RunStampLayout names the collector's per-run file set.
	RunStampLayout = "2006_01_02_15_04_05"

	// UnknownCaller is used when call-site resolution fails.
	UnknownCaller = "unknown:0"
)

// Ack status values and rejection reasons.
const (
	StatusOK    = "ok"
	StatusError = "error"

	ReasonInvalidJSON    = "invalid_json"
	ReasonInvalidPayload = "invalid_payload"
	ReasonWriteFailed    = "write_failed"
)

// Client-side buffering and reconnect defaults.
const (
	DefaultMaxBufferSize     = 5000
	DefaultReconnectDelay    = time.Second
	DefaultMaxReconnectDelay = 30 * time.Second
)
