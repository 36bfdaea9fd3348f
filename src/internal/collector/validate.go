// FILE: src/internal/collector/validate.go
package collector

import (
	"github.com/timcash/code-cad/src/internal/core"

	"github.com/valyala/fastjson"
)

// parseEnvelope parses and validates one wire frame. It never panics or
// returns a Go error; the second result is the rejection reason ("" on
// success) so the caller can build the ack directly. Validation is a pure
// predicate over the parsed value.
func parseEnvelope(p *fastjson.Parser, line []byte) (core.Envelope, string) {
	v, err := p.ParseBytes(line)
	if err != nil {
		return core.Envelope{}, core.ReasonInvalidJSON
	}
	if v.Type() != fastjson.TypeObject {
		return core.Envelope{}, core.ReasonInvalidPayload
	}

	typ, ok := stringField(v, "type")
	if !ok || typ != core.EnvelopeType {
		return core.Envelope{}, core.ReasonInvalidPayload
	}
	service, ok := stringField(v, "service")
	if !ok || service == "" {
		return core.Envelope{}, core.ReasonInvalidPayload
	}

	entry := v.Get("entry")
	if entry == nil || entry.Type() != fastjson.TypeObject {
		return core.Envelope{}, core.ReasonInvalidPayload
	}
	level, ok := stringField(entry, "level")
	if !ok {
		return core.Envelope{}, core.ReasonInvalidPayload
	}
	message, ok := stringField(entry, "message")
	if !ok {
		return core.Envelope{}, core.ReasonInvalidPayload
	}
	timestamp, ok := stringField(entry, "timestamp")
	if !ok {
		return core.Envelope{}, core.ReasonInvalidPayload
	}
	caller, ok := stringField(entry, "caller")
	if !ok {
		return core.Envelope{}, core.ReasonInvalidPayload
	}

	return core.Envelope{
		Type:    typ,
		Service: service,
		Entry: core.LogRecord{
			Level:     level,
			Message:   message,
			Timestamp: timestamp,
			Caller:    caller,
		},
	}, ""
}

// stringField extracts a field that must exist and be a JSON string.
func stringField(v *fastjson.Value, key string) (string, bool) {
	field := v.Get(key)
	if field == nil || field.Type() != fastjson.TypeString {
		return "", false
	}
	b, err := field.StringBytes()
	if err != nil {
		return "", false
	}
	return string(b), true
}
