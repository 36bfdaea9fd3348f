// FILE: src/internal/browser/console.go
package browser

import (
	"strings"

	"github.com/timcash/code-cad/src/internal/core"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// attachConsole wires a page's console and exception events into the log
// client. Attached at most once per target; the event loop ends when the
// page or the automation connection goes away.
func (m *SessionManager) attachConsole(page *rod.Page) {
	if m.logClient == nil {
		return
	}

	m.mu.Lock()
	if m.monitored[page.TargetID] {
		m.mu.Unlock()
		return
	}
	m.monitored[page.TargetID] = true
	m.mu.Unlock()

	wait := page.EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			m.logClient.Log(consoleLevel(ev.Type), stringifyArgs(ev.Args))
		},
		func(ev *proto.RuntimeExceptionThrown) {
			m.logClient.Log(core.LevelError, stringifyException(ev.ExceptionDetails))
		},
	)
	go wait()
}

// consoleLevel maps a console event type onto a record severity.
func consoleLevel(t proto.RuntimeConsoleAPICalledType) string {
	switch t {
	case proto.RuntimeConsoleAPICalledTypeDebug:
		return core.LevelDebug
	case proto.RuntimeConsoleAPICalledTypeWarning:
		return core.LevelWarn
	case proto.RuntimeConsoleAPICalledTypeError, proto.RuntimeConsoleAPICalledTypeAssert:
		return core.LevelError
	default:
		return core.LevelInfo
	}
}

// stringifyArgs joins console arguments into one readable message.
func stringifyArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if text := stringifyRemoteObject(arg); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// stringifyRemoteObject materializes a readable representation of one
// console argument. Plain values stringify directly; opaque handles fall
// through a best-effort chain: error description (carries name, message,
// and stack), object preview, generic description, then the bare type.
func stringifyRemoteObject(obj *proto.RuntimeRemoteObject) string {
	if obj == nil {
		return ""
	}
	if obj.Type == proto.RuntimeRemoteObjectTypeString {
		return obj.Value.Str()
	}
	if !obj.Value.Nil() {
		return obj.Value.String()
	}
	if obj.Subtype == proto.RuntimeRemoteObjectSubtypeError && obj.Description != "" {
		return obj.Description
	}
	if obj.Preview != nil && obj.Preview.Description != "" {
		return obj.Preview.Description
	}
	if obj.Description != "" {
		return obj.Description
	}
	return string(obj.Type)
}

// stringifyException renders an uncaught page exception.
func stringifyException(details *proto.RuntimeExceptionDetails) string {
	if details == nil {
		return "uncaught exception"
	}
	if details.Exception != nil {
		if text := stringifyRemoteObject(details.Exception); text != "" {
			return text
		}
	}
	return details.Text
}
