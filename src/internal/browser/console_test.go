// FILE: src/internal/browser/console_test.go
package browser

import (
	"testing"

	"github.com/timcash/code-cad/src/internal/core"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/ysmood/gson"
)

func TestConsoleLevel(t *testing.T) {
	testCases := []struct {
		name     string
		input    proto.RuntimeConsoleAPICalledType
		expected string
	}{
		{"Log", proto.RuntimeConsoleAPICalledTypeLog, core.LevelInfo},
		{"Info", proto.RuntimeConsoleAPICalledTypeInfo, core.LevelInfo},
		{"Debug", proto.RuntimeConsoleAPICalledTypeDebug, core.LevelDebug},
		{"Warning", proto.RuntimeConsoleAPICalledTypeWarning, core.LevelWarn},
		{"Error", proto.RuntimeConsoleAPICalledTypeError, core.LevelError},
		{"Assert", proto.RuntimeConsoleAPICalledTypeAssert, core.LevelError},
		{"Table", proto.RuntimeConsoleAPICalledTypeTable, core.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, consoleLevel(tc.input))
		})
	}
}

func TestStringifyRemoteObject(t *testing.T) {
	testCases := []struct {
		name     string
		obj      *proto.RuntimeRemoteObject
		expected string
	}{
		{"Nil", nil, ""},
		{
			"String",
			&proto.RuntimeRemoteObject{
				Type:  proto.RuntimeRemoteObjectTypeString,
				Value: gson.New("hello world"),
			},
			"hello world",
		},
		{
			"Number",
			&proto.RuntimeRemoteObject{
				Type:  proto.RuntimeRemoteObjectTypeNumber,
				Value: gson.New(42),
			},
			"42",
		},
		{
			"Boolean",
			&proto.RuntimeRemoteObject{
				Type:  proto.RuntimeRemoteObjectTypeBoolean,
				Value: gson.New(true),
			},
			"true",
		},
		{
			"ErrorHandleUsesDescription",
			&proto.RuntimeRemoteObject{
				Type:        proto.RuntimeRemoteObjectTypeObject,
				Subtype:     proto.RuntimeRemoteObjectSubtypeError,
				Description: "TypeError: mesh is undefined\n    at render (app.js:12:3)",
			},
			"TypeError: mesh is undefined\n    at render (app.js:12:3)",
		},
		{
			"ObjectHandleUsesPreview",
			&proto.RuntimeRemoteObject{
				Type:    proto.RuntimeRemoteObjectTypeObject,
				Preview: &proto.RuntimeObjectPreview{Description: "Object {width: 10}"},
			},
			"Object {width: 10}",
		},
		{
			"HandleFallsBackToDescription",
			&proto.RuntimeRemoteObject{
				Type:        proto.RuntimeRemoteObjectTypeFunction,
				Description: "function render() {}",
			},
			"function render() {}",
		},
		{
			"BareTypeLastResort",
			&proto.RuntimeRemoteObject{Type: proto.RuntimeRemoteObjectTypeUndefined},
			"undefined",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stringifyRemoteObject(tc.obj))
		})
	}
}

func TestStringifyArgs(t *testing.T) {
	args := []*proto.RuntimeRemoteObject{
		{Type: proto.RuntimeRemoteObjectTypeString, Value: gson.New("loaded")},
		{Type: proto.RuntimeRemoteObjectTypeNumber, Value: gson.New(3)},
		{Type: proto.RuntimeRemoteObjectTypeString, Value: gson.New("models")},
	}
	assert.Equal(t, "loaded 3 models", stringifyArgs(args))
	assert.Empty(t, stringifyArgs(nil))
}

func TestStringifyException(t *testing.T) {
	t.Run("NilDetails", func(t *testing.T) {
		assert.Equal(t, "uncaught exception", stringifyException(nil))
	})

	t.Run("ExceptionObject", func(t *testing.T) {
		details := &proto.RuntimeExceptionDetails{
			Text: "Uncaught",
			Exception: &proto.RuntimeRemoteObject{
				Type:        proto.RuntimeRemoteObjectTypeObject,
				Subtype:     proto.RuntimeRemoteObjectSubtypeError,
				Description: "Error: geometry worker crashed",
			},
		}
		assert.Equal(t, "Error: geometry worker crashed", stringifyException(details))
	})

	t.Run("TextFallback", func(t *testing.T) {
		details := &proto.RuntimeExceptionDetails{Text: "Uncaught SyntaxError"}
		assert.Equal(t, "Uncaught SyntaxError", stringifyException(details))
	})
}
