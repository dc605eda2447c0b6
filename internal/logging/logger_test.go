package logging

import "testing"

func TestOrNopHandlesNilInterface(t *testing.T) {
	var logger Logger
	safe := OrNop(logger)
	if IsNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("hello %s", "world") // must not panic
}

func TestOrNopHandlesTypedNilPointer(t *testing.T) {
	var typedNil *slogLogger
	var logger Logger = typedNil
	if !IsNil(logger) {
		t.Fatalf("expected typed nil pointer to be detected as nil")
	}
	safe := OrNop(logger)
	safe.Warn("still safe")
}

func TestNewComponentLoggerDoesNotPanic(t *testing.T) {
	l := NewComponentLogger("test")
	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Error("error %d", 4)
}
