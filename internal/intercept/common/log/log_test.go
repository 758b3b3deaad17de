package log

import (
	"testing"
)

type testLogger struct {
	entries []string
}

func (l *testLogger) Info(_ map[string]any, msg string)  { l.entries = append(l.entries, "INFO:"+msg) }
func (l *testLogger) Error(_ map[string]any, msg string) { l.entries = append(l.entries, "ERROR:"+msg) }
func (l *testLogger) Debug(_ map[string]any, msg string) { l.entries = append(l.entries, "DEBUG:"+msg) }
func (l *testLogger) Warn(_ map[string]any, msg string)  { l.entries = append(l.entries, "WARN:"+msg) }
func (l *testLogger) Panic(_ map[string]any, msg string) {}
func (l *testLogger) Fatal(_ map[string]any, msg string) {}

func TestZapLogger_AllLevels(t *testing.T) {
	Debug(map[string]any{
		"url":     "https://ads.example/a.js",
		"blocked": true,
	}, "request_blocked")
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(nil, "test error")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic, but none occurred")
		}
	}()
	Panic(nil, "test panic")
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	expected := []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}
	if len(tlog.entries) != len(expected) {
		t.Fatalf("expected %d log entries, got %d", len(expected), len(tlog.entries))
	}
	for i, msg := range expected {
		if tlog.entries[i] != msg {
			t.Errorf("expected log[%d] = %q, got %q", i, msg, tlog.entries[i])
		}
	}
}

func TestConfigure(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	tests := []struct {
		env, level string
		wantErr    bool
	}{
		{"dev", "debug", false},
		{"prod", "info", false},
		{"prod", "WARN", false},
		{"dev", "notalevel", true},
	}
	for _, tt := range tests {
		err := Configure(tt.env, tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("Configure(%q, %q) err=%v, wantErr=%v", tt.env, tt.level, err, tt.wantErr)
		}
	}
}

func TestZapFields_SortedByKey(t *testing.T) {
	fields := zapFields(map[string]any{"b": 2, "a": 1, "c": 3})
	if len(fields) != 3 {
		t.Fatalf("len=%d want=3", len(fields))
	}
	for i, want := range []string{"a", "b", "c"} {
		if fields[i].Key != want {
			t.Errorf("fields[%d].Key=%q want=%q", i, fields[i].Key, want)
		}
	}
	if got := zapFields(nil); len(got) != 0 {
		t.Errorf("expected no fields for nil map, got %d", len(got))
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(*noopLogger); !ok {
		t.Fatalf("expected noop logger for nil input")
	}
	tlog := &testLogger{}
	if OrNoop(tlog) != Logger(tlog) {
		t.Fatalf("expected the provided logger to be returned")
	}
	l := NewNoopLogger()
	l.Debug(nil, "x")
	l.Info(nil, "x")
	l.Warn(nil, "x")
	l.Error(nil, "x")
	l.Panic(nil, "x")
	l.Fatal(nil, "x")
}
