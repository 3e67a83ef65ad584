package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelInfo, false},
		{"warning", LevelWarning, false},
		{"Error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Options{Level: "debug", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	defer SetLevel(LevelInfo)

	Debug("hello", "ruleset", "taxes")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if entry["msg"] != "hello" || entry["ruleset"] != "taxes" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestSetupTextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Options{Level: "warn", Format: "text", Output: &buf}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	defer SetLevel(LevelInfo)

	Info("hidden")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if err := Setup(Options{Level: "loud"}); err == nil {
		t.Error("Setup() should fail on an unknown level")
	}
}

func TestCounters(t *testing.T) {
	before := Counters()

	WarnHttp4xx(404)
	WarnHttp4xx(409)
	ErrorHttp5xx()
	IncrementBuildFailures()
	RecordRun(4, 6, nil)
	RecordRun(1, 0, errors.New("boom"))

	after := Counters()
	diff := func(k string) int64 { return after[k] - before[k] }

	checks := map[string]int64{
		"http_4xx":          2,
		"http_404":          1,
		"http_409":          1,
		"http_5xx":          1,
		"build_failures":    1,
		"records_processed": 5,
		"rules_fired":       6,
		"runs_completed":    1,
		"runs_failed":       1,
		"errors":            1,
	}
	for k, want := range checks {
		if got := diff(k); got != want {
			t.Errorf("%s increased by %d, want %d", k, got, want)
		}
	}
}
