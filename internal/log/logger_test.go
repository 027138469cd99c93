package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentApp, Output: &buf})

	l.WithComponent(ComponentBudget).Info("reconciled", FieldBudgetID, "b1")

	out := buf.String()
	if !strings.Contains(out, "component=budget") {
		t.Errorf("output missing component: %s", out)
	}
	if !strings.Contains(out, "budget_id=b1") {
		t.Errorf("output missing field: %s", out)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentWorker, Format: "json", Output: &buf})
	l.Debug("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(out, `"component":"worker"`) {
		t.Errorf("json output missing component: %s", out)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("empty context should yield the fallback logger")
	}
	l := New(DefaultConfig())
	if FromContext(WithContext(context.Background(), l)) != l {
		t.Error("FromContext should return the stored logger")
	}
}

func TestStructuredLogger_LogRequestLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{500, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, Output: &buf}))
		sl.LogRequest(context.Background(), RequestInfo{
			RequestID: "r1",
			Method:    "GET",
			Path:      "/v1/debts",
			Status:    tt.status,
			Duration:  12 * time.Millisecond,
		})
		if !strings.Contains(buf.String(), tt.level) {
			t.Errorf("status %d: want %s in %s", tt.status, tt.level, buf.String())
		}
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithOwner("u1").
		WithRecord("debt", "d1").
		WithRecord("payee", "p1").
		WithAmount(500).
		WithError(errors.New("boom")).
		WithError(nil)

	if f[FieldDebtID] != "d1" || f["payee_id"] != "p1" {
		t.Errorf("record fields = %v", f)
	}
	if f[FieldError] != "boom" {
		t.Errorf("error field = %v", f[FieldError])
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Error("ToSlice should emit key/value pairs")
	}
}

func TestLogFields_ToSliceIsSorted(t *testing.T) {
	f := NewFields().
		With(FieldSpentCents, int64(40)).
		WithOwner("u1").
		WithRecord("budget", "b1").
		With(FieldExceeded, false)

	want := []any{FieldBudgetID, "b1", FieldExceeded, false, FieldOwnerID, "u1", FieldSpentCents, int64(40)}
	for range 5 {
		got := f.ToSlice()
		if len(got) != len(want) {
			t.Fatalf("ToSlice() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("ToSlice() = %v, want %v", got, want)
			}
		}
	}
}
