package main

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "password", in: "postgres://app:s3cret@db:5432/splitledger", want: "postgres://app@db:5432/splitledger"},
		{name: "redis_password_only", in: "redis://:s3cret@cache:6379/0", want: "redis://redacted@cache:6379/0"},
		{name: "no_credentials", in: "redis://cache:6379", want: "redis://cache:6379"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := redactURL(test.in); got != test.want {
				t.Errorf("redactURL(%q) = %q, want %q", test.in, got, test.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://app:s3cret@db:5432/splitledger"
	err := errors.New("dial " + dsn + ": refused; password=hunter2 rejected")

	got := sanitizeError(err, dsn, "")
	if strings.Contains(got, "s3cret") || strings.Contains(got, "hunter2") {
		t.Fatalf("secret leaked: %s", got)
	}
	if !strings.Contains(got, "postgres://app@db:5432/splitledger") {
		t.Errorf("expected redacted DSN in %q", got)
	}

	if sanitizeError(nil, dsn) != "" {
		t.Error("expected empty string for nil error")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
