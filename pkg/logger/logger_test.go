package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestRefundFailureCarriesTenantAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "franchisepos-api", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithTenantID(context.Background(), "tenant-1")
	ctx = log.WithActorRole(ctx, "manager")
	ctx = log.WithFields(ctx, map[string]any{"original_transaction_id": "txn-9"})
	log.Error(ctx, "refund commit failed", errors.New("deadlock detected"))

	entry := decodeLine(t, buf)
	for key, want := range map[string]string{
		"service":                 "franchisepos-api",
		"tenant_id":               "tenant-1",
		"actor_role":              "manager",
		"original_transaction_id": "txn-9",
		"error":                   "deadlock detected",
		"level":                   "error",
	} {
		if entry[key] != want {
			t.Errorf("expected %s=%q, got %v", key, want, entry[key])
		}
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatal("errors always carry a stack")
	}
}

func TestWarnStackFollowsOption(t *testing.T) {
	for _, withStack := range []bool{false, true} {
		buf := &bytes.Buffer{}
		log := New(Options{ServiceName: "register-agent", Output: buf, WarnStack: withStack})
		log.Warn(log.WithStationID(context.Background(), "t1:station:front"), "display subscribe failed")

		entry := decodeLine(t, buf)
		if entry["station_key"] != "t1:station:front" {
			t.Fatalf("expected station key, got %v", entry["station_key"])
		}
		if _, ok := entry["stack"]; ok != withStack {
			t.Fatalf("WarnStack=%v but stack present=%v", withStack, ok)
		}
	}
}

func TestContextFieldsDoNotLeakBetweenRequests(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "franchisepos-api", Output: buf})

	base := context.Background()
	_ = log.WithRequestID(base, "req-1")
	log.Info(base, "sale committed")

	if entry := decodeLine(t, buf); entry["request_id"] != nil {
		t.Fatalf("request id leaked into an unrelated context: %v", entry["request_id"])
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "audit-publisher", Level: ParseLevel("warn"), Output: buf})
	log.Info(context.Background(), "relay tick")
	if buf.Len() != 0 {
		t.Fatalf("info must be dropped at warn level, got %s", buf.String())
	}
	Nop().Error(context.Background(), "dropped", errors.New("x"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q): expected %v got %v", in, want, got)
		}
	}
}
