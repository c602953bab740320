package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/franchisepos-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	tests := []struct {
		project string
		name    string
		want    string
	}{
		{project: "pos-prod", name: "pos-audit-events", want: "projects/pos-prod/topics/pos-audit-events"},
		{project: "pos-prod", name: "projects/other/topics/x", want: "projects/other/topics/x"},
		{project: "", name: "pos-audit-events", want: ""},
		{project: "pos-prod", name: "  ", want: ""},
	}
	for _, tt := range tests {
		if got := topicResourceName(tt.project, tt.name); got != tt.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tt.project, tt.name, got, tt.want)
		}
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.AuditConfig{Topic: "t"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.AuditConfig{}, nil); err != errTopicRequired {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
	if _, err := c.Publish(context.Background(), []byte("{}"), nil); err == nil {
		t.Fatal("expected publish error on nil client")
	}
}
