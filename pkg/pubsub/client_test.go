package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestTopicName(t *testing.T) {
	cases := []struct {
		project, topic, want string
	}{
		{"proj", "order-events", "projects/proj/topics/order-events"},
		{"proj", " order-events ", "projects/proj/topics/order-events"},
		{"proj", "projects/other/topics/x", "projects/other/topics/x"},
		{"", "projects/other/topics/x", "projects/other/topics/x"},
		{"proj", "projects/p/subscriptions/s", ""},
		{"proj", "projects//topics/x", ""},
		{"proj", "a/b", ""},
		{"proj", "  ", ""},
		{"", "order-events", ""},
	}
	for _, tc := range cases {
		if got := topicName(tc.project, tc.topic); got != tc.want {
			t.Fatalf("topicName(%q, %q): expected %q, got %q", tc.project, tc.topic, tc.want, got)
		}
	}
}

func TestNewClientValidatesInput(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{}, []string{"t"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil, nil); err == nil {
		t.Fatal("expected error without topics")
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, []string{"a/b"}, nil); err == nil {
		t.Fatal("expected error for malformed topic")
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil {
		t.Fatal("expected nil publisher from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
}
