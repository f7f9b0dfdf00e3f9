package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"bizops_server/core/port/out"
)

func TestPost_SendsBlockMessage(t *testing.T) {
	var received slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewSlackAdapter(srv.URL, zerolog.Nop())
	err := a.Post(context.Background(), &out.Notification{
		Subject:      "Server down",
		SenderEmail:  "ops@acme.example.com",
		EmailType:    "urgent_issue",
		Priority:     "urgent",
		ActionBucket: "create_ticket",
		CompanyName:  "Acme",
		Confidence:   0.97,
		Reasoning:    "Outage keywords in subject and body.",
	})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	if !strings.HasPrefix(received.Text, "🚨") {
		t.Errorf("fallback text = %q, want urgent emoji prefix", received.Text)
	}
	if len(received.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(received.Blocks))
	}
	if received.Blocks[0].Type != "header" {
		t.Errorf("first block type = %q, want header", received.Blocks[0].Type)
	}
	if got := len(received.Blocks[1].Fields); got != 6 {
		t.Errorf("section fields = %d, want 6", got)
	}
}

func TestPost_WebhookErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	a := NewSlackAdapter(srv.URL, zerolog.Nop())
	err := a.Post(context.Background(), &out.Notification{Subject: "x"})
	if err == nil {
		t.Fatal("Post() error = nil, want webhook error")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %v, want status 400", err)
	}
}

func TestPost_UnconfiguredWebhookIsNoOp(t *testing.T) {
	a := NewSlackAdapter("", zerolog.Nop())
	if err := a.Post(context.Background(), &out.Notification{Subject: "x"}); err != nil {
		t.Fatalf("Post() error = %v, want nil", err)
	}
}

func TestEmojiFor(t *testing.T) {
	tests := []struct {
		name string
		n    out.Notification
		want string
	}{
		{"urgent priority", out.Notification{Priority: "urgent"}, "🚨"},
		{"urgent case folded", out.Notification{Priority: "URGENT"}, "🚨"},
		{"work request", out.Notification{EmailType: "client_work_request", Priority: "normal"}, "📋"},
		{"default", out.Notification{EmailType: "vendor_invoice", Priority: "normal"}, "📧"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := emojiFor(&tt.n); got != tt.want {
				t.Errorf("emojiFor() = %q, want %q", got, tt.want)
			}
		})
	}
}
