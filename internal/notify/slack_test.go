package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/resilience"
)

func TestSlackNotifier_NotifyContact_SendsBlockKit(t *testing.T) {
	var payload slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL, time.Second, nil)
	err := n.NotifyContact(context.Background(), &model.ContactMessage{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Subject:   "Technical Support",
		Message:   "The audio player stops after a minute.",
		CreatedAt: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NotifyContact err=%v", err)
	}

	if payload.Text != "New contact message: Technical Support" {
		t.Errorf("fallback text = %q", payload.Text)
	}
	if len(payload.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(payload.Blocks))
	}
	if got := payload.Blocks[1].Fields[0].Text; got != "*From:*\nAda Lovelace" {
		t.Errorf("from field = %q", got)
	}
	if got := payload.Blocks[2].Text.Text; got != "The audio player stops after a minute." {
		t.Errorf("message = %q", got)
	}
}

func TestSlackNotifier_NotifySuggestion_OmitsEmptyFields(t *testing.T) {
	var payload slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL, time.Second, nil)
	err := n.NotifySuggestion(context.Background(), &model.StorySuggestion{
		ParentName: "Sam",
		Email:      "sam@example.com",
		StoryIdea:  "A dragon who is afraid of the dark",
		Themes:     "courage",
	})
	if err != nil {
		t.Fatalf("NotifySuggestion err=%v", err)
	}

	if len(payload.Blocks[1].Fields) != 2 {
		t.Errorf("fields = %+v, want parent and email only", payload.Blocks[1].Fields)
	}
	body := payload.Blocks[2].Text.Text
	if !strings.Contains(body, "*Themes:* courage") || strings.Contains(body, "Characters") {
		t.Errorf("body = %q", body)
	}
}

func TestSlackNotifier_Non2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL, time.Second, nil)
	err := n.NotifyContact(context.Background(), &model.ContactMessage{Subject: "Other"})
	if err == nil || !strings.Contains(err.Error(), "invalid_token") {
		t.Fatalf("err = %v, want status error with body", err)
	}
}

func TestSlackNotifier_BreakerStopsCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := resilience.New(resilience.Config{
		Name:             "slack-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Hour,
		FailureThreshold: 1,
		MinRequests:      1,
	}, nil)
	n := NewSlackNotifier(server.URL, time.Second, breaker)
	// 送信間隔の待機を避ける
	n.limiter.SetLimit(1000)
	n.limiter.SetBurst(10)

	_ = n.NotifyContact(context.Background(), &model.ContactMessage{})
	err := n.NotifyContact(context.Background(), &model.ContactMessage{})

	if !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if calls.Load() != 1 {
		t.Errorf("webhook calls = %d, want 1", calls.Load())
	}
}

func TestSlackNotifier_CancelledContext(t *testing.T) {
	n := NewSlackNotifier("http://127.0.0.1:1", time.Second, nil)
	// バーストを使い切り、次の送信を待機させる
	n.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.NotifyContact(ctx, &model.ContactMessage{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("おやすみなさい", 5); got != "おや..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}

func TestNopNotifier(t *testing.T) {
	var n Notifier = NopNotifier{}
	if err := n.NotifyContact(context.Background(), &model.ContactMessage{}); err != nil {
		t.Errorf("NotifyContact = %v", err)
	}
	if err := n.NotifySuggestion(context.Background(), &model.StorySuggestion{}); err != nil {
		t.Errorf("NotifySuggestion = %v", err)
	}
}
