package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	internalwebhook "github.com/quailrun-gg/scrimsync/internal/webhook"
)

func TestSendLifecycleEvent_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	err := sender.SendLifecycleEvent(context.Background(), internalwebhook.LifecycleEvent{Kind: "started"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendLifecycleEvent_Success(t *testing.T) {
	var gotKind, gotSessionID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %s", ct)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		var payload internalwebhook.LifecycleEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		gotKind = payload.Kind
		gotSessionID = payload.SessionID
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	err := sender.SendLifecycleEvent(context.Background(), internalwebhook.LifecycleEvent{
		Kind:       "resurrected",
		SessionID:  "event-1",
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKind != "resurrected" || gotSessionID != "event-1" {
		t.Fatalf("unexpected payload: kind=%q session=%q", gotKind, gotSessionID)
	}
}

func TestSendLifecycleEvent_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	err := sender.SendLifecycleEvent(context.Background(), internalwebhook.LifecycleEvent{Kind: "ended"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
