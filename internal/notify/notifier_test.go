package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTelegramSendMessage(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	if err := notifier.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("SendMessage should succeed: %v", err)
	}

	if received["chat_id"] != "42" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if received["text"] != "hello" {
		t.Fatalf("unexpected text: %#v", received)
	}
}

func TestTelegramSendMessageNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "blocked"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	if err := notifier.SendMessage(context.Background(), 42, "hello"); err == nil {
		t.Fatal("ok=false should produce an error")
	}
}

func TestTelegramSendPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendPhoto") {
			t.Fatalf("path should contain sendPhoto, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart form: %v", err)
		}
		if r.FormValue("chat_id") != "7" {
			t.Fatalf("unexpected chat_id %q", r.FormValue("chat_id"))
		}
		if r.FormValue("caption") != "report" {
			t.Fatalf("unexpected caption %q", r.FormValue("caption"))
		}
		if _, _, err := r.FormFile("photo"); err != nil {
			t.Fatalf("photo part missing: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	if err := notifier.SendPhoto(context.Background(), 7, []byte{0x89, 0x50}, "report"); err != nil {
		t.Fatalf("SendPhoto should succeed: %v", err)
	}
}

func TestTelegramHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	if err := notifier.SendMessage(context.Background(), 1, "x"); err == nil {
		t.Fatal("HTTP 502 should produce an error")
	}
}

type flakyNotifier struct {
	failFor map[int64]bool
	sent    []int64
}

func (f *flakyNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	if f.failFor[chatID] {
		return context.DeadlineExceeded
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func (f *flakyNotifier) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	return f.SendMessage(ctx, chatID, caption)
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	n := &flakyNotifier{failFor: map[int64]bool{2: true}}
	sent := Broadcast(context.Background(), n, []int64{1, 2, 3}, "hi", testLogger())
	if sent != 2 {
		t.Fatalf("expected 2 deliveries, got %d", sent)
	}
	if len(n.sent) != 2 || n.sent[0] != 1 || n.sent[1] != 3 {
		t.Fatalf("unexpected recipients: %v", n.sent)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
