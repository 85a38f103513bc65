package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whatsapp-dispatch/internal/template"
)

func TestQueueMessagePostsPayload(t *testing.T) {
	var got QueueMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/queue-message" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	err := client.QueueMessage(context.Background(), QueueMessageRequest{
		ConnectionID: "conn-1",
		MessageLogID: "log-1",
		Recipient:    "+4915551234",
		Message:      template.TextMessage("hello"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.MessageLogID != "log-1" || got.Message.Text != "hello" {
		t.Errorf("request = %+v", got)
	}
}

func TestQueueMessageNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	err := client.QueueMessage(context.Background(), QueueMessageRequest{})
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if terr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", terr.StatusCode)
	}
}

func TestConnectDecodesPairingCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ConnectResponse{PairingCode: "ABCD-1234"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	resp, err := client.Connect(context.Background(), ConnectRequest{ConnectionID: "conn-1"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.PairingCode != "ABCD-1234" {
		t.Errorf("pairing code = %q", resp.PairingCode)
	}
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 20*time.Millisecond)
	err := client.QueueMessage(context.Background(), QueueMessageRequest{})
	var terr *Error
	if !errors.As(err, &terr) || terr.Err == nil {
		t.Fatalf("err = %v, want wrapped timeout", err)
	}
}
