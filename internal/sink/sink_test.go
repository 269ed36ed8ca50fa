package sink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlackSenderRendersTemplate(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		got = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender, err := NewSlackSender(server.URL, "MATCH {{.PredicateID}} {{.EventType}} {{short_addr .TxHash}}")
	if err != nil {
		t.Fatalf("sender: %v", err)
	}

	err = sender.Send(context.Background(), EventPayload{
		PredicateID: "large-transfers", EventType: "transfer", TxHash: "0x1234567890abcdef",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if got == "" || !contains(got, "MATCH large-transfers transfer 0x1234") {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestWebhookPostsStructuredPayload(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		got = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender, err := NewWebhookSender(server.URL, http.MethodPost, "", nil)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	err = sender.Send(context.Background(), EventPayload{
		PredicateID: "p1", EventType: "transfer", BlockHeight: 42, Amount: "1000000",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, want := range []string{`"predicateId":"p1"`, `"blockHeight":42`, `"amount":"1000000"`, `"message"`} {
		if !contains(got, want) {
			t.Fatalf("payload missing %s: %s", want, got)
		}
	}
	if contains(got, `"text"`) {
		t.Fatalf("generic webhook must not use the slack text wrapper: %s", got)
	}
}

func TestWebhookStatusFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender, err := NewWebhookSender(server.URL, http.MethodPost, "msg", nil)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	err = sender.Send(context.Background(), EventPayload{PredicateID: "p"})
	if err == nil {
		t.Fatalf("expected error on 502")
	}
}

func contains(s, substr string) bool { return strings.Contains(s, substr) }
