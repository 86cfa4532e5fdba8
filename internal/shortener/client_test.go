package shortener

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestShortenReturnsLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api"); got != "key" {
			t.Errorf("api = %q, want %q", got, "key")
		}
		if got := r.URL.Query().Get("url"); got != "https://example.com/claim?token=abc" {
			t.Errorf("url = %q, want the destination", got)
		}
		fmt.Fprint(w, "https://short.test/xyz\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", time.Second)
	link, err := client.Shorten(context.Background(), "https://example.com/claim?token=abc")
	if err != nil {
		t.Fatalf("Shorten() error = %v", err)
	}
	if link != "https://short.test/xyz" {
		t.Fatalf("link = %q, want %q", link, "https://short.test/xyz")
	}
}

func TestShortenRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "https://short.test/retry")
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", time.Second)
	link, err := client.Shorten(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("Shorten() error = %v", err)
	}
	if link != "https://short.test/retry" {
		t.Fatalf("link = %q, want %q", link, "https://short.test/retry")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestShortenDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", time.Second)
	if _, err := client.Shorten(context.Background(), "https://example.com/x"); err == nil {
		t.Fatalf("error = nil, want failure")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestShortenRejectsGarbageBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "CAPTCHA required")
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", time.Second)
	if _, err := client.Shorten(context.Background(), "https://example.com/x"); err == nil {
		t.Fatalf("error = nil, want failure for a non-URL body")
	}
}
