package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("Expected method GET, got %s", r.Method)
		}
		if r.URL.Path != "/profile" {
			t.Errorf("Expected path /profile, got %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "tripload-test" {
			t.Errorf("Expected User-Agent tripload-test, got %s", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Expected bearer auth, got %q", r.Header.Get("Authorization"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"email":"a@example.com"}`))
	}))
	defer server.Close()

	client := NewClient(
		WithTimeout(5*time.Second),
		WithHeader("User-Agent", "tripload-test"),
		WithBaseURL(server.URL),
	)

	resp, err := client.Do(context.Background(), NewRequest("GET", "/profile").WithBearer("tok"))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", resp.StatusCode)
	}
	if got := resp.JSONField("email").String(); got != "a@example.com" {
		t.Errorf("email = %q, want a@example.com", got)
	}
}

func TestClient_DoTiming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	resp, err := client.Do(context.Background(), NewRequest("GET", "/slow"))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	timing := resp.Timing
	if timing.Waiting < 25*time.Millisecond {
		t.Errorf("Waiting = %v, want >= 25ms", timing.Waiting)
	}
	if timing.Duration < timing.Waiting {
		t.Errorf("Duration %v should include Waiting %v", timing.Duration, timing.Waiting)
	}
	if timing.Total < timing.Duration {
		t.Errorf("Total %v should be >= Duration %v", timing.Total, timing.Duration)
	}
	if timing.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestClient_DoTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url), WithTimeout(time.Second))

	resp, err := client.Do(context.Background(), NewRequest("GET", "/profile"))
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if resp != nil {
		t.Error("response should be nil on transport error")
	}
}

func TestClient_DoCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := client.Do(ctx, NewRequest("GET", "/hang")); err == nil {
		t.Fatal("expected an error for a cancelled request")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled request took %v", elapsed)
	}
}

func TestClient_RateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(20))

	start := time.Now()
	for i := 0; i < 25; i++ {
		if _, err := client.Do(context.Background(), NewRequest("GET", "/")); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	// 20 burst tokens, then 5 more at 20/s.
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("25 requests at 20 rps took %v, want >= 200ms", elapsed)
	}
	if hits.Load() != 25 {
		t.Errorf("server saw %d requests, want 25", hits.Load())
	}
}

func TestClient_RateLimitExcludedFromTiming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(2))

	var last *Response
	for i := 0; i < 3; i++ {
		resp, err := client.Do(context.Background(), NewRequest("GET", "/"))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		last = resp
	}
	if last.Timing.Total > 250*time.Millisecond {
		t.Errorf("limiter wait leaked into timing: Total = %v", last.Timing.Total)
	}
}
