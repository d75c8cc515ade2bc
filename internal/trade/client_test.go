package trade

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL:   baseURL,
		UserAgent: "trade-companion/0.1 (contact: dev@example.com)",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestSearchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST got %s", r.Method)
		}
		if r.URL.Path != "/api/trade/search/Standard" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Errorf("missing user agent")
		}
		w.Header().Set("X-Rate-Limit-Rules", "Ip")
		w.Write([]byte(`{"id":"abc123","result":["h1","h2"],"total":2}`))
	}))
	defer server.Close()

	result, headers, err := testClient(t, server.URL).Search(context.Background(), "Standard", SearchPayload{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ID != "abc123" || result.Total != 2 || len(result.Result) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if headers.Get("X-Rate-Limit-Rules") != "Ip" {
		t.Fatalf("expected rate limit headers returned, got %v", headers)
	}
}

func TestSearchRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit exceeded"}}`))
	}))
	defer server.Close()

	_, headers, err := testClient(t, server.URL).Search(context.Background(), "Standard", SearchPayload{})
	if headers == nil {
		t.Fatalf("headers must be returned on rejection")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError got %v", err)
	}
	if !statusErr.RateLimited() || statusErr.RetryAfter != 60 {
		t.Fatalf("expected 429 with retry 60, got %+v", statusErr)
	}
	if statusErr.Message != "Rate limit exceeded" {
		t.Fatalf("expected upstream message, got %q", statusErr.Message)
	}
}

func TestSearchForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, _, err := testClient(t, server.URL).Search(context.Background(), "Standard", SearchPayload{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || !statusErr.Forbidden() {
		t.Fatalf("expected forbidden StatusError got %v", err)
	}
}

func TestSearchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, _, err := testClient(t, server.URL).Search(context.Background(), "Standard", SearchPayload{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse got %v", err)
	}
}

func TestSearchMissingResultID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[],"total":0}`))
	}))
	defer server.Close()

	_, _, err := testClient(t, server.URL).Search(context.Background(), "Standard", SearchPayload{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse got %v", err)
	}
}

func TestSearchConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, _, err := testClient(t, server.URL).Search(context.Background(), "Standard", SearchPayload{})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection got %v", err)
	}
}

func TestNewClientRequiresContact(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); !errors.Is(err, ErrMissingContact) {
		t.Fatalf("expected ErrMissingContact got %v", err)
	}
}
