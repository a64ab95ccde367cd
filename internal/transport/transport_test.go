package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dharmasatrya/flightpoll/internal/models"
	"github.com/dharmasatrya/flightpoll/internal/ratelimit"
)

func TestHTTPTransportPost(t *testing.T) {
	var gotBody, gotAuth, gotReqID, gotContentType, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(Config{
		APIKey:      "secret",
		RateLimiter: ratelimit.NewHostLimiter(ratelimit.DefaultConfig()),
	})

	headers := http.Header{}
	headers.Set("X-Custom", "yes")
	resp, err := tr.Post(context.Background(), srv.URL+"/search", []byte(`{"a":1}`), headers)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %s", resp.Body)
	}
	if gotBody != `{"a":1}` {
		t.Errorf("server saw body %q", gotBody)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReqID == "" {
		t.Error("expected X-Request-ID to be set")
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotCustom != "yes" {
		t.Errorf("X-Custom = %q", gotCustom)
	}
}

func TestHTTPTransportGetMergesParams(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(Config{})
	_, err := tr.Get(context.Background(), srv.URL+"/poll?cursor=abc", url.Values{"limit": {"30"}}, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotQuery.Get("cursor") != "abc" || gotQuery.Get("limit") != "30" {
		t.Errorf("query = %v", gotQuery)
	}
}

func TestHTTPTransportNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	tr := NewHTTPTransport(Config{Timeout: time.Second})
	_, err := tr.Get(context.Background(), addr, nil, nil)

	var netErr *models.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !models.IsRetryable(err) {
		t.Error("network errors must be retryable")
	}
}

func TestHTTPTransportContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	tr := NewHTTPTransport(Config{})
	_, err := tr.Get(ctx, srv.URL, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		retryable bool
	}{
		{status: 200},
		{status: 204},
		{status: 400, wantErr: true},
		{status: 404, wantErr: true},
		{status: 500, wantErr: true, retryable: true},
		{status: 503, wantErr: true, retryable: true},
	}

	for _, tt := range tests {
		err := CheckStatus(&Response{StatusCode: tt.status, Body: []byte("boom")})
		if (err != nil) != tt.wantErr {
			t.Errorf("status %d: err = %v, wantErr %v", tt.status, err, tt.wantErr)
			continue
		}
		if err == nil {
			continue
		}
		var srvErr *models.ServerError
		if !errors.As(err, &srvErr) || srvErr.Status != tt.status {
			t.Errorf("status %d: expected ServerError, got %v", tt.status, err)
		}
		if models.IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tt.status, !tt.retryable, tt.retryable)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://api.example.com/v1/", "https://cdn.example.com/p2", "https://cdn.example.com/p2"},
		{"https://api.example.com/v1/", "/v1/search/abc/poll?page=2", "https://api.example.com/v1/search/abc/poll?page=2"},
		{"https://api.example.com/v1/", "search/abc/poll?page=2", "https://api.example.com/v1/search/abc/poll?page=2"},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.base, tt.ref)
		if err != nil {
			t.Fatalf("Resolve(%q, %q): %v", tt.base, tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}

	if _, err := Resolve("not-absolute", "page2"); err == nil {
		t.Error("expected error for relative base")
	}
}

func TestJoin(t *testing.T) {
	got, err := Join("https://api.example.com/v1", "search", "abc 123", "poll")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got != "https://api.example.com/v1/search/abc%20123/poll" {
		t.Errorf("Join = %q", got)
	}
}
