package portalclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/wifiprov/internal/portal"
)

func newTestClient(url string) *Client {
	c := New(url)
	c.SetRetry(2, time.Millisecond)
	c.MaxRetryDelay = 5 * time.Millisecond
	return c
}

func TestNew(t *testing.T) {
	c := New("http://192.168.4.1:8080/")

	if c.BaseURL != "http://192.168.4.1:8080" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", c.BaseURL)
	}
	if c.HTTPClient == nil || c.HTTPClient.Timeout != DefaultTimeout {
		t.Error("HTTPClient should use DefaultTimeout")
	}
	if c.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", c.MaxRetries, DefaultMaxRetries)
	}
	if !c.UseExponentialBackoff {
		t.Error("UseExponentialBackoff should default to true")
	}
}

func TestParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/params" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"access_point":"setup","running":true,"parameters":[{"id":"mqtt_server","placeholder":"MQTT server","value":"broker.local","buffer_size":40}]}`))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).Params(context.Background())
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	if got.AccessPoint != "setup" || !got.Running {
		t.Errorf("Params() = %+v", got)
	}
	if len(got.Parameters) != 1 || got.Parameters[0].Value != "broker.local" {
		t.Errorf("Parameters = %+v", got.Parameters)
	}
}

func TestSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/save" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req portal.SaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.SSID != "home" || req.Password != "secret" || req.Values["mqtt_port"] != "1883" {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"status":"connected"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Submit(context.Background(), portal.SaveRequest{
		SSID:     "home",
		Password: "secret",
		Values:   map[string]string{"mqtt_port": "1883"},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.Status != "connected" {
		t.Errorf("Status = %q, want connected", resp.Status)
	}
}

func TestSubmit_RequiresSSID(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Submit(context.Background(), portal.SaveRequest{})
	if !hasType(err, ErrTypeRejected) {
		t.Errorf("error = %v, want Rejected", err)
	}
	if hits.Load() != 0 {
		t.Error("request should not be sent without an ssid")
	}
}

func TestSubmit_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType ErrorType
		wantHits int32
	}{
		{"bad request", http.StatusBadRequest, ErrTypeRejected, 1},
		{"no session", http.StatusConflict, ErrTypeNoSession, 1},
		{"join failed", http.StatusBadGateway, ErrTypeJoinFailed, 1},
		{"server error retried", http.StatusInternalServerError, ErrTypeHTTP, 3},
		{"not found", http.StatusNotFound, ErrTypeHTTP, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"status":"error","error":"nope"}`))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Submit(context.Background(), portal.SaveRequest{SSID: "home"})
			var ce *ClientError
			if !asClientError(err, &ce) {
				t.Fatalf("error = %v, want *ClientError", err)
			}
			if ce.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", ce.Type, tt.wantType)
			}
			if ce.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", ce.StatusCode, tt.status)
			}
			if hits.Load() != tt.wantHits {
				t.Errorf("server hit %d times, want %d", hits.Load(), tt.wantHits)
			}
		})
	}
}

func TestParams_RetriesUntilSuccess(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"access_point":"setup","running":true,"parameters":[]}`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Params(context.Background()); err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}
}

func TestParams_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_point":`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Params(context.Background())
	if !hasType(err, ErrTypeParse) {
		t.Errorf("error = %v, want Parse error", err)
	}
}

func TestParams_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Params(context.Background())
	if !IsNetworkError(err) {
		t.Errorf("error = %v, want network error", err)
	}
}

func TestRetry_StopsWhenContextDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(server.URL)
	c.SetRetry(5, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Params(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("retry loop ignored context cancellation")
	}
}
