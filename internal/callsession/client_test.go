package callsession

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_StartCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/calls/start" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer jwt-1" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var body struct {
			VerificationToken string `json:"verification_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.VerificationToken != "bot-tok" {
			t.Fatalf("unexpected token %q", body.VerificationToken)
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","call_id":"call-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "jwt-1")
	res, err := c.StartCall(context.Background(), "bot-tok")
	if err != nil {
		t.Fatalf("start call: %v", err)
	}
	if res.AccessToken != "tok" || res.CallID != "call-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClient_StartCallSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Daily call limit reached"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "jwt-1")
	_, err := c.StartCall(context.Background(), "")
	if err == nil || err.Error() != "Daily call limit reached" {
		t.Fatalf("expected server error message, got %v", err)
	}
}

func TestClient_StartCallHandlesOpaqueFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "jwt-1")
	if _, err := c.StartCall(context.Background(), ""); err == nil {
		t.Fatalf("expected error for opaque failure")
	}
}

func TestClient_Config(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/config" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"verification_required":true,"verifier_site_key":"site-1","max_calls_per_day":5,"max_call_duration_seconds":120}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "jwt-1")
	cfg, err := c.Config(context.Background())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !cfg.VerificationRequired || cfg.VerifierSiteKey != "site-1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.MaxCallDurationSeconds != 120 {
		t.Fatalf("unexpected duration cap: %+v", cfg)
	}
}

func TestClient_Quota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/calls/quota" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"used":3,"max":5,"remaining":2}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "jwt-1")
	q, err := c.Quota(context.Background())
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if q.Used != 3 || q.Max != 5 || q.Remaining != 2 {
		t.Fatalf("unexpected quota: %+v", q)
	}
}
