package voicevendor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateWebCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/create-web-call" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var body struct {
			AgentID string `json:"agent_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.AgentID != "agent-1" {
			t.Fatalf("unexpected agent id %q", body.AgentID)
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-abc","call_id":"call-123"}`))
	}))
	defer srv.Close()

	p, err := NewRetellProvider(srv.URL, "key-1")
	if err != nil {
		t.Fatalf("provider: %v", err)
	}

	wc, err := p.CreateWebCall(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("create web call: %v", err)
	}
	if wc.AccessToken != "tok-abc" || wc.CallID != "call-123" {
		t.Fatalf("unexpected web call: %+v", wc)
	}
}

func TestCreateWebCall_IncompleteResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"call_id":"call-123"}`))
	}))
	defer srv.Close()

	p, _ := NewRetellProvider(srv.URL, "key-1")
	if _, err := p.CreateWebCall(context.Background(), "agent-1"); err == nil {
		t.Fatalf("expected error for missing access token")
	}
}

func TestListCalls_MissingCostCountsAsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/list-calls" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var body struct {
			FilterCriteria struct {
				AgentID []string `json:"agent_id"`
			} `json:"filter_criteria"`
			Limit int `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Limit != 1000 || len(body.FilterCriteria.AgentID) != 1 {
			t.Fatalf("unexpected request: %+v", body)
		}
		_, _ = w.Write([]byte(`[
			{"call_id":"a","call_cost":{"combined_cost":700}},
			{"call_id":"b"},
			{"call_id":"c","call_cost":{"combined_cost":500}}
		]`))
	}))
	defer srv.Close()

	p, _ := NewRetellProvider(srv.URL, "key-1")
	records, err := p.ListCalls(context.Background(), ListCallsRequest{AgentID: "agent-1", Limit: 1000})
	if err != nil {
		t.Fatalf("list calls: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if got := SumCombinedCostCents(records); got != 1200 {
		t.Fatalf("expected 1200 cents, got %d", got)
	}
}

func TestListCalls_VendorErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := NewRetellProvider(srv.URL, "key-1")
	if _, err := p.ListCalls(context.Background(), ListCallsRequest{AgentID: "agent-1", Limit: 10}); err == nil {
		t.Fatalf("expected error on vendor 500")
	}
}

func TestSumCombinedCostCents_Empty(t *testing.T) {
	if got := SumCombinedCostCents(nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
