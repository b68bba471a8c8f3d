package voicevendor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetellProvider talks to a Retell-compatible REST API.
type RetellProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRetellProvider(baseURL, apiKey string) (*RetellProvider, error) {
	if baseURL == "" {
		return nil, errors.New("voicevendor: base url is required")
	}
	if apiKey == "" {
		return nil, errors.New("voicevendor: api key is required")
	}
	return &RetellProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (p *RetellProvider) Name() string { return "retell" }

type createWebCallRequest struct {
	AgentID string `json:"agent_id"`
}

type createWebCallResponse struct {
	AccessToken string `json:"access_token"`
	CallID      string `json:"call_id"`
}

func (p *RetellProvider) CreateWebCall(ctx context.Context, agentID string) (WebCall, error) {
	if agentID == "" {
		return WebCall{}, errors.New("voicevendor: agent id is required")
	}

	var out createWebCallResponse
	if err := p.post(ctx, "/v2/create-web-call", createWebCallRequest{AgentID: agentID}, &out); err != nil {
		return WebCall{}, err
	}
	if out.AccessToken == "" || out.CallID == "" {
		return WebCall{}, errors.New("voicevendor: vendor returned incomplete web call")
	}
	return WebCall{AccessToken: out.AccessToken, CallID: out.CallID}, nil
}

type listCallsRequest struct {
	FilterCriteria struct {
		AgentID []string `json:"agent_id"`
	} `json:"filter_criteria"`
	Limit int `json:"limit"`
}

type listCallsResponseItem struct {
	CallID   string `json:"call_id"`
	CallCost *struct {
		CombinedCost int64 `json:"combined_cost"`
	} `json:"call_cost"`
}

func (p *RetellProvider) ListCalls(ctx context.Context, req ListCallsRequest) ([]CallRecord, error) {
	if req.AgentID == "" {
		return nil, errors.New("voicevendor: agent id is required")
	}
	if req.Limit <= 0 {
		return nil, errors.New("voicevendor: limit must be > 0")
	}

	body := listCallsRequest{Limit: req.Limit}
	body.FilterCriteria.AgentID = []string{req.AgentID}

	var items []listCallsResponseItem
	if err := p.post(ctx, "/v2/list-calls", body, &items); err != nil {
		return nil, err
	}

	out := make([]CallRecord, 0, len(items))
	for _, it := range items {
		rec := CallRecord{CallID: it.CallID}
		if it.CallCost != nil {
			rec.CombinedCostCents = it.CallCost.CombinedCost
		}
		out = append(out, rec)
	}
	return out, nil
}

func (p *RetellProvider) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("voicevendor: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Body may contain vendor error detail; keep it out of returned
		// errors shown to users, callers log it instead.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("voicevendor: %s returned %d: %s", path, resp.StatusCode, string(detail))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
