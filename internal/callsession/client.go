package callsession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Client is the HTTP implementation of Gate, talking to the API server's
// call endpoints with a bearer token.
type Client struct {
	baseURL string
	bearer  string
	http    *http.Client
}

func NewClient(baseURL, bearer string) *Client {
	return &Client{
		baseURL: baseURL,
		bearer:  bearer,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type startCallRequest struct {
	VerificationToken string `json:"verification_token,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (c *Client) StartCall(ctx context.Context, botToken string) (StartCallResult, error) {
	payload, err := json.Marshal(startCallRequest{VerificationToken: botToken})
	if err != nil {
		return StartCallResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/calls/start", bytes.NewReader(payload))
	if err != nil {
		return StartCallResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return StartCallResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return StartCallResult{}, fmt.Errorf("start call failed with status %d", resp.StatusCode)
		}
		return StartCallResult{}, errors.New(apiErr.Error)
	}

	var out StartCallResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StartCallResult{}, err
	}
	if out.AccessToken == "" {
		return StartCallResult{}, errors.New("start call response missing access token")
	}
	return out, nil
}

// ClientConfig mirrors the server's public client-facing settings.
type ClientConfig struct {
	VerificationRequired   bool   `json:"verification_required"`
	VerifierSiteKey        string `json:"verifier_site_key"`
	MaxCallsPerDay         int    `json:"max_calls_per_day"`
	MaxCallDurationSeconds int    `json:"max_call_duration_seconds"`
}

func (c *Client) Config(ctx context.Context) (ClientConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/config", nil)
	if err != nil {
		return ClientConfig{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ClientConfig{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ClientConfig{}, fmt.Errorf("config lookup failed with status %d", resp.StatusCode)
	}

	var out ClientConfig
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ClientConfig{}, err
	}
	return out, nil
}

// Quota mirrors the server's daily usage report.
type Quota struct {
	Used      int `json:"used"`
	Max       int `json:"max"`
	Remaining int `json:"remaining"`
}

func (c *Client) Quota(ctx context.Context) (Quota, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/calls/quota", nil)
	if err != nil {
		return Quota{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return Quota{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quota{}, fmt.Errorf("quota lookup failed with status %d", resp.StatusCode)
	}

	var out Quota
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Quota{}, err
	}
	return out, nil
}
