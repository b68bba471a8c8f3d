package botcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MinScore is the confidence threshold below which a request is treated as
// bot traffic, matching the verification service's recommended default.
const MinScore = 0.5

// Result is the provider-agnostic verification outcome.
type Result struct {
	Success bool
	// Score is the human-likelihood confidence in [0,1]. Absent scores are
	// reported as 0 and therefore fail the threshold.
	Score float64
}

// Human reports whether the result clears the admission threshold.
func (r Result) Human() bool {
	return r.Success && r.Score >= MinScore
}

// Verifier submits a client-supplied challenge token for scoring.
type Verifier interface {
	Verify(ctx context.Context, token string) (Result, error)
}

// HTTPVerifier verifies tokens against a siteverify-style endpoint
// (form-encoded POST, JSON response with success + score).
type HTTPVerifier struct {
	endpoint string
	secret   string
	client   *http.Client
}

func NewHTTPVerifier(endpoint, secret string) (*HTTPVerifier, error) {
	if endpoint == "" {
		return nil, errors.New("botcheck: endpoint is required")
	}
	if secret == "" {
		return nil, errors.New("botcheck: secret is required")
	}
	return &HTTPVerifier{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Result, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("botcheck: verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("botcheck: verify endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Success bool     `json:"success"`
		Score   *float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("botcheck: decode response: %w", err)
	}

	out := Result{Success: body.Success}
	if body.Score != nil {
		out.Score = *body.Score
	}
	return out, nil
}
