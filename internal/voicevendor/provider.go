package voicevendor

import (
	"context"
)

// Provider defines the vendor-agnostic interface used by business logic.
//
// Rules:
// - No vendor SDK calls outside voicevendor adapters.
// - All requests are scoped to a configured agent id.
// - Keep request/response types vendor-agnostic; raw payloads stay inside
//   the adapter.
type Provider interface {
	Name() string

	// CreateWebCall provisions a new browser call session for the agent.
	// The returned access token expires quickly (on the order of 30s) and
	// must be handed to the client transport promptly.
	CreateWebCall(ctx context.Context, agentID string) (WebCall, error)

	// ListCalls returns up to req.Limit of the vendor's most recent calls
	// for the agent, newest first, with per-call cost where available.
	ListCalls(ctx context.Context, req ListCallsRequest) ([]CallRecord, error)
}

// WebCall is a freshly provisioned call session.
type WebCall struct {
	// AccessToken authorizes the client transport to join the session.
	AccessToken string `json:"access_token"`

	// CallID is the vendor's unique identifier for this call.
	CallID string `json:"call_id"`
}

type ListCallsRequest struct {
	AgentID string `json:"agent_id"`

	// Limit caps how many recent calls the vendor returns.
	Limit int `json:"limit"`
}

// CallRecord is a vendor-agnostic view of one historical call.
type CallRecord struct {
	CallID string `json:"call_id"`

	// CombinedCostCents is the vendor's total cost for the call in minor
	// currency units. 0 when the vendor reported no cost.
	CombinedCostCents int64 `json:"combined_cost_cents"`
}

// SumCombinedCostCents totals the cost of the given records. Records without
// a reported cost contribute zero.
func SumCombinedCostCents(records []CallRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.CombinedCostCents
	}
	return total
}
