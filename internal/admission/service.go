package admission

import (
	"context"
	"fmt"
	"time"

	"voicegate/internal/auth"
	"voicegate/internal/botcheck"
	"voicegate/internal/calllog"
	"voicegate/internal/config"
	"voicegate/internal/voicevendor"
	"voicegate/pkg/logger"
)

// spendLookbackLimit bounds the spend check to the vendor's most recent
// calls; spend beyond this horizon is not counted. Point-in-time
// approximation, not reconciled against the local log.
const spendLookbackLimit = 1000

// Gate decides whether a call-start request is admitted.
//
// Checks run in order and short-circuit on first failure:
// identity, bot verification (when a verifier is configured), per-user daily
// quota, global spend ceiling (when configured), then provisioning.
//
// On success the gate appends one call_logs row; on any failure branch it
// writes nothing.
type Gate struct {
	logs     calllog.Repository
	verifier botcheck.Verifier // nil: bot check not enforced
	vendor   voicevendor.Provider
	quota    QuotaReserver // nil: best-effort count-then-insert only

	policy  config.CallsConfig
	agentID string

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewGate(
	logs calllog.Repository,
	verifier botcheck.Verifier,
	vendor voicevendor.Provider,
	quota QuotaReserver,
	policy config.CallsConfig,
	agentID string,
) *Gate {
	return &Gate{
		logs:     logs,
		verifier: verifier,
		vendor:   vendor,
		quota:    quota,
		policy:   policy,
		agentID:  agentID,
		clock:    time.Now,
	}
}

// Result is a successful admission.
//
// AccessToken is short-lived: the vendor may reject it unless the client
// transport activates it within roughly 30 seconds of issuance. The gate
// cannot enforce that window; callers must hand the token over promptly.
type Result struct {
	AccessToken string `json:"access_token"`
	CallID      string `json:"call_id"`
}

// StartCall runs the admission checks for one call-start request.
//
// The call log append after provisioning is best-effort: a failed insert is
// logged but the admitted call is still returned, because the session
// credential is already minted and billable. See DESIGN.md for the
// durability trade-off.
func (g *Gate) StartCall(ctx context.Context, id auth.Identity, botToken string) (Result, error) {
	log := logger.From(ctx)
	now := g.clock()

	// 1. Identity.
	if id.UserID == "" {
		return Result{}, ErrUnauthenticated
	}

	// 2. Bot verification, only when a verifier is configured.
	if g.verifier != nil {
		if botToken == "" {
			return Result{}, ErrTokenRequired
		}
		res, err := g.verifier.Verify(ctx, botToken)
		if err != nil {
			return Result{}, fmt.Errorf("bot verification: %w", err)
		}
		if !res.Human() {
			return Result{}, ErrBotCheckFailed
		}
	}

	// 3. Per-user daily quota. The count is the authoritative floor; the
	// optional reservation below closes the concurrent check-then-insert
	// race.
	count, err := g.logs.CountForUserSince(ctx, id.UserID, startOfDay(now))
	if err != nil {
		return Result{}, fmt.Errorf("quota count: %w", err)
	}
	if count >= g.policy.MaxCallsPerDay {
		return Result{}, ErrQuotaExceeded
	}

	reserved := false
	if g.quota != nil {
		ok, err := g.quota.Reserve(ctx, id.UserID, g.policy.MaxCallsPerDay, now)
		if err != nil {
			// Reservation is an optional hardening layer; degrade to the
			// best-effort count check rather than refusing calls.
			log.Warn("quota reservation unavailable", "user_id", id.UserID, "err", err)
		} else if !ok {
			return Result{}, ErrQuotaExceeded
		} else {
			reserved = true
		}
	}
	release := func() {
		if reserved {
			if err := g.quota.Release(ctx, id.UserID, now); err != nil {
				log.Warn("quota release failed", "user_id", id.UserID, "err", err)
			}
		}
	}

	// 4. Global spend ceiling. Fail-closed: a vendor outage here refuses
	// the admission.
	if g.policy.MaxSpendCents > 0 {
		records, err := g.vendor.ListCalls(ctx, voicevendor.ListCallsRequest{
			AgentID: g.agentID,
			Limit:   spendLookbackLimit,
		})
		if err != nil {
			release()
			return Result{}, fmt.Errorf("spend check: %w", err)
		}
		if voicevendor.SumCombinedCostCents(records) >= g.policy.MaxSpendCents {
			release()
			return Result{}, ErrSpendLimitReached
		}
	}

	// 5. Provision the call session.
	webCall, err := g.vendor.CreateWebCall(ctx, g.agentID)
	if err != nil {
		release()
		log.Error("web call provisioning failed", "user_id", id.UserID, "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}

	// 6. Log the admitted call. Best-effort; see method doc.
	entry := calllog.CallLog{
		UserID:       id.UserID,
		UserEmail:    id.Email,
		VendorCallID: webCall.CallID,
		Status:       calllog.StatusInitiated,
		StartedAt:    now,
	}
	if err := g.logs.Append(ctx, entry); err != nil {
		log.Error("call log append failed", "user_id", id.UserID, "call_id", webCall.CallID, "err", err)
	}

	return Result{AccessToken: webCall.AccessToken, CallID: webCall.CallID}, nil
}

// QuotaStatus reports today's usage for one user, for UI display. The gate
// re-checks on every StartCall regardless.
type QuotaStatus struct {
	Used      int `json:"used"`
	Max       int `json:"max"`
	Remaining int `json:"remaining"`
}

func (g *Gate) Quota(ctx context.Context, id auth.Identity) (QuotaStatus, error) {
	if id.UserID == "" {
		return QuotaStatus{}, ErrUnauthenticated
	}
	count, err := g.logs.CountForUserSince(ctx, id.UserID, startOfDay(g.clock()))
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("quota count: %w", err)
	}
	remaining := g.policy.MaxCallsPerDay - count
	if remaining < 0 {
		remaining = 0
	}
	return QuotaStatus{Used: count, Max: g.policy.MaxCallsPerDay, Remaining: remaining}, nil
}
