package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicegate/internal/auth"
	"voicegate/internal/botcheck"
	"voicegate/internal/calllog"
	"voicegate/internal/config"
	"voicegate/internal/voicevendor"
)

type fakeLogs struct {
	count    int
	countErr error

	appended  []calllog.CallLog
	appendErr error
}

func (f *fakeLogs) Append(_ context.Context, e calllog.CallLog) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeLogs) CountForUserSince(_ context.Context, _ string, _ time.Time) (int, error) {
	return f.count, f.countErr
}

type fakeVerifier struct {
	res    botcheck.Result
	err    error
	called int
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (botcheck.Result, error) {
	f.called++
	return f.res, f.err
}

type fakeVendor struct {
	webCall   voicevendor.WebCall
	createErr error
	created   int

	records []voicevendor.CallRecord
	listErr error
	listed  int
}

func (f *fakeVendor) Name() string { return "fake" }

func (f *fakeVendor) CreateWebCall(_ context.Context, _ string) (voicevendor.WebCall, error) {
	f.created++
	if f.createErr != nil {
		return voicevendor.WebCall{}, f.createErr
	}
	return f.webCall, nil
}

func (f *fakeVendor) ListCalls(_ context.Context, _ voicevendor.ListCallsRequest) ([]voicevendor.CallRecord, error) {
	f.listed++
	return f.records, f.listErr
}

type fakeReserver struct {
	allow      bool
	reserveErr error
	reserved   int
	released   int
}

func (f *fakeReserver) Reserve(_ context.Context, _ string, _ int, _ time.Time) (bool, error) {
	f.reserved++
	return f.allow, f.reserveErr
}

func (f *fakeReserver) Release(_ context.Context, _ string, _ time.Time) error {
	f.released++
	return nil
}

var testClock = func() time.Time {
	return time.Date(2026, time.March, 14, 15, 4, 5, 0, time.UTC)
}

func newTestGate(logs *fakeLogs, verifier botcheck.Verifier, vendor *fakeVendor, quota QuotaReserver, policy config.CallsConfig) *Gate {
	g := NewGate(logs, verifier, vendor, quota, policy, "agent-1")
	g.clock = testClock
	return g
}

func defaultPolicy() config.CallsConfig {
	return config.CallsConfig{MaxCallsPerDay: 5, MaxCallDurationSeconds: 120}
}

func identity() auth.Identity {
	return auth.Identity{UserID: "user-1", Email: "user@example.com"}
}

func TestStartCall_UnauthenticatedWritesNothing(t *testing.T) {
	logs := &fakeLogs{}
	vendor := &fakeVendor{}
	g := newTestGate(logs, nil, vendor, nil, defaultPolicy())

	_, err := g.StartCall(context.Background(), auth.Identity{}, "")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if len(logs.appended) != 0 || vendor.created != 0 {
		t.Fatalf("failure branch must not write or provision")
	}
}

func TestStartCall_TokenRequiredBeforeVerifierCall(t *testing.T) {
	verifier := &fakeVerifier{}
	g := newTestGate(&fakeLogs{}, verifier, &fakeVendor{}, nil, defaultPolicy())

	_, err := g.StartCall(context.Background(), identity(), "")
	if !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
	if verifier.called != 0 {
		t.Fatalf("verifier must not be called without a token")
	}
}

func TestStartCall_LowScoreFailsBotCheck(t *testing.T) {
	verifier := &fakeVerifier{res: botcheck.Result{Success: true, Score: 0.3}}
	logs := &fakeLogs{}
	g := newTestGate(logs, verifier, &fakeVendor{}, nil, defaultPolicy())

	_, err := g.StartCall(context.Background(), identity(), "tok")
	if !errors.Is(err, ErrBotCheckFailed) {
		t.Fatalf("expected ErrBotCheckFailed, got %v", err)
	}
	if len(logs.appended) != 0 {
		t.Fatalf("no log writes on bot check failure")
	}
}

func TestStartCall_UnsuccessfulVerificationFailsBotCheck(t *testing.T) {
	verifier := &fakeVerifier{res: botcheck.Result{Success: false, Score: 0.9}}
	g := newTestGate(&fakeLogs{}, verifier, &fakeVendor{}, nil, defaultPolicy())

	if _, err := g.StartCall(context.Background(), identity(), "tok"); !errors.Is(err, ErrBotCheckFailed) {
		t.Fatalf("expected ErrBotCheckFailed, got %v", err)
	}
}

func TestStartCall_QuotaExceededAtCap(t *testing.T) {
	logs := &fakeLogs{count: 5}
	vendor := &fakeVendor{}
	g := newTestGate(logs, nil, vendor, nil, defaultPolicy())

	_, err := g.StartCall(context.Background(), identity(), "")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(logs.appended) != 0 || vendor.created != 0 {
		t.Fatalf("no writes or provisioning past the cap")
	}
}

func TestStartCall_AdmitsUnderCapAndAppendsOneRow(t *testing.T) {
	logs := &fakeLogs{count: 4}
	vendor := &fakeVendor{webCall: voicevendor.WebCall{AccessToken: "tok-abc", CallID: "call-9"}}
	g := newTestGate(logs, nil, vendor, nil, defaultPolicy())

	res, err := g.StartCall(context.Background(), identity(), "")
	if err != nil {
		t.Fatalf("start call: %v", err)
	}
	if res.AccessToken != "tok-abc" || res.CallID != "call-9" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(logs.appended) != 1 {
		t.Fatalf("expected exactly one appended row, got %d", len(logs.appended))
	}
	row := logs.appended[0]
	if row.Status != calllog.StatusInitiated {
		t.Fatalf("expected initiated status, got %q", row.Status)
	}
	if row.UserID != "user-1" || row.UserEmail != "user@example.com" || row.VendorCallID != "call-9" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if !row.StartedAt.Equal(testClock()) {
		t.Fatalf("expected clock timestamp, got %v", row.StartedAt)
	}
}

func TestStartCall_SpendLimitRefusesBeforeProvisioning(t *testing.T) {
	logs := &fakeLogs{}
	vendor := &fakeVendor{records: []voicevendor.CallRecord{
		{CallID: "a", CombinedCostCents: 700},
		{CallID: "b", CombinedCostCents: 500},
	}}
	policy := defaultPolicy()
	policy.MaxSpendCents = 1000 // $10 ceiling, vendor sum is 1200 cents
	g := newTestGate(logs, nil, vendor, nil, policy)

	_, err := g.StartCall(context.Background(), identity(), "")
	if !errors.Is(err, ErrSpendLimitReached) {
		t.Fatalf("expected ErrSpendLimitReached, got %v", err)
	}
	if vendor.created != 0 || len(logs.appended) != 0 {
		t.Fatalf("no session or log write when spend ceiling is hit")
	}
}

func TestStartCall_SpendAtExactCeilingRefuses(t *testing.T) {
	vendor := &fakeVendor{records: []voicevendor.CallRecord{{CallID: "a", CombinedCostCents: 1000}}}
	policy := defaultPolicy()
	policy.MaxSpendCents = 1000
	g := newTestGate(&fakeLogs{}, nil, vendor, nil, policy)

	if _, err := g.StartCall(context.Background(), identity(), ""); !errors.Is(err, ErrSpendLimitReached) {
		t.Fatalf("expected ErrSpendLimitReached at exact ceiling, got %v", err)
	}
}

func TestStartCall_SpendCheckFailClosed(t *testing.T) {
	vendor := &fakeVendor{listErr: errors.New("vendor down")}
	policy := defaultPolicy()
	policy.MaxSpendCents = 1000
	g := newTestGate(&fakeLogs{}, nil, vendor, nil, policy)

	_, err := g.StartCall(context.Background(), identity(), "")
	if err == nil {
		t.Fatalf("expected error when vendor listing fails")
	}
	if vendor.created != 0 {
		t.Fatalf("must not provision when the spend check cannot run")
	}
}

func TestStartCall_SpendCheckSkippedWhenDisabled(t *testing.T) {
	vendor := &fakeVendor{webCall: voicevendor.WebCall{AccessToken: "t", CallID: "c"}}
	g := newTestGate(&fakeLogs{}, nil, vendor, nil, defaultPolicy())

	if _, err := g.StartCall(context.Background(), identity(), ""); err != nil {
		t.Fatalf("start call: %v", err)
	}
	if vendor.listed != 0 {
		t.Fatalf("spend check must be skipped when ceiling is 0")
	}
}

func TestStartCall_ReservationRejectionIsQuotaExceeded(t *testing.T) {
	reserver := &fakeReserver{allow: false}
	vendor := &fakeVendor{}
	g := newTestGate(&fakeLogs{count: 2}, nil, vendor, reserver, defaultPolicy())

	_, err := g.StartCall(context.Background(), identity(), "")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if vendor.created != 0 {
		t.Fatalf("rejected reservation must not provision")
	}
}

func TestStartCall_ReservationReleasedOnProvisioningFailure(t *testing.T) {
	reserver := &fakeReserver{allow: true}
	vendor := &fakeVendor{createErr: errors.New("boom")}
	g := newTestGate(&fakeLogs{}, nil, vendor, reserver, defaultPolicy())

	_, err := g.StartCall(context.Background(), identity(), "")
	if !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("expected ErrProvisioningFailed, got %v", err)
	}
	if reserver.released != 1 {
		t.Fatalf("expected reservation released once, got %d", reserver.released)
	}
}

func TestStartCall_ReserverErrorDegradesToCountCheck(t *testing.T) {
	reserver := &fakeReserver{reserveErr: errors.New("redis down")}
	vendor := &fakeVendor{webCall: voicevendor.WebCall{AccessToken: "t", CallID: "c"}}
	g := newTestGate(&fakeLogs{count: 1}, nil, vendor, reserver, defaultPolicy())

	if _, err := g.StartCall(context.Background(), identity(), ""); err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if reserver.released != 0 {
		t.Fatalf("nothing to release when reservation was not taken")
	}
}

func TestStartCall_AppendFailureStillReturnsCall(t *testing.T) {
	logs := &fakeLogs{appendErr: errors.New("insert failed")}
	vendor := &fakeVendor{webCall: voicevendor.WebCall{AccessToken: "tok", CallID: "call-1"}}
	g := newTestGate(logs, nil, vendor, nil, defaultPolicy())

	res, err := g.StartCall(context.Background(), identity(), "")
	if err != nil {
		t.Fatalf("admitted call must survive a log failure, got %v", err)
	}
	if res.AccessToken != "tok" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestQuota_ReportsUsage(t *testing.T) {
	g := newTestGate(&fakeLogs{count: 3}, nil, &fakeVendor{}, nil, defaultPolicy())

	q, err := g.Quota(context.Background(), identity())
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if q.Used != 3 || q.Max != 5 || q.Remaining != 2 {
		t.Fatalf("unexpected quota: %+v", q)
	}
}

func TestQuota_RemainingNeverNegative(t *testing.T) {
	g := newTestGate(&fakeLogs{count: 7}, nil, &fakeVendor{}, nil, defaultPolicy())

	q, err := g.Quota(context.Background(), identity())
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if q.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", q.Remaining)
	}
}

func TestStartOfDay_LocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2026, time.March, 14, 23, 59, 0, 0, loc)
	got := startOfDay(now)
	want := time.Date(2026, time.March, 14, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("startOfDay = %v, want %v", got, want)
	}
}
