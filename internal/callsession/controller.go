package callsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"voicegate/pkg/logger"
)

// Transport is the narrow contract over the vendor's client-side voice
// channel. Start and Stop are asynchronous: state changes complete only when
// the corresponding lifecycle event arrives on Events.
type Transport interface {
	// Start activates a provisioned session. The access token expires
	// quickly after issuance, so call this promptly.
	Start(ctx context.Context, accessToken string) error

	// Stop requests termination. The session is only considered ended when
	// a call_ended (or error) event arrives.
	Stop(ctx context.Context) error

	// Events delivers lifecycle events. The channel is closed when the
	// transport shuts down.
	Events() <-chan Event
}

// TokenSource produces a bot-verification token for an action. nil when no
// site key is configured.
type TokenSource interface {
	Token(ctx context.Context, action string) (string, error)
}

// Gate is the server-side admission endpoint as seen by the client.
type Gate interface {
	StartCall(ctx context.Context, botToken string) (StartCallResult, error)
}

// StartCallResult mirrors the gate's success payload.
type StartCallResult struct {
	AccessToken string `json:"access_token"`
	CallID      string `json:"call_id"`
}

// tokenAction scopes verification tokens to the call-start action.
const tokenAction = "start_call"

var ErrNotIdle = errors.New("callsession: a call is already in progress")
var ErrQuotaExhausted = errors.New("callsession: daily call limit reached")

// Controller drives one call session's lifecycle. All externally visible
// state lives in a single Snapshot value guarded by a mutex; the transport
// event stream and the countdown ticker (owned by Run) are the only
// asynchronous inputs.
type Controller struct {
	transport Transport
	gate      Gate
	tokens    TokenSource

	mu   sync.Mutex
	snap Snapshot

	// stopRequested dedupes timeout-driven stop requests; the session
	// stays active until the terminal event arrives.
	stopRequested bool
}

// Options configures the controller's quota mirror and duration cap.
type Options struct {
	MaxCallsPerDay         int
	MaxCallDurationSeconds int

	// InitialUsed seeds the used-call mirror, typically from the quota
	// endpoint.
	InitialUsed int
}

func NewController(transport Transport, gate Gate, tokens TokenSource, opts Options) *Controller {
	return &Controller{
		transport: transport,
		gate:      gate,
		tokens:    tokens,
		snap: Snapshot{
			Status:             StatusIdle,
			Used:               opts.InitialUsed,
			Max:                opts.MaxCallsPerDay,
			RemainingSeconds:   opts.MaxCallDurationSeconds,
			MaxDurationSeconds: opts.MaxCallDurationSeconds,
		},
	}
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Start requests admission and activates the transport. On any failure the
// session returns to idle with the failure message recorded; the controller
// never stays in connecting without a pending transport outcome.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.snap.Status != StatusIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	if c.snap.QuotaExhausted() {
		c.mu.Unlock()
		return ErrQuotaExhausted
	}
	c.snap.Status = StatusConnecting
	c.snap.Err = ""
	c.stopRequested = false
	c.mu.Unlock()

	var botToken string
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx, tokenAction)
		if err != nil {
			c.failStart("verification unavailable, please retry")
			return err
		}
		botToken = tok
	}

	res, err := c.gate.StartCall(ctx, botToken)
	if err != nil {
		c.failStart(err.Error())
		return err
	}

	if err := c.transport.Start(ctx, res.AccessToken); err != nil {
		logger.From(ctx).Error("transport start failed", "call_id", res.CallID, "err", err)
		c.failStart(genericCallError)
		return err
	}
	return nil
}

func (c *Controller) failStart(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Status = StatusIdle
	c.snap.Err = msg
}

// Stop requests user-initiated termination. The transition to idle happens
// when the transport delivers its terminal event, not here.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.snap.Status != StatusActive {
		c.mu.Unlock()
		return
	}
	c.snap.Status = StatusEnding
	c.stopRequested = true
	c.mu.Unlock()

	if err := c.transport.Stop(ctx); err != nil {
		logger.From(ctx).Warn("transport stop failed", "err", err)
	}
}

// HandleEvent applies one transport event to the session state.
func (c *Controller) HandleEvent(ctx context.Context, ev Event) {
	if ev.Type == EventError && ev.Message != "" {
		logger.From(ctx).Error("transport error", "detail", ev.Message)
	}

	c.mu.Lock()
	c.snap = transition(c.snap, ev)
	if c.snap.Status == StatusIdle {
		c.stopRequested = false
	}
	c.mu.Unlock()
}

// tick advances the countdown by one second. When the cap is reached the
// controller requests a stop exactly once and stays active until the
// transport confirms termination.
func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	if c.snap.Status != StatusActive {
		c.mu.Unlock()
		return
	}
	if c.snap.RemainingSeconds > 0 {
		c.snap.RemainingSeconds--
	}
	requestStop := c.snap.RemainingSeconds == 0 && !c.stopRequested
	if requestStop {
		c.stopRequested = true
	}
	c.mu.Unlock()

	if requestStop {
		if err := c.transport.Stop(ctx); err != nil {
			logger.From(ctx).Warn("duration cap stop failed", "err", err)
		}
	}
}

// Run consumes transport events and drives the countdown until the event
// channel closes or ctx is canceled. The ticker lives and dies with Run, so
// no timer can outlive the session.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.transport.Events():
			if !ok {
				return nil
			}
			c.HandleEvent(ctx, ev)
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// Close tears the session down regardless of state: the transport is asked
// to stop so no live call is left dangling. Safe to call at any time.
func (c *Controller) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.transport.Stop(ctx); err != nil {
		logger.From(ctx).Warn("teardown stop failed", "err", err)
	}
}
