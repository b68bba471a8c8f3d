package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicegate/internal/callsession"
	"voicegate/pkg/logger"
)

// staticTokenSource supplies a pre-acquired verification token. Browser
// clients mint these per action; the CLI takes one on the command line.
type staticTokenSource struct{ token string }

func (s staticTokenSource) Token(context.Context, string) (string, error) {
	return s.token, nil
}

func main() {
	server := flag.String("server", "http://localhost:8080", "API server base URL")
	wsURL := flag.String("ws", "", "vendor voice websocket endpoint")
	user := flag.String("user", "", "demo user id")
	email := flag.String("email", "", "demo user email")
	botToken := flag.String("verification-token", "", "bot verification token, when the server enforces it")
	duration := flag.Int("duration", 0, "per-call duration cap in seconds (0 = server setting)")
	flag.Parse()

	log := logger.New("local")
	slog.SetDefault(log)

	if *wsURL == "" || *user == "" || *email == "" {
		fmt.Fprintln(os.Stderr, "usage: callctl -ws <url> -user <id> -email <addr> [-server <url>]")
		os.Exit(2)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	jwt, err := login(ctx, *server, *user, *email)
	if err != nil {
		log.Error("login failed", "err", err)
		os.Exit(1)
	}

	client := callsession.NewClient(*server, jwt)

	clientCfg, err := client.Config(ctx)
	if err != nil {
		log.Error("config lookup failed", "err", err)
		os.Exit(1)
	}
	if clientCfg.VerificationRequired && *botToken == "" {
		log.Error("server enforces bot verification; mint a token for the site key and pass -verification-token",
			"site_key", clientCfg.VerifierSiteKey)
		os.Exit(2)
	}

	quota, err := client.Quota(ctx)
	if err != nil {
		log.Error("quota lookup failed", "err", err)
		os.Exit(1)
	}
	log.Info("daily usage", "used", quota.Used, "max", quota.Max)

	var tokens callsession.TokenSource
	if *botToken != "" {
		tokens = staticTokenSource{token: *botToken}
	}

	maxDuration := *duration
	if maxDuration <= 0 {
		maxDuration = clientCfg.MaxCallDurationSeconds
	}

	transport := callsession.NewWSTransport(*wsURL)
	ctrl := callsession.NewController(transport, client, tokens, callsession.Options{
		MaxCallsPerDay:         quota.Max,
		MaxCallDurationSeconds: maxDuration,
		InitialUsed:            quota.Used,
	})

	if err := ctrl.Start(ctx); err != nil {
		log.Error("call start refused", "err", err)
		os.Exit(1)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- ctrl.Run(ctx) }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sawActive := false
	for {
		select {
		case err := <-runDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("session loop failed", "err", err)
			}
			report(ctrl.Snapshot())
			return
		case <-ctx.Done():
			// Give the transport a chance to end the call cleanly before
			// tearing down.
			ctrl.Stop(context.Background())
			select {
			case <-runDone:
			case <-time.After(5 * time.Second):
				ctrl.Close()
			}
			report(ctrl.Snapshot())
			return
		case <-ticker.C:
			snap := ctrl.Snapshot()
			switch snap.Status {
			case callsession.StatusActive:
				sawActive = true
				fmt.Printf("\rin call  %s  agent talking: %v   ", snap.FormatRemaining(), snap.Talking)
			case callsession.StatusIdle:
				if sawActive || snap.Err != "" {
					report(snap)
					return
				}
			}
		}
	}
}

func report(snap callsession.Snapshot) {
	fmt.Println()
	if snap.Err != "" {
		fmt.Printf("call ended with error: %s\n", snap.Err)
	} else {
		fmt.Println("call ended")
	}
	fmt.Printf("calls used today: %d/%d\n", snap.Used, snap.Max)
}

func login(ctx context.Context, server, userID, email string) (string, error) {
	payload, err := json.Marshal(map[string]string{"user_id": userID, "email": email})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/v1/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("login response missing access token")
	}
	return out.AccessToken, nil
}
