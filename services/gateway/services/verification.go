// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fincove/maya/services/gateway/datatypes"
)

// =============================================================================
// Active-session table
// =============================================================================

type sessionState struct {
	verified bool
}

// SessionTable is the active-session table: one entry per live connection,
// keyed by session id. Entries are created on first contact and removed on
// disconnect. Safe for concurrent use from independent session goroutines.
type SessionTable struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]*sessionState)}
}

// Touch creates the session entry if absent and reports whether it already
// existed (a resumed session keeps its verified flag).
func (t *SessionTable) Touch(sessionID string) (existed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[sessionID]; ok {
		return true
	}
	t.sessions[sessionID] = &sessionState{}
	return false
}

func (t *SessionTable) Contains(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[sessionID]
	return ok
}

func (t *SessionTable) IsVerified(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.sessions[sessionID]
	return ok && state.verified
}

// MarkVerified sets the verified flag. Idempotent; marking an unknown
// session is a no-op.
func (t *SessionTable) MarkVerified(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.sessions[sessionID]; ok {
		state.verified = true
	}
}

// Remove deletes the session entry on disconnect.
func (t *SessionTable) Remove(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

func (t *SessionTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// =============================================================================
// Verification gate
// =============================================================================

// Gate inspects inbound turns for the verification-complete control message
// and answers the gating question for sensitive intents.
type Gate struct {
	sessions *SessionTable
}

func NewGate(sessions *SessionTable) *Gate {
	return &Gate{sessions: sessions}
}

// ConsumeControl reports whether raw is a verification-complete control
// message. When it is, the session is marked verified (a duplicate is a
// no-op) and the turn is consumed: no classification, no answer, no log
// entry. Malformed JSON and any other message shape are left for the
// dispatcher as ordinary query text.
func (g *Gate) ConsumeControl(sessionID string, raw []byte) bool {
	msg, ok := datatypes.ParseControlMessage(raw)
	if !ok || msg.Type != datatypes.ControlVerificationComplete {
		return false
	}
	if g.sessions.IsVerified(sessionID) {
		slog.Debug("Duplicate verification_complete, acknowledging again",
			"sessionID", sessionID)
		return true
	}
	g.sessions.MarkVerified(sessionID)
	slog.Info("Session verified via control message", "sessionID", sessionID)
	return true
}

// RequiresVerification reports whether a classified intent is gated: true
// iff the intent is non-empty and the session is not yet verified.
func (g *Gate) RequiresVerification(sessionID, intent string) bool {
	return intent != "" && !g.sessions.IsVerified(sessionID)
}

// =============================================================================
// OTP provider
// =============================================================================

// OTPProvider sends and checks one-time verification codes.
type OTPProvider interface {
	Send(ctx context.Context, phone string) error
	Check(ctx context.Context, phone, code string) (bool, error)
}

// NormalizePhone strips separators and coerces bare Indian numbers into
// E.164 (+91) form.
func NormalizePhone(raw string) string {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(raw)
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	if strings.HasPrefix(phone, "91") && len(phone) > 10 {
		return "+" + phone
	}
	return "+91" + phone
}

// TwilioVerify implements OTPProvider against the Twilio Verify v2 REST API.
type TwilioVerify struct {
	accountSID string
	authToken  string
	verifySID  string
	httpClient *http.Client
	baseURL    string
}

var _ OTPProvider = (*TwilioVerify)(nil)

const twilioDefaultBaseURL = "https://verify.twilio.com/v2"

func NewTwilioVerify() (*TwilioVerify, error) {
	accountSID := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	verifySID := os.Getenv("TWILIO_VERIFY_SID")
	if accountSID == "" || authToken == "" || verifySID == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_VERIFY_SID must be set")
	}
	baseURL := twilioDefaultBaseURL
	if base := os.Getenv("TWILIO_BASE_URL"); base != "" {
		baseURL = strings.TrimSuffix(base, "/")
	}
	return &TwilioVerify{
		accountSID: accountSID,
		authToken:  authToken,
		verifySID:  verifySID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}, nil
}

// NewTwilioVerifyWithClient is used by tests to point the provider at a stub
// server.
func NewTwilioVerifyWithClient(verifySID, baseURL string, client *http.Client) *TwilioVerify {
	if client == nil {
		client = &http.Client{}
	}
	return &TwilioVerify{
		accountSID: "test",
		authToken:  "test",
		verifySID:  verifySID,
		httpClient: client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type twilioVerificationResponse struct {
	Status string `json:"status"`
}

func (t *TwilioVerify) post(ctx context.Context, endpoint string,
	form url.Values) (*twilioVerificationResponse, error) {

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create the Twilio request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("Twilio returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var verification twilioVerificationResponse
	if err := json.Unmarshal(bodyBytes, &verification); err != nil {
		return nil, fmt.Errorf("failed to parse the Twilio response: %w", err)
	}
	return &verification, nil
}

// Send starts an SMS verification for the phone number.
func (t *TwilioVerify) Send(ctx context.Context, phone string) error {
	endpoint := fmt.Sprintf("%s/Services/%s/Verifications", t.baseURL, t.verifySID)
	form := url.Values{}
	form.Set("To", NormalizePhone(phone))
	form.Set("Channel", "sms")

	verification, err := t.post(ctx, endpoint, form)
	if err != nil {
		return err
	}
	if verification.Status != "pending" {
		return fmt.Errorf("unexpected verification status %q", verification.Status)
	}
	slog.Info("Sent OTP", "status", verification.Status)
	return nil
}

// Check validates a code the user received. approved=false with a nil error
// means the code was simply wrong.
func (t *TwilioVerify) Check(ctx context.Context, phone, code string) (bool, error) {
	endpoint := fmt.Sprintf("%s/Services/%s/VerificationCheck", t.baseURL, t.verifySID)
	form := url.Values{}
	form.Set("To", NormalizePhone(phone))
	form.Set("Code", code)

	verification, err := t.post(ctx, endpoint, form)
	if err != nil {
		return false, err
	}
	return verification.Status == "approved", nil
}
