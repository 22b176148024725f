// Copyright (C) 2025 FinCove Pvt. Ltd.
// Tests for the dispatch engine's routing order and failure degradation

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincove/maya/services/gateway/datatypes"
)

type stubClassifier struct {
	domain      string
	domainErr   error
	intent      string
	intentErr   error
	intentCalls int
}

func (s *stubClassifier) ClassifyDomain(ctx context.Context, query string) (string, error) {
	return s.domain, s.domainErr
}

func (s *stubClassifier) ClassifyIntent(ctx context.Context, query, domain string) (string, error) {
	s.intentCalls++
	return s.intent, s.intentErr
}

type stubAnswers struct {
	answer string
	err    error
	calls  int
}

func (s *stubAnswers) Answer(ctx context.Context, sessionID, query, domain string) (string, error) {
	s.calls++
	return s.answer, s.err
}

var testIntents = datatypes.IntentTable{
	"banking": {
		"check_balance": "Check your balance in the app.",
		"branch_hours":  "Branches open at 9:30 AM.",
	},
	"loan":       {},
	"investment": {},
	"insurance":  {},
	"tax":        {},
}

func newTestDispatcher(classifier DomainClassifier, answers AnswerGenerator) (*Dispatcher, *SessionTable) {
	table := NewSessionTable()
	table.Touch("s1")
	gate := NewGate(table)
	return NewDispatcher(classifier, answers, testIntents, gate, "banking"), table
}

func TestDispatcher_GeneratedAnswer(t *testing.T) {
	answers := &stubAnswers{answer: "Generated answer."}
	d, _ := newTestDispatcher(&stubClassifier{domain: "loan"}, answers)

	out := d.Route(context.Background(), "s1", "tell me about loans")
	assert.Equal(t, OutcomeGenerated, out.Kind)
	assert.Equal(t, "loan", out.Domain)
	assert.Empty(t, out.Intent)
	assert.Equal(t, "Generated answer.", out.Text)
}

func TestDispatcher_DomainFallsBackToBanking(t *testing.T) {
	answers := &stubAnswers{answer: "Generated answer."}
	// The stub would return an intent, but the engine must never ask for one
	// when the domain is unclassified.
	classifier := &stubClassifier{domain: "", intent: "check_balance"}
	d, _ := newTestDispatcher(classifier, answers)

	out := d.Route(context.Background(), "s1", "something vague")
	assert.Equal(t, "banking", out.Domain)
	assert.Equal(t, OutcomeGenerated, out.Kind)
	assert.Empty(t, out.Intent)
	assert.Zero(t, classifier.intentCalls)
	assert.Equal(t, 1, answers.calls)
}

func TestDispatcher_CannedAnswerIsVerbatim(t *testing.T) {
	answers := &stubAnswers{}
	d, table := newTestDispatcher(
		&stubClassifier{domain: "banking", intent: "branch_hours"}, answers)
	table.MarkVerified("s1")

	out := d.Route(context.Background(), "s1", "when do branches open")
	assert.Equal(t, OutcomeCanned, out.Kind)
	assert.Equal(t, "Branches open at 9:30 AM.", out.Text)
	// Retrieval never runs for a canned hit.
	assert.Zero(t, answers.calls)
}

func TestDispatcher_GateBeforeAnyAnswer(t *testing.T) {
	answers := &stubAnswers{answer: "should never be spoken"}
	d, _ := newTestDispatcher(
		&stubClassifier{domain: "banking", intent: "check_balance"}, answers)

	out := d.Route(context.Background(), "s1", "what is my balance")
	assert.Equal(t, OutcomeAuthRequired, out.Kind)
	assert.Equal(t, "check_balance", out.Intent)
	assert.Empty(t, out.Text)
	// Neither canned lookup output nor generation reaches the caller.
	assert.Zero(t, answers.calls)
}

func TestDispatcher_VerifiedSessionPassesGate(t *testing.T) {
	answers := &stubAnswers{}
	d, table := newTestDispatcher(
		&stubClassifier{domain: "banking", intent: "check_balance"}, answers)
	table.MarkVerified("s1")

	out := d.Route(context.Background(), "s1", "what is my balance")
	assert.Equal(t, OutcomeCanned, out.Kind)
	assert.Equal(t, "Check your balance in the app.", out.Text)
}

func TestDispatcher_UncataloguedIntentStillGates(t *testing.T) {
	// An intent with no canned entry is still a confident classification:
	// an unverified session must be gated, not answered from retrieval.
	answers := &stubAnswers{answer: "should never be spoken"}
	d, _ := newTestDispatcher(
		&stubClassifier{domain: "banking", intent: "transfer_funds"}, answers)

	out := d.Route(context.Background(), "s1", "send money to my landlord")
	assert.Equal(t, OutcomeAuthRequired, out.Kind)
	assert.Equal(t, "transfer_funds", out.Intent)
	assert.Zero(t, answers.calls)
}

func TestDispatcher_IntentWithoutCannedEntryGenerates(t *testing.T) {
	answers := &stubAnswers{answer: "Generated."}
	d, table := newTestDispatcher(
		&stubClassifier{domain: "banking", intent: "something_uncatalogued"}, answers)
	table.MarkVerified("s1")

	out := d.Route(context.Background(), "s1", "an oddly specific question")
	assert.Equal(t, OutcomeGenerated, out.Kind)
	assert.Equal(t, 1, answers.calls)
}

func TestDispatcher_CollaboratorFailuresDegrade(t *testing.T) {
	t.Run("domain classifier error", func(t *testing.T) {
		d, _ := newTestDispatcher(
			&stubClassifier{domainErr: errors.New("llm down")}, &stubAnswers{})
		out := d.Route(context.Background(), "s1", "hi")
		assert.Equal(t, OutcomeGenerated, out.Kind)
		assert.Equal(t, FallbackAnswer, out.Text)
	})

	t.Run("intent classifier error", func(t *testing.T) {
		d, _ := newTestDispatcher(
			&stubClassifier{domain: "banking", intentErr: errors.New("llm down")},
			&stubAnswers{})
		out := d.Route(context.Background(), "s1", "hi")
		assert.Equal(t, FallbackAnswer, out.Text)
	})

	t.Run("retrieval error", func(t *testing.T) {
		d, _ := newTestDispatcher(
			&stubClassifier{domain: "banking"},
			&stubAnswers{err: errors.New("weaviate down")})
		out := d.Route(context.Background(), "s1", "hi")
		require.Equal(t, OutcomeGenerated, out.Kind)
		assert.Equal(t, "banking", out.Domain)
		assert.Equal(t, FallbackAnswer, out.Text)
	})
}
