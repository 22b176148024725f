// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fincove/maya/services/gateway/datatypes"
)

var dispatchTracer = otel.Tracer("maya.gateway.services.dispatch")

// OutcomeKind identifies which branch a routed turn took.
type OutcomeKind string

const (
	// OutcomeAuthRequired means the turn matched a sensitive intent on an
	// unverified session and was not answered.
	OutcomeAuthRequired OutcomeKind = "auth_required"
	// OutcomeCanned means the answer came verbatim from the intent table.
	OutcomeCanned OutcomeKind = "canned"
	// OutcomeGenerated means the answer came from retrieval-backed
	// generation, or is the fixed fallback after a collaborator failure.
	OutcomeGenerated OutcomeKind = "generated"
)

// Outcome is the result of routing one user turn.
type Outcome struct {
	Kind   OutcomeKind
	Domain string
	Intent string
	Text   string
}

// FallbackAnswer is returned whenever a collaborator fails mid-turn. The
// caller always gets a speakable answer, never an error.
const FallbackAnswer = "I apologize, but I encountered an error processing " +
	"your request. Please try again."

// Dispatcher routes a user turn: classify the domain and intent, gate
// sensitive intents on verification, serve canned answers from the intent
// table, and fall through to retrieval-backed generation for everything else.
type Dispatcher struct {
	classifier    DomainClassifier
	answers       AnswerGenerator
	intents       datatypes.IntentTable
	gate          *Gate
	defaultDomain string
}

func NewDispatcher(classifier DomainClassifier, answers AnswerGenerator,
	intents datatypes.IntentTable, gate *Gate, defaultDomain string) *Dispatcher {

	if defaultDomain == "" {
		defaultDomain = datatypes.DefaultDomain
	}
	return &Dispatcher{
		classifier:    classifier,
		answers:       answers,
		intents:       intents,
		gate:          gate,
		defaultDomain: defaultDomain,
	}
}

// Route processes one turn for the given session. It never returns an
// error: any collaborator failure degrades to the fixed fallback answer so
// the caller can always speak something back.
func (d *Dispatcher) Route(ctx context.Context, sessionID, query string) Outcome {
	ctx, span := dispatchTracer.Start(ctx, "Dispatcher.Route")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	domain, err := d.classifier.ClassifyDomain(ctx, query)
	if err != nil {
		slog.Error("Domain classification failed", "sessionID", sessionID, "error", err)
		return d.fallback(span)
	}
	// Intent classification needs a resolved domain. An unclassified query
	// keeps an empty intent and answers from the default knowledge base.
	var intent string
	if domain == "" {
		domain = d.defaultDomain
	} else {
		intent, err = d.classifier.ClassifyIntent(ctx, query, domain)
		if err != nil {
			slog.Error("Intent classification failed", "sessionID", sessionID,
				"domain", domain, "error", err)
			return d.fallback(span)
		}
	}
	span.SetAttributes(
		attribute.String("dispatch.domain", domain),
		attribute.String("dispatch.intent", intent),
	)

	// The verification gate is checked before any answer path, so a
	// sensitive intent never leaks a canned or generated answer to an
	// unverified caller.
	if d.gate.RequiresVerification(sessionID, intent) {
		slog.Info("Turn requires verification", "sessionID", sessionID,
			"domain", domain, "intent", intent)
		span.SetAttributes(attribute.String("dispatch.outcome", string(OutcomeAuthRequired)))
		return Outcome{Kind: OutcomeAuthRequired, Domain: domain, Intent: intent}
	}

	if intent != "" {
		if answer, ok := d.intents.Lookup(domain, intent); ok {
			span.SetAttributes(attribute.String("dispatch.outcome", string(OutcomeCanned)))
			return Outcome{Kind: OutcomeCanned, Domain: domain, Intent: intent, Text: answer}
		}
	}

	answer, err := d.answers.Answer(ctx, sessionID, query, domain)
	if err != nil {
		slog.Error("Answer generation failed", "sessionID", sessionID,
			"domain", domain, "error", err)
		return Outcome{Kind: OutcomeGenerated, Domain: domain, Intent: intent,
			Text: FallbackAnswer}
	}
	span.SetAttributes(attribute.String("dispatch.outcome", string(OutcomeGenerated)))
	return Outcome{Kind: OutcomeGenerated, Domain: domain, Intent: intent, Text: answer}
}

func (d *Dispatcher) fallback(span trace.Span) Outcome {
	span.SetAttributes(attribute.String("dispatch.outcome", "fallback"))
	return Outcome{Kind: OutcomeGenerated, Domain: d.defaultDomain, Text: FallbackAnswer}
}
