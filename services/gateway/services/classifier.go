// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fincove/maya/services/gateway/datatypes"
	"github.com/fincove/maya/services/llm"
)

var classifierTracer = otel.Tracer("maya.gateway.services.classifier")

// DomainClassifier labels a raw user turn with a domain and, once a domain
// is known, an intent scoped to that domain. Empty string means "no
// confident classification".
type DomainClassifier interface {
	ClassifyDomain(ctx context.Context, query string) (string, error)
	ClassifyIntent(ctx context.Context, query, domain string) (string, error)
}

// Classifier implements DomainClassifier with single-shot LLM calls.
type Classifier struct {
	llmClient llm.LLMClient
	intents   datatypes.IntentTable
}

var _ DomainClassifier = (*Classifier)(nil)

func NewClassifier(llmClient llm.LLMClient, intents datatypes.IntentTable) *Classifier {
	return &Classifier{llmClient: llmClient, intents: intents}
}

const domainClassifierPrompt = "You are a domain classifier for financial queries. " +
	"Classify the user query into the single most relevant domain from: " +
	"banking, loan, investment, insurance, tax. Respond only with the domain name."

// ClassifyDomain returns one of the closed domain set, or "" when the model
// answers with anything outside it.
func (c *Classifier) ClassifyDomain(ctx context.Context, query string) (string, error) {
	ctx, span := classifierTracer.Start(ctx, "Classifier.ClassifyDomain")
	defer span.End()

	temp := float32(0.2)
	maxTokens := 10
	params := llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}

	messages := []datatypes.Message{
		{Role: "system", Content: domainClassifierPrompt},
		{Role: "user", Content: query},
	}
	answer, err := c.llmClient.Chat(ctx, messages, params)
	if err != nil {
		return "", fmt.Errorf("domain classification failed: %w", err)
	}

	domain := strings.ToLower(strings.TrimSpace(answer))
	if !datatypes.IsDomain(domain) {
		slog.Debug("Domain classifier gave no confident label", "raw", answer)
		return "", nil
	}
	span.SetAttributes(attribute.String("classify.domain", domain))
	return domain, nil
}

// ClassifyIntent returns the model's intent label, or "" when the model
// answers "unknown". The label is deliberately not checked against the
// intent table here: a confident label must reach the verification gate
// even when no canned answer exists for it, so the table lookup happens
// downstream and a miss falls through to retrieval. It is never called
// without a resolved domain; an empty domain short-circuits to "" by
// construction.
func (c *Classifier) ClassifyIntent(ctx context.Context, query, domain string) (string, error) {
	if domain == "" {
		return "", nil
	}

	ctx, span := classifierTracer.Start(ctx, "Classifier.ClassifyIntent")
	defer span.End()
	span.SetAttributes(attribute.String("classify.domain", domain))

	names := c.intents.IntentNames(domain)
	prompt := fmt.Sprintf("You are a strict intent classifier for the %s domain.\n"+
		"Available intents: %s\n"+
		"Classify the user query into exactly one of the above intents, but only "+
		"when the query clearly and unambiguously matches the intent's meaning. "+
		"If the query is vague, general, or asks for a definition, respond with the "+
		"word: unknown. Do not guess. Respond with a single intent name or unknown.",
		domain, strings.Join(names, ", "))

	temp := float32(0.2)
	maxTokens := 15
	params := llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}

	messages := []datatypes.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: query},
	}
	answer, err := c.llmClient.Chat(ctx, messages, params)
	if err != nil {
		return "", fmt.Errorf("intent classification failed: %w", err)
	}

	intent := strings.ToLower(strings.TrimSpace(answer))
	if intent == "unknown" || intent == "" {
		return "", nil
	}
	span.SetAttributes(attribute.String("classify.intent", intent))
	return intent, nil
}
