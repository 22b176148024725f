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
	"sync"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/fincove/maya/services/gateway/datatypes"
	"github.com/fincove/maya/services/llm"
)

var (
	sessionTitleMaxTokens   = 50
	sessionTitleTemperature = float32(0.2)
)

// Conversation log entries carry IST timestamps.
var istZone = time.FixedZone("IST", 5*3600+30*60)

// DurableStore persists a completed session document. A persistence failure
// is reported but never blocks session cleanup.
type DurableStore interface {
	SaveSession(ctx context.Context, doc *datatypes.SessionDocument) error
}

// WeaviateStore is the production DurableStore backed by the VoiceSession and
// VoiceTurn classes.
type WeaviateStore struct {
	client *weaviate.Client
}

var _ DurableStore = (*WeaviateStore)(nil)

func NewWeaviateStore(client *weaviate.Client) *WeaviateStore {
	return &WeaviateStore{client: client}
}

func (s *WeaviateStore) SaveSession(ctx context.Context, doc *datatypes.SessionDocument) error {
	return doc.Save(ctx, s.client)
}

// ConversationLog is the append-only per-session record of completed turns.
// Flush builds the durable document, persists it best-effort, and always
// clears the in-memory log and session memory as its last step.
type ConversationLog struct {
	mu      sync.Mutex
	entries map[string][]datatypes.TurnEntry

	store    DurableStore
	memory   *MemoryStore
	titleLLM llm.LLMClient
	now      func() time.Time
}

func NewConversationLog(store DurableStore, memory *MemoryStore) *ConversationLog {
	return &ConversationLog{
		entries: make(map[string][]datatypes.TurnEntry),
		store:   store,
		memory:  memory,
		now:     time.Now,
	}
}

// SetTitleLLM enables short generated titles on flushed documents. Without
// it, documents carry the fallback title only.
func (l *ConversationLog) SetTitleLLM(client llm.LLMClient) {
	l.titleLLM = client
}

// sessionTitle names the flushed document after its first turn. Generation
// is best effort: any LLM failure falls back to a truncated first query.
func (l *ConversationLog) sessionTitle(ctx context.Context, sessionID string, first datatypes.TurnEntry) string {
	fallback := fmt.Sprintf("Chat: %s", first.Query)
	if len(fallback) > 100 {
		fallback = fallback[:100] + "..."
	}
	if l.titleLLM == nil {
		return fallback
	}

	prompt := fmt.Sprintf(
		"Generate a very short title (8 words max) for this conversation:\nUser: %s\nAI: %s\nTitle:",
		first.Query, first.Response)
	params := llm.GenerationParams{
		Temperature: &sessionTitleTemperature,
		MaxTokens:   &sessionTitleMaxTokens,
		Stop:        []string{"\n", "User:", "AI:"},
	}

	title, err := l.titleLLM.Generate(ctx, prompt, params)
	title = strings.TrimSpace(title)
	if err != nil || title == "" {
		if err != nil {
			slog.Error("Failed to generate a session title", "sessionID", sessionID, "error", err)
		} else {
			slog.Warn("LLM generated an empty session title, using fallback", "sessionID", sessionID)
		}
		return fallback
	}
	return title
}

// Record appends one completed turn. Unclassified values get the storage
// defaults: domain "general", intent "unknown".
func (l *ConversationLog) Record(sessionID, query, response, domain, intent string) {
	if domain == "" {
		domain = "general"
	}
	if intent == "" {
		intent = "unknown"
	}

	entry := datatypes.TurnEntry{
		Timestamp: l.now().In(istZone).Format(time.RFC3339),
		Domain:    domain,
		Intent:    intent,
		Query:     query,
		Response:  response,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[sessionID] = append(l.entries[sessionID], entry)
}

// Entries returns a copy of the recorded turns for a session.
func (l *ConversationLog) Entries(sessionID string) []datatypes.TurnEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.entries[sessionID]
	out := make([]datatypes.TurnEntry, len(entries))
	copy(out, entries)
	return out
}

// Flush builds the session document and hands it to the durable store.
// Whether or not the write succeeds, the in-memory log and the session's
// memory window are cleared before Flush returns; the document and error are
// returned for the caller's logging.
func (l *ConversationLog) Flush(ctx context.Context, sessionID string) (*datatypes.SessionDocument, error) {
	l.mu.Lock()
	entries := l.entries[sessionID]
	delete(l.entries, sessionID)
	l.mu.Unlock()

	defer l.memory.Evict(sessionID)

	doc := &datatypes.SessionDocument{
		SessionID:   sessionID,
		CompletedAt: l.now().In(istZone).Format(time.RFC3339),
		Summary:     fmt.Sprintf("Session %s has %d messages", sessionID, len(entries)),
		Turns:       entries,
	}

	if len(entries) == 0 {
		slog.Info("Session ended with no recorded turns, skipping durable write",
			"sessionID", sessionID)
		return doc, nil
	}
	doc.Title = l.sessionTitle(ctx, sessionID, entries[0])

	if err := l.store.SaveSession(ctx, doc); err != nil {
		slog.Error("Failed to persist the session document, cleanup continues",
			"sessionID", sessionID, "error", err)
		return doc, err
	}

	slog.Info("Flushed session to durable storage", "sessionID", sessionID,
		"turns", len(entries))
	return doc, nil
}
