// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// TurnEntry is one completed turn of a session: immutable once recorded.
type TurnEntry struct {
	Timestamp string `json:"timestamp"`
	Domain    string `json:"domain"`
	Intent    string `json:"intent"`
	Query     string `json:"query"`
	Response  string `json:"response"`
}

// SessionDocument is the durable record of a completed session, flushed as a
// single unit when the connection ends.
type SessionDocument struct {
	SessionID   string      `json:"session_id"`
	CompletedAt string      `json:"completed_at"`
	Title       string      `json:"title"`
	Summary     string      `json:"summary"`
	Turns       []TurnEntry `json:"turns"`
}

// VoiceSessionProperties mirrors the VoiceSession Weaviate class.
type VoiceSessionProperties struct {
	SessionID   string `json:"session_id"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	CompletedAt string `json:"completed_at"`
	TurnCount   int    `json:"turn_count"`
	Timestamp   int64  `json:"timestamp"`
}

func (p *VoiceSessionProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"session_id":   p.SessionID,
		"title":        p.Title,
		"summary":      p.Summary,
		"completed_at": p.CompletedAt,
		"turn_count":   p.TurnCount,
		"timestamp":    p.Timestamp,
	}
}

// VoiceTurnProperties mirrors the VoiceTurn Weaviate class.
type VoiceTurnProperties struct {
	SessionID  string `json:"session_id"`
	TurnNumber int    `json:"turn_number"`
	Domain     string `json:"domain"`
	Intent     string `json:"intent"`
	Query      string `json:"query"`
	Response   string `json:"response"`
	Timestamp  string `json:"timestamp"`
}

func (p *VoiceTurnProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"session_id":  p.SessionID,
		"turn_number": p.TurnNumber,
		"domain":      p.Domain,
		"intent":      p.Intent,
		"query":       p.Query,
		"response":    p.Response,
		"timestamp":   p.Timestamp,
	}
}

// Save persists the completed session document to Weaviate: one VoiceSession
// object plus one VoiceTurn object per recorded turn, batched in a single
// request. Turn ids are content-derived so a retried flush cannot duplicate
// turns.
func (d *SessionDocument) Save(ctx context.Context, client *weaviate.Client) error {
	if client == nil {
		return fmt.Errorf("no durable store configured")
	}
	slog.Info("Saving the session document to Weaviate",
		"sessionID", d.SessionID, "turns", len(d.Turns))

	sessionProps := VoiceSessionProperties{
		SessionID:   d.SessionID,
		Title:       d.Title,
		Summary:     d.Summary,
		CompletedAt: d.CompletedAt,
		TurnCount:   len(d.Turns),
		Timestamp:   time.Now().UnixMilli(),
	}

	objects := make([]*models.Object, 0, len(d.Turns)+1)
	objects = append(objects, &models.Object{
		Class:      "VoiceSession",
		Properties: sessionProps.ToMap(),
	})

	for i, turn := range d.Turns {
		props := VoiceTurnProperties{
			SessionID:  d.SessionID,
			TurnNumber: i + 1,
			Domain:     turn.Domain,
			Intent:     turn.Intent,
			Query:      turn.Query,
			Response:   turn.Response,
			Timestamp:  turn.Timestamp,
		}
		hash := sha256.Sum256([]byte(d.SessionID + turn.Timestamp + turn.Query))
		turnUUID, _ := uuid.FromBytes(hash[:16])
		objects = append(objects, &models.Object{
			Class:      "VoiceTurn",
			ID:         strfmt.UUID(turnUUID.String()),
			Properties: props.ToMap(),
		})
	}

	resp, err := client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to save the session document to Weaviate: %w", err)
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item",
					"sessionID", d.SessionID, "error", errItem.Message)
			}
		}
	}

	slog.Info("Successfully saved the session document", "sessionID", d.SessionID)
	return nil
}
