// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/fincove/maya/services/gateway/datatypes"
	"github.com/fincove/maya/services/gateway/observability"
	"github.com/fincove/maya/services/gateway/services"
	"github.com/fincove/maya/services/tts"
)

var wsTracer = otel.Tracer("maya.gateway.handlers.websocket")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024 * 1024,
	WriteBufferSize: 1024 * 1024,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// VoiceDeps bundles the collaborators of one voice connection.
type VoiceDeps struct {
	Sessions   *services.SessionTable
	Gate       *services.Gate
	Dispatcher *services.Dispatcher
	Log        *services.ConversationLog
	TTS        tts.Provider
	TTSOptions tts.SynthesizeOptions
}

// HandleVoiceWebSocket runs one voice session: announce the session id,
// then loop on text frames until the client goes away. Every exit path,
// including a panic in the loop, runs the cleanup exactly once.
func HandleVoiceWebSocket(deps VoiceDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sessionID := c.Query("sid")
		if sessionID == "" {
			sessionID = uuid.New().String()
		}
		resumed := deps.Sessions.Touch(sessionID)
		slog.Info("Voice session connected", "sessionID", sessionID, "resumed", resumed)
		observability.ActiveSessions.Inc()

		var cleanupOnce sync.Once
		cleanup := func() {
			cleanupOnce.Do(func() {
				observability.ActiveSessions.Dec()
				// The flush uses its own context: the request context is
				// already done by the time the client disconnects.
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if _, err := deps.Log.Flush(ctx, sessionID); err != nil {
					observability.SessionsFlushedTotal.WithLabelValues("error").Inc()
				} else {
					observability.SessionsFlushedTotal.WithLabelValues("ok").Inc()
				}
				deps.Sessions.Remove(sessionID)
				slog.Info("Voice session closed", "sessionID", sessionID)
			})
		}
		defer cleanup()

		if err := sendJSON(ws, datatypes.SessionFrame{
			Type:      "session",
			SessionID: sessionID,
		}); err != nil {
			return
		}

		for {
			msgType, raw, err := ws.ReadMessage()
			if err != nil {
				slog.Info("Voice client disconnected", "sessionID", sessionID,
					"error", err.Error())
				return
			}
			if msgType != websocket.TextMessage {
				slog.Warn("Ignoring non-text frame from client",
					"sessionID", sessionID, "type", msgType)
				continue
			}

			if deps.Gate.ConsumeControl(sessionID, raw) {
				if err := sendJSON(ws, datatypes.VerifiedFrame{
					Type:    "verified",
					Message: "Identity verified. You can now ask about your account.",
				}); err != nil {
					return
				}
				continue
			}

			query := string(raw)
			if err := handleTurn(c.Request.Context(), ws, deps, sessionID, query); err != nil {
				return
			}
		}
	}
}

// handleTurn routes one user utterance and writes the reply frames. A
// non-nil error means the connection is no longer writable.
func handleTurn(ctx context.Context, ws *websocket.Conn, deps VoiceDeps,
	sessionID, query string) error {

	ctx, span := wsTracer.Start(ctx, "handleTurn")
	defer span.End()

	start := time.Now()
	outcome := deps.Dispatcher.Route(ctx, sessionID, query)
	observability.TurnDuration.Observe(time.Since(start).Seconds())
	observability.TurnsTotal.WithLabelValues(string(outcome.Kind), outcome.Domain).Inc()

	if outcome.Kind == services.OutcomeAuthRequired {
		// Gated turns are not recorded: the query never got an answer.
		return sendJSON(ws, datatypes.AuthRequiredFrame{
			Type: "auth_required",
			Message: "This request needs identity verification. " +
				"Please verify with the one-time password sent to your phone.",
			Intent: outcome.Intent,
		})
	}

	if err := sendJSON(ws, datatypes.TextFrame{
		Type: "text",
		Data: outcome.Text,
	}); err != nil {
		return err
	}

	streamAudio(ctx, ws, deps, sessionID, outcome.Text)

	deps.Log.Record(sessionID, query, outcome.Text, outcome.Domain, outcome.Intent)
	return nil
}

// streamAudio synthesizes the answer and relays audio chunks as binary
// frames, in order. Audio is best effort: synthesis or write failures end
// the stream but never fail the turn.
func streamAudio(ctx context.Context, ws *websocket.Conn, deps VoiceDeps,
	sessionID, text string) {

	if deps.TTS == nil {
		return
	}

	stream, err := deps.TTS.SynthesizeStream(ctx, text, deps.TTSOptions)
	if err != nil {
		slog.Warn("Speech synthesis failed", "sessionID", sessionID,
			"provider", deps.TTS.Name(), "error", err)
		return
	}
	defer stream.Close()

	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := ws.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			slog.Warn("Failed to write audio frame", "sessionID", sessionID, "error", err)
			return
		}
		observability.AudioChunksTotal.Inc()
	}
	if err := stream.Err(); err != nil {
		slog.Warn("Speech stream ended with error", "sessionID", sessionID, "error", err)
	}
}
