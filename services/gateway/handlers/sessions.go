// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// ListSessions returns the persisted voice sessions with their summaries.
func ListSessions(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		slog.Info("Received request to list voice sessions")
		fields := []graphql.Field{
			{Name: "session_id"},
			{Name: "title"},
			{Name: "summary"},
			{Name: "completed_at"},
			{Name: "turn_count"},
		}
		result, err := client.GraphQL().Get().
			WithClassName("VoiceSession").
			WithFields(fields...).
			Do(c.Request.Context())
		if err != nil {
			slog.Error("failed to query Weaviate for voice sessions", "error", err)
			c.JSON(http.StatusInternalServerError,
				gin.H{"error": "failed to query Weaviate for voice sessions"})
			return
		}
		c.JSON(http.StatusOK, result.Data)
	}
}

// SessionHistory returns the persisted turns of one voice session,
// oldest first.
func SessionHistory(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := c.Param("sessionId")
		slog.Info("Received request for session history", "sessionId", session)

		where := filters.Where().
			WithPath([]string{"session_id"}).
			WithOperator(filters.Equal).
			WithValueString(session)
		fields := []graphql.Field{
			{Name: "timestamp"},
			{Name: "domain"},
			{Name: "intent"},
			{Name: "query"},
			{Name: "response"},
		}
		sort := graphql.Sort{Path: []string{"timestamp"}, Order: graphql.Asc}

		result, err := client.GraphQL().Get().
			WithClassName("VoiceTurn").
			WithFields(fields...).
			WithWhere(where).
			WithSort(sort).
			Do(c.Request.Context())
		if err != nil {
			slog.Error("failed to query Weaviate for session history",
				"sessionId", session, "error", err)
			c.JSON(http.StatusInternalServerError,
				gin.H{"error": "failed to query Weaviate for session history"})
			return
		}
		c.JSON(http.StatusOK, result.Data)
	}
}

// DeleteSession removes a persisted session and all of its turns.
func DeleteSession(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := c.Param("sessionId")
		slog.Info("Received a request to delete a session", "sessionId", session)

		where := filters.Where().
			WithPath([]string{"session_id"}).
			WithOperator(filters.Equal).
			WithValueString(session)

		_, err := client.Batch().ObjectsBatchDeleter().
			WithClassName("VoiceTurn").
			WithOutput("minimal").
			WithWhere(where).
			Do(c.Request.Context())
		if err != nil {
			slog.Error("failed to delete turn objects from the Weaviate DB", "error", err)
		}
		_, err = client.Batch().ObjectsBatchDeleter().
			WithClassName("VoiceSession").
			WithOutput("minimal").
			WithWhere(where).
			Do(c.Request.Context())
		if err != nil {
			slog.Error("failed to delete session object from the Weaviate DB", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fully delete session"})
			return
		}

		slog.Info("Successfully deleted all data for session", "sessionId", session)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": session})
	}
}
