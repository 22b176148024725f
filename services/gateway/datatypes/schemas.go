// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"log/slog"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// GetDocumentSchema returns the schema for the domain knowledge base chunks.
// The data_space property carries the owning domain name.
func GetDocumentSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "Document",
		Description: "A chunk of a domain knowledge base document",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The chunk text",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Unique chunk identifier derived from the parent file",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "parent_source",
				DataType:        []string{"text"},
				Description:     "The file the chunk was split from",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "data_space",
				DataType:        []string{"text"},
				Description:     "The financial domain owning this chunk (banking, loan, ...)",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the chunk was ingested",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// GetVoiceSessionSchema returns the schema for completed session records.
func GetVoiceSessionSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:               "VoiceSession",
		Description:         "Metadata for a completed voice session, including a summary",
		Vectorizer:          "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{IndexTimestamps: true},
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "The unique ID for the session.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "title",
				DataType:     []string{"text"},
				Description:  "A short generated title for the session.",
				Tokenization: "word",
			},
			{
				Name:         "summary",
				DataType:     []string{"text"},
				Description:  "A short summary of the session.",
				Tokenization: "word",
			},
			{
				Name:        "completed_at",
				DataType:    []string{"text"},
				Description: "ISO timestamp (IST) when the session ended.",
			},
			{
				Name:            "turn_count",
				DataType:        []string{"int"},
				Description:     "Number of turns recorded before the session ended.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the record was written.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// GetVoiceTurnSchema returns the schema for individual session turns.
func GetVoiceTurnSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "VoiceTurn",
		Description: "One user turn and its response within a voice session",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "The unique ID for the session.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "turn_number",
				DataType:        []string{"int"},
				Description:     "The sequential turn number within the session (1-indexed).",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "domain",
				DataType:        []string{"text"},
				Description:     "The routed domain, or general when unclassified.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "intent",
				DataType:        []string{"text"},
				Description:     "The classified intent, or unknown.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "query",
				DataType:     []string{"text"},
				Description:  "The user's utterance",
				Tokenization: "word",
			},
			{
				Name:         "response",
				DataType:     []string{"text"},
				Description:  "The answer sent back to the user",
				Tokenization: "word",
			},
			{
				Name:        "timestamp",
				DataType:    []string{"text"},
				Description: "ISO timestamp (IST) of the turn.",
			},
		},
	}
}

// EnsureWeaviateSchema creates any missing gateway classes. Existing classes
// are left untouched.
func EnsureWeaviateSchema(client *weaviate.Client) {
	if client == nil {
		return
	}
	classes := []*models.Class{
		GetDocumentSchema(),
		GetVoiceSessionSchema(),
		GetVoiceTurnSchema(),
	}
	for _, class := range classes {
		err := client.Schema().ClassCreator().WithClass(class).Do(context.Background())
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				slog.Debug("Weaviate class already exists", "class", class.Class)
				continue
			}
			slog.Error("Failed to create Weaviate class", "class", class.Class, "error", err)
			continue
		}
		slog.Info("Created Weaviate class", "class", class.Class)
	}
}
