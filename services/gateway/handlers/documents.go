// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/fincove/maya/services/gateway/datatypes"
)

var (
	chunkSize          = 1000
	chunkOverlap       = chunkSize / 10
	defaultSeparators  = []string{"\n\n", "\n", " ", ""}
	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
)

// IngestDocumentRequest adds one knowledge base document to the domain
// partition named by DataSpace.
type IngestDocumentRequest struct {
	Content   string `json:"content" binding:"required"`
	Source    string `json:"source" binding:"required"`
	DataSpace string `json:"data_space" binding:"required"`
}

type batchEmbeddingRequest struct {
	Texts []string `json:"texts"`
}

type batchEmbeddingResponse struct {
	Vectors [][]float32 `json:"vectors"`
	Model   string      `json:"model"`
	Dim     int         `json:"dim"`
}

// CreateDocument ingests a knowledge base document into one domain partition.
func CreateDocument(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IngestDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if !datatypes.IsDomain(req.DataSpace) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("unknown data_space %q, must be one of %s",
					req.DataSpace, strings.Join(datatypes.Domains, ", ")),
			})
			return
		}

		chunksCreated, err := RunIngestion(c.Request.Context(), client, req)
		if err != nil {
			slog.Error("Ingestion failed", "source", req.Source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		slog.Info("Successfully ingested document", "source", req.Source,
			"data_space", req.DataSpace, "chunks_processed", chunksCreated)
		c.JSON(http.StatusCreated, gin.H{
			"status":           "success",
			"source":           req.Source,
			"data_space":       req.DataSpace,
			"chunks_processed": chunksCreated,
		})
	}
}

// ListDocuments gets a unique list of all ingested 'parent_source' files.
func ListDocuments(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		slog.Info("Received request to list ingested documents")

		agg, err := client.GraphQL().Aggregate().
			WithClassName("Document").
			WithGroupBy("parent_source").
			Do(c.Request.Context())
		if err != nil {
			slog.Error("Failed to aggregate documents from Weaviate", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query documents"})
			return
		}

		var docList []string
		if aggMap, ok := agg.Data["Aggregate"].(map[string]interface{}); ok {
			if docGroups, ok := aggMap["Document"].([]interface{}); ok {
				for _, groupItem := range docGroups {
					groupMap, ok := groupItem.(map[string]interface{})
					if !ok {
						continue
					}
					if groupedBy, ok := groupMap["groupedBy"].(map[string]interface{}); ok {
						if sourceName, ok := groupedBy["value"].(string); ok {
							docList = append(docList, sourceName)
						}
					}
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"documents": docList})
	}
}

// RunIngestion splits, embeds and batch-imports one document into the
// Document class. Chunk IDs are content hashes, so re-ingesting the same
// document overwrites instead of duplicating.
func RunIngestion(ctx context.Context, client *weaviate.Client, req IngestDocumentRequest) (int, error) {
	embeddingServiceBaseURL := os.Getenv("EMBEDDING_SERVICE_URL")
	if embeddingServiceBaseURL == "" {
		slog.Error("EMBEDDING_SERVICE_URL not set for gateway")
		return 0, fmt.Errorf("embedding service not configured")
	}
	batchEmbeddingURL := strings.TrimSuffix(embeddingServiceBaseURL, "/embed") + "/batch_embed"
	slog.Info("Ingestion request received", "source", req.Source, "data_space", req.DataSpace)

	splitter := getSplitterForFile(req.Source)
	chunks, err := splitter.SplitText(req.Content)
	if err != nil {
		slog.Error("Failed to split text", "source", req.Source, "error", err)
		return 0, fmt.Errorf("failed to split content: %w", err)
	}
	if len(chunks) == 0 {
		slog.Warn("No chunks produced after splitting", "source", req.Source)
		return 0, nil
	}

	vectors, err := callBatchEmbed(batchEmbeddingURL, chunks)
	if err != nil {
		slog.Error("Failed to get batch embeddings", "source", req.Source, "error", err)
		return 0, err
	}
	if len(vectors) != len(chunks) {
		slog.Error("Mismatch between chunk count and vector count",
			"chunks", len(chunks), "vectors", len(vectors))
		return 0, fmt.Errorf("embedding service returned mismatched vector count")
	}

	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		chunkSource := fmt.Sprintf("%s_part_%d", req.Source, i+1)
		hash := sha256.Sum256([]byte(chunk))
		docUUID, _ := uuid.FromBytes(hash[:16])

		objects[i] = &models.Object{
			Class:  "Document",
			ID:     strfmt.UUID(docUUID.String()),
			Vector: vectors[i],
			Properties: map[string]interface{}{
				"content":       chunk,
				"source":        chunkSource,
				"parent_source": req.Source,
				"data_space":    req.DataSpace,
				"ingested_at":   time.Now().UnixMilli(),
			},
		}
	}

	resp, err := client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		slog.Error("Failed to perform batch import to Weaviate", "error", err)
		return 0, fmt.Errorf("failed to save objects to Weaviate: %w", err)
	}

	chunksCreated := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			chunksCreated++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item", "source", req.Source,
					"error", errItem.Message)
			}
		}
	}

	return chunksCreated, nil
}

func callBatchEmbed(batchEmbedURL string, chunks []string) ([][]float32, error) {
	jsonData, err := json.Marshal(batchEmbeddingRequest{Texts: chunks})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch embed request: %w", err)
	}

	// Batch embedding can take a while on large documents.
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(batchEmbedURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to call /batch_embed endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read /batch_embed response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("/batch_embed returned status %d: %s", resp.StatusCode, string(body))
	}

	var batchResp batchEmbeddingResponse
	if err = json.Unmarshal(body, &batchResp); err != nil {
		return nil, fmt.Errorf("failed to decode batch embed response: %w", err)
	}
	return batchResp.Vectors, nil
}

func getSplitterForFile(filename string) textsplitter.TextSplitter {
	separators := defaultSeparators
	if filepath.Ext(filename) == ".md" {
		separators = markdownSeparators
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(separators),
	)
}
