// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type EmbeddingRequest struct {
	Text string `json:"text"`
}

type EmbeddingResponse struct {
	Vector []float32 `json:"vector"`
	Model  string    `json:"model"`
	Dim    int       `json:"dim"`
}

var embeddingHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// Get fetches the embedding vector for text from the embedding sidecar
// configured via EMBEDDING_SERVICE_URL.
func (e *EmbeddingResponse) Get(ctx context.Context, text string) error {
	embeddingServiceURL := os.Getenv("EMBEDDING_SERVICE_URL")
	if embeddingServiceURL == "" {
		return fmt.Errorf("EMBEDDING_SERVICE_URL environment variable not set")
	}

	reqBody, err := json.Marshal(EmbeddingRequest{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal the embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, embeddingServiceURL,
		bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to setup a new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := embeddingHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make the request to the embedding service: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("the embedding service returned %d: %s",
			resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, e); err != nil {
		return fmt.Errorf("failed to parse the response from the embedding service: %w", err)
	}
	return nil
}
