// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const elevenLabsDefaultBaseURL = "https://api.elevenlabs.io"

// elevenLabs chunk size for reading the streamed response body.
const elevenLabsReadChunk = 4096

// ElevenLabsProvider streams synthesized speech from the ElevenLabs
// text-to-speech streaming endpoint.
type ElevenLabsProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	modelID    string
}

func NewElevenLabs() (*ElevenLabsProvider, error) {
	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY environment variable not set")
	}
	baseURL := elevenLabsDefaultBaseURL
	if base := os.Getenv("ELEVENLABS_BASE_URL"); base != "" {
		baseURL = strings.TrimSuffix(base, "/")
	}
	modelID := os.Getenv("ELEVENLABS_MODEL_ID")
	if modelID == "" {
		modelID = "eleven_turbo_v2_5"
	}
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    baseURL,
		modelID:    modelID,
	}, nil
}

// NewElevenLabsWithClient is used by tests to point the provider at a stub
// server.
func NewElevenLabsWithClient(apiKey, baseURL string, client *http.Client) *ElevenLabsProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		modelID:    "eleven_turbo_v2_5",
	}
}

func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// outputFormat maps the requested codec and sample rate onto the provider's
// qualified format names (mp3_44100_128, pcm_16000, ...). A name that already
// carries a rate is passed through untouched.
func outputFormat(opts SynthesizeOptions) string {
	format := opts.Format
	if format == "" {
		format = "mp3"
	}
	if strings.Contains(format, "_") {
		return format
	}

	rate := opts.SampleRate
	switch format {
	case "pcm":
		if rate == 0 {
			rate = 16000
		}
		return fmt.Sprintf("pcm_%d", rate)
	default:
		if rate == 0 {
			rate = 44100
		}
		return fmt.Sprintf("mp3_%d_128", rate)
	}
}

// SynthesizeStream implements the Provider interface. Audio chunks are
// forwarded in the order the provider returns them.
func (e *ElevenLabsProvider) SynthesizeStream(ctx context.Context, text string,
	opts SynthesizeOptions) (*SynthesisStream, error) {

	voice := opts.Voice
	if voice == "" {
		voice = "21m00Tcm4TlvDq8ikWAM"
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s",
		e.baseURL, url.PathEscape(voice), url.QueryEscape(outputFormat(opts)))

	reqBody, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: e.modelID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal the TTS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create the TTS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("TTS service returned %d: %s", resp.StatusCode, string(body))
	}

	stream := NewSynthesisStream()
	go func() {
		defer stream.FinishSending()
		defer resp.Body.Close()

		buf := make([]byte, elevenLabsReadChunk)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !stream.Send(chunk) {
					// Consumer abandoned the stream; no retry of partial audio.
					return
				}
			}
			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				slog.Warn("TTS audio stream ended early", "error", readErr)
				stream.SetError(readErr)
				return
			}
		}
	}()
	return stream, nil
}
