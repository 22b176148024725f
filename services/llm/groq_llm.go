// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fincove/maya/services/gateway/datatypes"
)

var groqTracer = otel.Tracer("maya.llm.groq")

const groqDefaultBaseURL = "https://api.groq.com/openai/v1"

// GroqClient talks to Groq's OpenAI-compatible chat completion API.
type GroqClient struct {
	client *openai.Client
	model  string
}

func NewGroqClient() (*GroqClient, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	model := os.Getenv("GROQ_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/groq_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the Groq API key from container secrets")
		} else {
			slog.Error("GROQ_API_KEY environment variable not set and secret not found",
				"path", secretPath)
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "llama-3.1-8b-instant"
		slog.Warn("GROQ_MODEL not set, defaulting to llama-3.1-8b-instant")
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = groqDefaultBaseURL
	if base := os.Getenv("GROQ_BASE_URL"); base != "" {
		config.BaseURL = strings.TrimSuffix(base, "/")
	}

	slog.Info("Initializing Groq client", "model", model, "base_url", config.BaseURL)
	return &GroqClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Generate implements the LLMClient interface
func (g *GroqClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	messages := []datatypes.Message{
		{Role: "user", Content: prompt},
	}
	return g.Chat(ctx, messages, params)
}

// Chat implements the LLMClient interface
func (g *GroqClient) Chat(ctx context.Context, messages []datatypes.Message,
	params GenerationParams) (string, error) {

	ctx, span := groqTracer.Start(ctx, "GroqClient.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	apiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: apiMessages,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		slog.Error("Groq API call failed", "error", err)
		return "", fmt.Errorf("Groq API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Groq returned no choices")
		return "", fmt.Errorf("Groq returned no choices")
	}
	slog.Debug("Received response from Groq", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
