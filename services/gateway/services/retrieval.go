// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fincove/maya/services/gateway/datatypes"
	"github.com/fincove/maya/services/llm"
)

var retrievalTracer = otel.Tracer("maya.gateway.services.retrieval")

// retrievalLimit bounds the number of context chunks per answer.
const retrievalLimit = 4

// DocumentSearcher retrieves knowledge base chunks for a query vector,
// scoped to one domain partition.
type DocumentSearcher interface {
	Search(ctx context.Context, vector []float32, domain string, limit int) ([]string, error)
}

// WeaviateSearcher implements DocumentSearcher with a nearVector query over
// the Document class, filtered on data_space == domain.
type WeaviateSearcher struct {
	client *weaviate.Client
}

var _ DocumentSearcher = (*WeaviateSearcher)(nil)

func NewWeaviateSearcher(client *weaviate.Client) *WeaviateSearcher {
	return &WeaviateSearcher{client: client}
}

type documentQueryResponse struct {
	Get struct {
		Document []struct {
			Content string `json:"content"`
		} `json:"Document"`
	} `json:"Get"`
}

func (s *WeaviateSearcher) Search(ctx context.Context, vector []float32,
	domain string, limit int) ([]string, error) {

	where := filters.Where().
		WithPath([]string{"data_space"}).
		WithOperator(filters.Equal).
		WithValueString(domain)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	resp, err := s.client.GraphQL().Get().
		WithClassName("Document").
		WithFields(graphql.Field{Name: "content"}).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query the %s knowledge base: %w", domain, err)
	}

	var queryResp documentQueryResponse
	respBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(respBytes, &queryResp); err != nil {
		return nil, fmt.Errorf("failed to parse the knowledge base response: %w", err)
	}

	chunks := make([]string, 0, len(queryResp.Get.Document))
	for _, doc := range queryResp.Get.Document {
		chunks = append(chunks, doc.Content)
	}
	return chunks, nil
}

// AnswerGenerator synthesizes an answer for a query against one domain's
// knowledge base, reading and updating the session's bounded memory.
type AnswerGenerator interface {
	Answer(ctx context.Context, sessionID, query, domain string) (string, error)
}

// AnswerService is the retrieval-backed answer generator: embed the query,
// pull the closest domain chunks, and ask the LLM with the session's memory
// window as conversational context.
type AnswerService struct {
	searcher  DocumentSearcher
	llmClient llm.LLMClient
	memory    *MemoryStore
}

var _ AnswerGenerator = (*AnswerService)(nil)

func NewAnswerService(searcher DocumentSearcher, llmClient llm.LLMClient,
	memory *MemoryStore) *AnswerService {

	return &AnswerService{
		searcher:  searcher,
		llmClient: llmClient,
		memory:    memory,
	}
}

const answerSystemPrompt = "You are Maya, a professional female AI calling assistant " +
	"for FinCove Pvt. Ltd., a digital banking platform. You assist users over phone " +
	"calls with queries about FinCove's products and services. Answer concisely and " +
	"clearly using the provided context. Respond in plain text only, with no Markdown " +
	"formatting or emphasis of any kind."

// Answer implements AnswerGenerator. The session's memory is only mutated
// when generation succeeds.
func (s *AnswerService) Answer(ctx context.Context, sessionID, query, domain string) (string, error) {
	ctx, span := retrievalTracer.Start(ctx, "AnswerService.Answer")
	defer span.End()
	span.SetAttributes(attribute.String("rag.domain", domain))
	span.SetAttributes(attribute.String("session_id", sessionID))

	var embedding datatypes.EmbeddingResponse
	if err := embedding.Get(ctx, query); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to embed the query: %w", err)
	}

	chunks, err := s.searcher.Search(ctx, embedding.Vector, domain, retrievalLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("rag.chunks", len(chunks)))

	history := s.memory.History(sessionID)
	messages := buildAnswerMessages(query, chunks, history)

	answer, err := s.llmClient.Chat(ctx, messages, llm.GenerationParams{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("answer generation failed: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		slog.Warn("LLM produced an empty answer", "sessionID", sessionID, "domain", domain)
		return "", fmt.Errorf("the model returned an empty answer")
	}

	s.memory.Append(sessionID, "user", query)
	s.memory.Append(sessionID, "assistant", answer)
	return answer, nil
}

// buildAnswerMessages assembles the chat request: persona plus retrieved
// context as the system turn, then the memory window, then the new query.
func buildAnswerMessages(query string, chunks []string,
	history []datatypes.Message) []datatypes.Message {

	system := answerSystemPrompt
	if len(chunks) > 0 {
		system += "\n\nContext:\n" + strings.Join(chunks, "\n---\n")
	}

	messages := make([]datatypes.Message, 0, len(history)+2)
	messages = append(messages, datatypes.Message{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, datatypes.Message{Role: "user", Content: query})
	return messages
}
