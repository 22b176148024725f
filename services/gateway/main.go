// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fincove/maya/services/gateway/config"
	"github.com/fincove/maya/services/gateway/datatypes"
	"github.com/fincove/maya/services/gateway/handlers"
	"github.com/fincove/maya/services/gateway/routes"
	"github.com/fincove/maya/services/gateway/services"
	"github.com/fincove/maya/services/llm"
	"github.com/fincove/maya/services/tts"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "maya-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("maya-gateway")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func newWeaviateClient() (*weaviate.Client, error) {
	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Sanitize: trim quotes and whitespace in case the container runtime
	// passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")
	if weaviateURL == "" {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL is not set")
	}
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL %q is invalid: %v", weaviateURL, err)
	}
	return weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
}

// verifyKnowledgeBase checks each domain partition has at least one
// document. The default domain is mandatory: a caller falling back to it
// must always get retrieval context.
func verifyKnowledgeBase(ctx context.Context, client *weaviate.Client, defaultDomain string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, domain := range datatypes.Domains {
		domain := domain
		g.Go(func() error {
			where := filters.Where().
				WithPath([]string{"data_space"}).
				WithOperator(filters.Equal).
				WithValueString(domain)
			resp, err := client.GraphQL().Get().
				WithClassName("Document").
				WithFields(graphql.Field{Name: "source"}).
				WithWhere(where).
				WithLimit(1).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to check the %s knowledge base: %w", domain, err)
			}
			getMap, _ := resp.Data["Get"].(map[string]interface{})
			docs, _ := getMap["Document"].([]interface{})
			if len(docs) == 0 {
				if domain == defaultDomain {
					return fmt.Errorf("the %s knowledge base is empty", domain)
				}
				slog.Warn("Knowledge base partition is empty", "domain", domain)
			}
			return nil
		})
	}
	return g.Wait()
}

func newLLMClient() (llm.LLMClient, error) {
	switch backend := os.Getenv("LLM_BACKEND_TYPE"); backend {
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient()
	case "groq", "":
		slog.Info("Using Groq LLM backend")
		return llm.NewGroqClient()
	default:
		slog.Warn("LLM_BACKEND_TYPE not recognized, defaulting to groq", "value", backend)
		return llm.NewGroqClient()
	}
}

func main() {
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "12300"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Load(); err != nil {
		log.Fatalf("failed to load the gateway config: %v", err)
	}
	cfg := config.Global

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	weaviateClient, err := newWeaviateClient()
	if err != nil {
		log.Fatalf("failed to create the Weaviate client: %v", err)
	}
	datatypes.EnsureWeaviateSchema(weaviateClient)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := verifyKnowledgeBase(startupCtx, weaviateClient, cfg.Routing.DefaultDomain); err != nil {
		log.Fatalf("knowledge base verification failed: %v", err)
	}

	intents, err := datatypes.LoadIntentTable(cfg.Routing.IntentsPath)
	if err != nil {
		log.Fatalf("failed to load the intent table: %v", err)
	}

	llmClient, err := newLLMClient()
	if err != nil {
		log.Fatalf("failed to initialize the LLM client: %v", err)
	}

	ttsProvider, err := tts.NewElevenLabs()
	if err != nil {
		slog.Warn("Speech synthesis disabled", "error", err)
		ttsProvider = nil
	}

	otpProvider, err := services.NewTwilioVerify()
	if err != nil {
		log.Fatalf("failed to initialize the OTP provider: %v", err)
	}

	memory := services.NewMemoryStore(cfg.Memory.Window)
	store := services.NewWeaviateStore(weaviateClient)
	chatLog := services.NewConversationLog(store, memory)
	chatLog.SetTitleLLM(llmClient)
	sessions := services.NewSessionTable()
	gate := services.NewGate(sessions)
	classifier := services.NewClassifier(llmClient, intents)
	searcher := services.NewWeaviateSearcher(weaviateClient)
	answers := services.NewAnswerService(searcher, llmClient, memory)
	dispatcher := services.NewDispatcher(classifier, answers, intents, gate,
		cfg.Routing.DefaultDomain)

	router := gin.Default()
	router.Use(otelgin.Middleware("maya-gateway"))

	routes.SetupRoutes(router, routes.Deps{
		Weaviate: weaviateClient,
		Voice: handlers.VoiceDeps{
			Sessions:   sessions,
			Gate:       gate,
			Dispatcher: dispatcher,
			Log:        chatLog,
			TTS:        ttsProvider,
			TTSOptions: tts.SynthesizeOptions{
				Voice:      cfg.Voice.VoiceID,
				Format:     cfg.Voice.Format,
				SampleRate: cfg.Voice.SampleRate,
			},
		},
		OTP:        otpProvider,
		OTPLimiter: handlers.NewOTPLimiter(rate.Every(30*time.Second), 3),
		Sessions:   sessions,
	})

	slog.Info("Starting the Maya gateway", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
