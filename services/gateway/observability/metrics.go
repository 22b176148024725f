// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the gateway's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks currently connected voice sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maya_gateway_active_sessions",
		Help: "Number of currently connected voice sessions",
	})

	// TurnsTotal counts routed turns by outcome and domain.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maya_gateway_turns_total",
		Help: "Routed user turns by outcome and domain",
	}, []string{"outcome", "domain"})

	// TurnDuration measures end-to-end turn routing latency, from the text
	// frame arriving to the answer being ready.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "maya_gateway_turn_duration_seconds",
		Help:    "Time to route one user turn",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// AudioChunksTotal counts binary audio frames written to clients.
	AudioChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maya_gateway_audio_chunks_total",
		Help: "Binary audio frames sent over voice sessions",
	})

	// OTPSendsTotal counts OTP delivery attempts by result.
	OTPSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maya_gateway_otp_sends_total",
		Help: "OTP delivery attempts by result",
	}, []string{"result"})

	// OTPChecksTotal counts OTP verification attempts by result.
	OTPChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maya_gateway_otp_checks_total",
		Help: "OTP verification attempts by result",
	}, []string{"result"})

	// SessionsFlushedTotal counts session log flushes by persistence result.
	SessionsFlushedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maya_gateway_sessions_flushed_total",
		Help: "Conversation log flushes on disconnect by persistence result",
	}, []string{"result"})
)
