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
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/fincove/maya/services/gateway/observability"
	"github.com/fincove/maya/services/gateway/services"
)

var authTracer = otel.Tracer("maya.gateway.handlers.auth")

type SendOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type VerifyOTPRequest struct {
	Phone     string `json:"phone" binding:"required"`
	Code      string `json:"code" binding:"required,numeric,min=4,max=8"`
	SessionID string `json:"session_id,omitempty"`
}

// OTPLimiter rate limits OTP sends per phone number.
type OTPLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewOTPLimiter(r rate.Limit, burst int) *OTPLimiter {
	return &OTPLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// Allow reports whether the phone may receive another OTP right now.
func (l *OTPLimiter) Allow(phone string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[phone]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[phone] = lim
	}
	return lim.Allow()
}

// validatePhone checks an already-normalized number is E.164.
func validatePhone(phone string) bool {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return phone != ""
	}
	return v.Var(phone, "e164") == nil
}

// SendOTP triggers delivery of a one-time password over the side channel.
func SendOTP(otp services.OTPProvider, limiter *OTPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := authTracer.Start(c.Request.Context(), "SendOTP")
		defer span.End()

		var req SendOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		phone := services.NormalizePhone(req.Phone)
		if !validatePhone(phone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
			return
		}

		if !limiter.Allow(phone) {
			observability.OTPSendsTotal.WithLabelValues("rate_limited").Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many OTP requests, try again later"})
			return
		}

		if err := otp.Send(ctx, phone); err != nil {
			slog.Error("Failed to send OTP", "error", err)
			span.RecordError(err)
			observability.OTPSendsTotal.WithLabelValues("error").Inc()
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send the verification code"})
			return
		}

		observability.OTPSendsTotal.WithLabelValues("ok").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "pending"})
	}
}

// VerifyOTP checks a submitted code. When the request names a session, a
// successful check also marks that session verified, so the voice
// connection only needs to send its verification_complete control message.
func VerifyOTP(otp services.OTPProvider, sessions *services.SessionTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := authTracer.Start(c.Request.Context(), "VerifyOTP")
		defer span.End()

		var req VerifyOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		phone := services.NormalizePhone(req.Phone)
		if !validatePhone(phone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
			return
		}

		approved, err := otp.Check(ctx, phone, req.Code)
		if err != nil {
			slog.Error("Failed to check OTP", "error", err)
			span.RecordError(err)
			observability.OTPChecksTotal.WithLabelValues("error").Inc()
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to check the verification code"})
			return
		}
		if !approved {
			observability.OTPChecksTotal.WithLabelValues("denied").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"verified": false})
			return
		}

		if req.SessionID != "" {
			sessions.MarkVerified(req.SessionID)
		}
		observability.OTPChecksTotal.WithLabelValues("ok").Inc()
		c.JSON(http.StatusOK, gin.H{"verified": true})
	}
}
