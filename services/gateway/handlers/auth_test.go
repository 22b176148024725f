// Copyright (C) 2025 FinCove Pvt. Ltd.
// Tests for the OTP side-channel endpoints

package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/fincove/maya/services/gateway/services"
)

type stubOTP struct {
	sendErr   error
	approved  bool
	checkErr  error
	lastPhone string
	lastCode  string
}

func (s *stubOTP) Send(ctx context.Context, phone string) error {
	s.lastPhone = phone
	return s.sendErr
}

func (s *stubOTP) Check(ctx context.Context, phone, code string) (bool, error) {
	s.lastPhone = phone
	s.lastCode = code
	return s.approved, s.checkErr
}

func newAuthRouter(otp services.OTPProvider, limiter *OTPLimiter,
	sessions *services.SessionTable) *gin.Engine {

	if limiter == nil {
		limiter = NewOTPLimiter(rate.Inf, 1)
	}
	if sessions == nil {
		sessions = services.NewSessionTable()
	}
	router := gin.New()
	router.POST("/v1/auth/send-otp", SendOTP(otp, limiter))
	router.POST("/v1/auth/verify-otp", VerifyOTP(otp, sessions))
	return router
}

func postBody(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestSendOTP(t *testing.T) {
	t.Run("valid phone sends", func(t *testing.T) {
		otp := &stubOTP{}
		router := newAuthRouter(otp, nil, nil)

		w := postBody(router, "/v1/auth/send-otp", `{"phone":"98765 43210"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "+919876543210", otp.lastPhone)
	})

	t.Run("missing phone is rejected", func(t *testing.T) {
		router := newAuthRouter(&stubOTP{}, nil, nil)
		w := postBody(router, "/v1/auth/send-otp", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non-numeric phone is rejected", func(t *testing.T) {
		router := newAuthRouter(&stubOTP{}, nil, nil)
		w := postBody(router, "/v1/auth/send-otp", `{"phone":"not-a-number"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("provider failure maps to bad gateway", func(t *testing.T) {
		router := newAuthRouter(&stubOTP{sendErr: errors.New("twilio down")}, nil, nil)
		w := postBody(router, "/v1/auth/send-otp", `{"phone":"9876543210"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("rate limit kicks in per phone", func(t *testing.T) {
		limiter := NewOTPLimiter(rate.Limit(0), 1)
		router := newAuthRouter(&stubOTP{}, limiter, nil)

		first := postBody(router, "/v1/auth/send-otp", `{"phone":"9876543210"}`)
		assert.Equal(t, http.StatusOK, first.Code)

		second := postBody(router, "/v1/auth/send-otp", `{"phone":"9876543210"}`)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)

		// A different phone has its own bucket.
		other := postBody(router, "/v1/auth/send-otp", `{"phone":"9876500000"}`)
		assert.Equal(t, http.StatusOK, other.Code)
	})
}

func TestVerifyOTP(t *testing.T) {
	t.Run("approved code", func(t *testing.T) {
		otp := &stubOTP{approved: true}
		router := newAuthRouter(otp, nil, nil)

		w := postBody(router, "/v1/auth/verify-otp", `{"phone":"9876543210","code":"123456"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "123456", otp.lastCode)
	})

	t.Run("wrong code", func(t *testing.T) {
		router := newAuthRouter(&stubOTP{approved: false}, nil, nil)
		w := postBody(router, "/v1/auth/verify-otp", `{"phone":"9876543210","code":"000000"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("non-numeric code is rejected", func(t *testing.T) {
		router := newAuthRouter(&stubOTP{approved: true}, nil, nil)
		w := postBody(router, "/v1/auth/verify-otp", `{"phone":"9876543210","code":"abcdef"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("approved code with a session marks it verified", func(t *testing.T) {
		sessions := services.NewSessionTable()
		sessions.Touch("sess-1")
		router := newAuthRouter(&stubOTP{approved: true}, nil, sessions)

		w := postBody(router, "/v1/auth/verify-otp",
			`{"phone":"9876543210","code":"123456","session_id":"sess-1"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, sessions.IsVerified("sess-1"))
	})

	t.Run("wrong code leaves the session unverified", func(t *testing.T) {
		sessions := services.NewSessionTable()
		sessions.Touch("sess-1")
		router := newAuthRouter(&stubOTP{approved: false}, nil, sessions)

		postBody(router, "/v1/auth/verify-otp",
			`{"phone":"9876543210","code":"000000","session_id":"sess-1"}`)
		assert.False(t, sessions.IsVerified("sess-1"))
	})

	t.Run("provider failure maps to bad gateway", func(t *testing.T) {
		router := newAuthRouter(&stubOTP{checkErr: errors.New("twilio down")}, nil, nil)
		w := postBody(router, "/v1/auth/verify-otp", `{"phone":"9876543210","code":"123456"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}
