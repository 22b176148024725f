// Copyright (C) 2025 FinCove Pvt. Ltd.
// Tests for the gateway route table

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/fincove/maya/services/gateway/handlers"
	"github.com/fincove/maya/services/gateway/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	router := gin.New()
	sessions := services.NewSessionTable()
	SetupRoutes(router, Deps{
		Voice: handlers.VoiceDeps{
			Sessions: sessions,
			Gate:     services.NewGate(sessions),
		},
		Sessions: sessions,
	})
	return router
}

func TestSetupRoutes_RegistersExpectedRoutes(t *testing.T) {
	router := newTestRouter()

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/v1/voice/ws"},
		{"POST", "/v1/auth/send-otp"},
		{"POST", "/v1/auth/verify-otp"},
		{"POST", "/v1/documents"},
		{"GET", "/v1/documents"},
		{"GET", "/v1/sessions"},
		{"GET", "/v1/sessions/:sessionId/history"},
		{"DELETE", "/v1/sessions/:sessionId"},
	}

	registered := make(map[string]bool)
	for _, route := range router.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range expected {
		assert.True(t, registered[want.method+" "+want.path],
			"missing route %s %s", want.method, want.path)
	}
}

func TestSetupRoutes_HealthAndMetricsServe(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestSetupRoutes_UnknownRouteIs404(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/nope", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
