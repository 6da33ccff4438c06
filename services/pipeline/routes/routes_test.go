// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/engine"
	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/handlers"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func TestSetupRoutes(t *testing.T) {
	router := gin.New()
	p := engine.NewPipeline(t.TempDir(), engine.DefaultConfig(),
		engine.NewExecRunner(testLogger()), nil, testLogger())

	SetupRoutes(router, p, handlers.DefaultHeartbeatInterval, testLogger())

	// Verify core routes are registered
	coreRoutes := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/pipeline/run"},
		{"GET", "/v1/pipeline/stream"},
		{"GET", "/v1/reports/:category/:patient/:study"},
		{"GET", "/v1/series/:patient/:study"},
	}

	registered := router.Routes()
	for _, want := range coreRoutes {
		found := false
		for _, r := range registered {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("route %s %s not registered", want.method, want.path)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := gin.New()
	p := engine.NewPipeline(t.TempDir(), engine.DefaultConfig(),
		engine.NewExecRunner(testLogger()), nil, testLogger())
	SetupRoutes(router, p, handlers.DefaultHeartbeatInterval, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
