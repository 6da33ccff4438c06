// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/engine"
	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/report"
)

func reportRouter(p *engine.Pipeline) *gin.Engine {
	router := gin.New()
	router.GET("/v1/reports/:category/:patient/:study", HandleGetReport(p, testLogger()))
	router.GET("/v1/series/:patient/:study", HandleGetSeries(p, testLogger()))
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetReportUnknownCategory(t *testing.T) {
	p := testPipeline(t)
	rec := get(reportRouter(p), "/v1/reports/cerebellum/p1/s1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGetReportNotReady(t *testing.T) {
	p := testPipeline(t)
	rec := get(reportRouter(p), "/v1/reports/subcortical/p1/s1")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not yet completed") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleGetReportServesConsolidated(t *testing.T) {
	p := testPipeline(t)
	layout := p.Layout("p1", "s1")
	if err := layout.CreateFolders(); err != nil {
		t.Fatalf("creating study: %v", err)
	}

	consolidated := map[string]report.Document{
		"series1": {
			"hippocampus": {{report.KeyStructure: "CA1", report.KeyLHSVolume: 100.0}},
		},
	}
	raw, err := json.Marshal(consolidated)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	path := filepath.Join(layout.JSONDir(), report.FileName(report.CategorySubcortical))
	if err := os.WriteFile(path, raw, 0640); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	rec := get(reportRouter(p), "/v1/reports/subcortical/p1/s1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got map[string]report.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if _, ok := got["series1"]; !ok {
		t.Errorf("missing series1 in response: %s", rec.Body.String())
	}
}

func TestHandleGetSeriesNotFound(t *testing.T) {
	p := testPipeline(t)
	rec := get(reportRouter(p), "/v1/series/ghost/none")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
