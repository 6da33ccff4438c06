// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing Server-Sent Events to HTTP
// responses.
//
// # Description
//
// SSEWriter abstracts SSE event serialization and writing, enabling
// testability and separation from HTTP response mechanics.
// Implementations handle the SSE wire format (event: type\ndata: json\n\n)
// internally.
//
// Each event is automatically assigned:
//   - Id: UUID v4 for client-side deduplication
//   - CreatedAt: Unix timestamp in milliseconds
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders()
//   - Must be used with http.Flusher-compatible ResponseWriter
type SSEWriter interface {
	// WriteEvent writes a single SSE event and flushes immediately.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteStep writes a step event with the given stage tag.
	WriteStep(step string) error

	// WriteHeartbeat writes a heartbeat event to keep the connection
	// alive while a long stage produces no progress.
	WriteHeartbeat() error
}

// =============================================================================
// Struct Definition
// =============================================================================

// sseWriter implements SSEWriter for HTTP SSE responses.
//
// # Thread Safety
//
// Thread-safe via mutex.
//
// # Limitations
//
//   - Cannot be reused across requests
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter creates an SSEWriter over the given ResponseWriter.
//
// # Outputs
//
//   - SSEWriter: Ready to write SSE events.
//   - error: Non-nil if the ResponseWriter doesn't support flushing.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

// WriteEvent populates event metadata (Id, CreatedAt), serializes to
// JSON, and writes in SSE format. Flushes immediately after writing.
func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event.Id = uuid.New().String()
	event.CreatedAt = time.Now().UnixMilli()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteStep(step string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type: datatypes.EventTypeStep,
		Step: step,
	})
}

func (w *sseWriter) WriteHeartbeat() error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type: datatypes.EventTypeHeartbeat,
	})
}

// SetSSEHeaders configures HTTP response headers for SSE streaming.
// Must be called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEWriter = (*sseWriter)(nil)
