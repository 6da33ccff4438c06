// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/engine"
	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/observability"
)

// DefaultHeartbeatInterval paces keepalive events on an otherwise idle
// progress stream. Reconstruction stages can be silent for hours; load
// balancers typically cut idle connections after 60 seconds.
const DefaultHeartbeatInterval = 15 * time.Second

// HandleStream serves the pipeline progress stream as Server-Sent
// Events.
//
// # Description
//
// Drains the pipeline's notifier: each stage tag becomes a step event,
// and heartbeat events fill the gaps whenever no stage completes within
// the heartbeat interval. There is no replay; a client that connects
// mid-run sees only subsequent stages. The stream ends when the client
// disconnects (write failure or context cancellation).
//
// # Inputs
//
//   - p: The shared pipeline whose notifier is drained.
//   - heartbeat: Keepalive interval; values <= 0 use the default.
func HandleStream(p *engine.Pipeline, heartbeat time.Duration, logger *slog.Logger) gin.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return func(c *gin.Context) {
		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			step, ok := p.Notifier().Next(heartbeat)
			if !ok {
				observability.DefaultMetrics.RecordHeartbeat()
				if err := writer.WriteHeartbeat(); err != nil {
					logger.Debug("stream client disconnected", "error", err)
					return
				}
				continue
			}
			if err := writer.WriteStep(step); err != nil {
				logger.Debug("stream client disconnected", "error", err)
				return
			}
		}
	}
}
