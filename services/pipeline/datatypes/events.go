// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Stream event types carried on the progress stream.
const (
	// EventTypeStep announces a completed (or failed) pipeline stage.
	EventTypeStep = "step"

	// EventTypeHeartbeat keeps the connection alive while a long stage
	// (reconstruction can run for hours) produces no events.
	EventTypeHeartbeat = "heartbeat"
)

// StreamEvent is one server-sent event on the pipeline progress stream.
//
// # Fields
//
//   - Id: UUID v4, assigned by the writer for client-side deduplication.
//   - Type: EventTypeStep or EventTypeHeartbeat.
//   - Step: Stage tag for step events ("dicom", "nifti", ...,
//     "failed_<stage>"); empty for heartbeats.
//   - CreatedAt: Unix timestamp in milliseconds, assigned by the writer.
type StreamEvent struct {
	Id        string `json:"id"`
	Type      string `json:"type"`
	Step      string `json:"step,omitempty"`
	CreatedAt int64  `json:"created_at"`
}
