// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Pipeline stage tags, in execution order. These are wire-visible values
// carried in SSE step events and must not change without versioning the
// stream.
const (
	StageDicom     = "dicom"
	StageNifti     = "nifti"
	StageRecon     = "recon"
	StageLesions   = "lesions"
	StageSubs      = "subs"
	StageHyp       = "hyp"
	StageJSON      = "json"
	StageCorestats = "corestats"

	// StageFastSurfer only appears on the stream when a FastSurfer
	// command is configured; it runs between hyp and json.
	StageFastSurfer = "fastsurfer"
)

// FailurePrefix marks a stage-failure event ("failed_<stage>").
const FailurePrefix = "failed_"

// Stages lists the stage tags in execution order.
var Stages = []string{
	StageDicom, StageNifti, StageRecon, StageLesions,
	StageSubs, StageHyp, StageJSON, StageCorestats,
}

// =============================================================================
// Notifier
// =============================================================================

// Notifier fans pipeline progress events out to the SSE stream handler.
//
// # Description
//
// The pipeline publishes a step tag as each stage completes (or fails).
// Events are buffered in a bounded channel; when the buffer is full the
// oldest event is dropped so a slow or absent stream consumer can never
// block the pipeline. There is no replay: a consumer that connects
// mid-run sees only events published after it attached.
//
// # Thread Safety
//
// Publish and Next are safe for concurrent use. The drop-oldest path is
// serialized by a mutex so two concurrent publishers cannot both evict.
type Notifier struct {
	mu     sync.Mutex
	events chan string
	logger *slog.Logger
}

// NewNotifier creates a Notifier buffering up to size events. A size
// below 1 defaults to 16.
func NewNotifier(size int, logger *slog.Logger) *Notifier {
	if size < 1 {
		size = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		events: make(chan string, size),
		logger: logger,
	}
}

// Publish enqueues a step event, evicting the oldest buffered event if
// the buffer is full. Never blocks.
func (n *Notifier) Publish(step string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for {
		select {
		case n.events <- step:
			return
		default:
			select {
			case dropped := <-n.events:
				n.logger.Warn("dropping unconsumed pipeline event", "step", dropped)
			default:
			}
		}
	}
}

// Fail publishes the failure event for a stage ("failed_<stage>").
func (n *Notifier) Fail(stage string) {
	n.Publish(FailurePrefix + stage)
}

// Next waits up to timeout for the next event.
//
// # Outputs
//
//   - string: The step tag, when ok is true.
//   - bool: False when the timeout elapsed with no event; the stream
//     handler emits a heartbeat in that case.
func (n *Notifier) Next(timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case step := <-n.events:
		return step, true
	case <-timer.C:
		return "", false
	}
}
