// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Step is one idempotent unit of stage work, usually a single external
// tool invocation for one series.
//
// # Fields
//
//   - Name: Stage tag, for logs.
//   - Series: Series the step operates on, for logs.
//   - Outputs: Files whose joint existence proves the step already ran.
//     An empty list means the step always runs.
//   - Run: The work itself.
type Step struct {
	Name    string
	Series  string
	Outputs []string
	Run     func(ctx context.Context) error
}

// StepRunner executes Steps with output-based idempotency checks.
//
// # Description
//
// The segmentation tools take minutes to hours per series and are safe
// to skip when their outputs exist, so a re-run of a crashed or
// partially completed study resumes where it stopped instead of
// recomputing. The check is purely existence-based; truncated outputs
// from a killed tool must be removed by hand before re-running.
type StepRunner struct {
	logger *slog.Logger
}

// NewStepRunner creates a StepRunner. A nil logger falls back to
// slog.Default().
func NewStepRunner(logger *slog.Logger) *StepRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepRunner{logger: logger}
}

// Do runs the step unless all its outputs already exist.
func (r *StepRunner) Do(ctx context.Context, step Step) error {
	if len(step.Outputs) > 0 && allExist(step.Outputs) {
		r.logger.Info("skipping completed step",
			"stage", step.Name, "series", step.Series)
		return nil
	}
	r.logger.Info("running step", "stage", step.Name, "series", step.Series)
	if err := step.Run(ctx); err != nil {
		return fmt.Errorf("stage %s, series %s: %w", step.Name, step.Series, err)
	}
	return nil
}

func allExist(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
