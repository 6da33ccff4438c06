// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
)

// =============================================================================
// Command Execution
// =============================================================================

// CommandRunner abstracts external tool invocation so the pipeline can be
// tested without the neuroimaging suite installed.
type CommandRunner interface {
	// Run executes a tool to completion, honoring ctx cancellation.
	// Returns a *ToolError for non-zero exits.
	Run(ctx context.Context, name string, args ...string) error
}

// ToolError describes a failed external tool invocation.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %s", e.Tool, e.ExitCode, e.Stderr)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// maxStderrBytes caps captured tool stderr. The segmentation tools are
// chatty; only the tail matters for diagnosis.
const maxStderrBytes = 8 * 1024

// execRunner shells out via os/exec with stderr capture.
type execRunner struct {
	logger *slog.Logger
}

var _ CommandRunner = (*execRunner)(nil)

// NewExecRunner creates the production CommandRunner.
func NewExecRunner(logger *slog.Logger) CommandRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &execRunner{logger: logger}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("executing tool", "tool", name, "args", args)
	err := cmd.Run()
	if err == nil {
		return nil
	}

	tail := stderr.Bytes()
	if len(tail) > maxStderrBytes {
		tail = tail[len(tail)-maxStderrBytes:]
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ToolError{
			Tool:     name,
			ExitCode: exitErr.ExitCode(),
			Stderr:   string(tail),
			Err:      err,
		}
	}
	return &ToolError{Tool: name, ExitCode: -1, Stderr: string(tail), Err: err}
}

// =============================================================================
// Toolset
// =============================================================================

// Toolset binds the pipeline's external tool invocations to a
// CommandRunner and the configured command names.
//
// # Assumptions
//
//   - The configured commands are on PATH of the service process.
//   - SUBJECTS_DIR-style state is always passed explicitly (-sd/--sd), so
//     the tools never depend on process environment.
type Toolset struct {
	runner CommandRunner
	cfg    ToolCommands
}

// NewToolset binds a command runner to the configured tool names.
func NewToolset(runner CommandRunner, cfg ToolCommands) *Toolset {
	return &Toolset{runner: runner, cfg: cfg}
}

// ConvertSeries converts one DICOM series folder into a compressed NIfTI
// volume named after the series.
func (t *Toolset) ConvertSeries(ctx context.Context, dicomSeriesDir, niftiDir, series string) error {
	return t.runner.Run(ctx, t.cfg.Converter,
		"-z", "y", "-b", "n", "-f", series, "-o", niftiDir, dicomSeriesDir)
}

// ReconAll runs the full cortical reconstruction for one series volume.
func (t *Toolset) ReconAll(ctx context.Context, subjectsDir, series, volumePath string) error {
	return t.runner.Run(ctx, t.cfg.ReconAll,
		"-s", series, "-i", volumePath, "-all", "-qcache", "-sd", subjectsDir)
}

// Samseg runs the whole-brain and lesion segmentation on a reconstructed
// brain volume.
func (t *Toolset) Samseg(ctx context.Context, inputVolume, outputDir string) error {
	return t.runner.Run(ctx, t.cfg.Samseg,
		"--input", inputVolume, "--output", outputDir, "--lesion")
}

// SegmentSubregions runs one subregion segmentation (thalamus,
// hippo-amygdala or brainstem) for a reconstructed subject.
func (t *Toolset) SegmentSubregions(ctx context.Context, structure, series, subjectsDir string) error {
	return t.runner.Run(ctx, t.cfg.SegmentSubregions,
		structure, "--cross", series, "--sd", subjectsDir)
}

// SegmentHypothalamus runs the hypothalamic subunit segmentation for a
// reconstructed subject.
func (t *Toolset) SegmentHypothalamus(ctx context.Context, series, subjectsDir string, threads int) error {
	return t.runner.Run(ctx, t.cfg.SegmentHypothalamus,
		"--s", series, "--sd", subjectsDir, "--threads", strconv.Itoa(threads))
}

// RunFastSurfer runs the FastSurfer wrapper script for one subject,
// producing the cerebellum and hypothalamus-v2 segmentations into its own
// subjects tree. The standard whole-brain segmentation is suppressed; the
// reconstruction stage already produced it.
func (t *Toolset) RunFastSurfer(ctx context.Context, t1Volume, series, subjectsDir string, threads int) error {
	return t.runner.Run(ctx, t.cfg.FastSurfer,
		"--t1", t1Volume, "--sid", series, "--sd", subjectsDir,
		"--no_asegdkt", "--parallel", "--threads", strconv.Itoa(threads))
}
