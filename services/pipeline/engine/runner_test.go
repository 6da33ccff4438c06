// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0640); err != nil {
		t.Fatalf("touch: %v", err)
	}
}

func TestStepRunnerSkipsWhenOutputsExist(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "volume.nii.gz")
	touch(t, out)

	ran := false
	r := NewStepRunner(testLogger())
	err := r.Do(context.Background(), Step{
		Name:    StageNifti,
		Series:  "series1",
		Outputs: []string{out},
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran {
		t.Fatal("step ran despite existing outputs")
	}
}

func TestStepRunnerRunsWhenAnyOutputMissing(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.txt")
	touch(t, present)

	ran := false
	r := NewStepRunner(testLogger())
	err := r.Do(context.Background(), Step{
		Name:    StageSubs,
		Series:  "series1",
		Outputs: []string{present, filepath.Join(dir, "missing.txt")},
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("step should run when an output is missing")
	}
}

func TestStepRunnerWrapsErrors(t *testing.T) {
	r := NewStepRunner(testLogger())
	err := r.Do(context.Background(), Step{
		Name:   StageRecon,
		Series: "series1",
		Run: func(ctx context.Context) error {
			return &ToolError{Tool: "recon-all", ExitCode: 1, Stderr: "boom"}
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected wrapped ToolError, got %v", err)
	}
	if toolErr.Tool != "recon-all" {
		t.Errorf("unexpected tool: %s", toolErr.Tool)
	}
}
