// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ExportCorestats copies the raw segmentation statistics of every series
// into the study's CORESTATS folder for bulk download.
//
// # Description
//
// Two sources feed the export, per series: every stats/*.stats table
// (renamed to .txt so downstream viewers open them as plain text) and
// every mri/*.txt volume file. Existing exports are overwritten, so the
// stage is idempotent by construction and carries no pending check.
func ExportCorestats(layout StudyLayout, series []string, logger *slog.Logger) error {
	for _, s := range series {
		outDir := filepath.Join(layout.CorestatsDir(), s)
		if err := os.MkdirAll(outDir, 0750); err != nil {
			return fmt.Errorf("creating corestats folder %s: %w", outDir, err)
		}

		statsDir := filepath.Join(layout.SubjectDir(s), "stats")
		if err := exportMatching(statsDir, outDir, ".stats", true, logger); err != nil {
			return err
		}
		mriDir := filepath.Join(layout.SubjectDir(s), "mri")
		if err := exportMatching(mriDir, outDir, ".txt", false, logger); err != nil {
			return err
		}
		logger.Info("exported core stats", "series", s, "folder", outDir)
	}
	return nil
}

// exportMatching copies files with the given extension from src to dst,
// optionally rewriting the extension to .txt.
func exportMatching(src, dst, ext string, rename bool, logger *slog.Logger) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("corestats source folder missing", "folder", src)
			return nil
		}
		return fmt.Errorf("listing %s: %w", src, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		name := e.Name()
		if rename {
			name = strings.TrimSuffix(name, ext) + ".txt"
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
