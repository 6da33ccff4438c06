// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// Record and Document Types
// =============================================================================

// VolumeRecord is a single named measurement extracted from a stats file.
//
// # Description
//
// Records are open maps rather than fixed structs because the set of
// numeric fields varies by source format: unilateral structures carry
// KeyVolume, bilateral pairs carry KeyLHSVolume/KeyRHSVolume, and cortical
// parcellation rows carry surface/thickness/curvature fields. Every record
// carries KeyStructure. The averaging step iterates whatever numeric
// fields are present, so new formats do not require schema changes.
//
// A nil field value serializes as JSON null and marks a side of a
// bilateral pair for which the source file had no row.
type VolumeRecord map[string]any

// Document maps an anatomical sub-key (e.g. "hippocampus", "aseg") to the
// ordered records parsed for it. One Document is serialized per report
// category per series.
type Document map[string][]VolumeRecord

// Well-known VolumeRecord field names. These are wire-visible JSON keys
// and must not change without versioning the report documents.
const (
	KeyStructure = "Structure"
	KeyVolume    = "Volume (mm3)"
	KeyLHSVolume = "LHS Volume (mm3)"
	KeyRHSVolume = "RHS Volume (mm3)"
	KeySurfArea  = "Surface Area (mm2)"
	KeyGrayVol   = "Gray Matter Vol (mm3)"
	KeyThickAvg  = "Thickness Avg (mm)"
	KeyMeanCurv  = "Mean Curvature (mm-1)"
)

// Header sizes of the known stats formats. The counts are fixed properties
// of each file format, never inferred from content.
const (
	skipWMParc     = 66
	skipASeg       = 80
	skipDKTAtlas   = 61
	skipFastSurfer = 55
)

// Round2 rounds half-up (away from zero) to two decimal places.
//
// All report volumes are truncated to this precision at parse time, and
// averaged values are re-rounded the same way, so the JSON documents are
// reproducible bit for bit across runs.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// =============================================================================
// Low-Level File Readers
// =============================================================================

// ReadVolumeFile reads a whitespace-delimited stats file into token rows.
//
// # Description
//
// Splits the file into non-empty lines and tokenizes each line on runs of
// whitespace. Blank lines are dropped; no further interpretation happens
// here — callers pick the token indices their format defines.
//
// # Outputs
//
//   - [][]string: One token slice per non-empty line, in file order.
//   - error: ErrStatsFileNotFound (wrapped with the path) if the file is
//     absent, or the underlying read error.
func ReadVolumeFile(path string) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrStatsFileNotFound, path)
		}
		return nil, fmt.Errorf("reading stats file %s: %w", path, err)
	}

	var rows [][]string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rows = append(rows, strings.Fields(line))
	}
	return rows, nil
}

// ReadVolumeFileSkip reads a stats file and drops a fixed-size header.
//
// The skip count is a format constant (see skipWMParc and friends); if the
// file is shorter than the header, the result is empty rather than an error.
func ReadVolumeFileSkip(path string, skip int) ([][]string, error) {
	rows, err := ReadVolumeFile(path)
	if err != nil {
		return nil, err
	}
	if skip >= len(rows) {
		return nil, nil
	}
	return rows[skip:], nil
}

// =============================================================================
// Row Parsers
// =============================================================================

// ParseTwoColumn parses rows of the form "<structure> <volume>" into
// unilateral records, rounding volumes to two decimals.
//
// Malformed rows (too few tokens, non-numeric volume) are skipped with a
// warning; the remaining rows still parse.
func ParseTwoColumn(rows [][]string, logger *slog.Logger) []VolumeRecord {
	records := make([]VolumeRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			logger.Warn("skipping malformed volume row", "row", i+1, "tokens", len(row))
			continue
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			logger.Warn("skipping non-numeric volume row", "row", i+1, "value", row[1])
			continue
		}
		records = append(records, VolumeRecord{
			KeyStructure: row[0],
			KeyVolume:    Round2(v),
		})
	}
	return records
}

// ParsePairedVolumes zips a left and a right hemisphere volume file into
// bilateral records.
//
// # Description
//
// The two files are expected to be row-aligned: row N of the left file
// describes the same structure as row N of the right file. The structure
// name is taken from the left file. Rows that fail to parse on either side
// are skipped with a warning.
//
// If the files disagree in length the pairing silently truncates to the
// shorter file; structures present on only one side are dropped. This
// mirrors the upstream tools' historical behavior and is deliberately not
// treated as a data-integrity error.
//
// # Outputs
//
//   - []VolumeRecord: Bilateral records with KeyLHSVolume/KeyRHSVolume
//     rounded to two decimals.
//   - error: ErrStatsFileNotFound if either input file is absent.
func ParsePairedVolumes(leftPath, rightPath string, logger *slog.Logger) ([]VolumeRecord, error) {
	left, err := ReadVolumeFile(leftPath)
	if err != nil {
		return nil, err
	}
	right, err := ReadVolumeFile(rightPath)
	if err != nil {
		return nil, err
	}

	n := len(left)
	if len(right) < n {
		n = len(right)
	}

	records := make([]VolumeRecord, 0, n)
	for i := 0; i < n; i++ {
		lrow, rrow := left[i], right[i]
		if len(lrow) < 2 || len(rrow) < 2 {
			logger.Warn("skipping malformed paired row", "row", i+1)
			continue
		}
		lv, lerr := strconv.ParseFloat(lrow[1], 64)
		rv, rerr := strconv.ParseFloat(rrow[1], 64)
		if lerr != nil || rerr != nil {
			logger.Warn("skipping non-numeric paired row", "row", i+1,
				"left", lrow[1], "right", rrow[1])
			continue
		}
		records = append(records, VolumeRecord{
			KeyStructure: lrow[0],
			KeyLHSVolume: Round2(lv),
			KeyRHSVolume: Round2(rv),
		})
	}
	return records, nil
}

// ParseThalamus parses the thalamic nuclei volume file, in which left and
// right measurements for the same nucleus appear as separate rows with
// "Left-" and "Right-" name prefixes.
//
// # Description
//
// Rows are re-paired by their prefix-stripped nucleus name. Record order
// follows the order of the Left- rows. A nucleus missing one side keeps a
// nil value for that side, which serializes as JSON null.
func ParseThalamus(path string, logger *slog.Logger) ([]VolumeRecord, error) {
	rows, err := ReadVolumeFile(path)
	if err != nil {
		return nil, err
	}

	lhs := make(map[string]float64)
	rhs := make(map[string]float64)
	var names []string

	for i, row := range rows {
		if len(row) < 2 {
			logger.Warn("skipping malformed thalamus row", "row", i+1)
			continue
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			logger.Warn("skipping non-numeric thalamus row", "row", i+1, "value", row[1])
			continue
		}
		switch {
		case strings.Contains(row[0], "Left"):
			name := strings.Replace(row[0], "Left-", "", 1)
			lhs[name] = Round2(v)
			names = append(names, name)
		case strings.Contains(row[0], "Right"):
			name := strings.Replace(row[0], "Right-", "", 1)
			rhs[name] = Round2(v)
		}
	}

	records := make([]VolumeRecord, 0, len(names))
	for _, name := range names {
		rec := VolumeRecord{KeyStructure: name}
		if v, ok := lhs[name]; ok {
			rec[KeyLHSVolume] = v
		} else {
			rec[KeyLHSVolume] = nil
		}
		if v, ok := rhs[name]; ok {
			rec[KeyRHSVolume] = v
		} else {
			rec[KeyRHSVolume] = nil
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseFastSurferStats parses a FastSurfer-style stats table (fixed
// 55-line comment header, volume in column 4, name in column 5).
//
// When renameLR is set, "L-"/"R-" name prefixes are rewritten to
// "Left"/"Right" so FastSurfer output lines up with the FreeSurfer naming
// used elsewhere in the reports.
func ParseFastSurferStats(path string, renameLR bool, logger *slog.Logger) ([]VolumeRecord, error) {
	rows, err := ReadVolumeFileSkip(path, skipFastSurfer)
	if err != nil {
		return nil, err
	}

	records := make([]VolumeRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			logger.Warn("skipping short stats row", "row", i+1, "tokens", len(row))
			continue
		}
		v, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			logger.Warn("skipping non-numeric stats row", "row", i+1, "value", row[3])
			continue
		}
		name := row[4]
		if renameLR {
			if strings.HasPrefix(name, "L-") {
				name = "Left" + name[2:]
			} else if strings.HasPrefix(name, "R-") {
				name = "Right" + name[2:]
			}
		}
		records = append(records, VolumeRecord{
			KeyStructure: name,
			KeyVolume:    Round2(v),
		})
	}
	return records, nil
}
