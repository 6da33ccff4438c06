// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report parses segmentation statistics files into volume report
// documents and aggregates them across imaging series.
//
// # Description
//
// The segmentation tools emit a zoo of whitespace-delimited text formats:
// two-column volume tables, paired left/right hemisphere tables, stats
// tables with fixed-size comment headers, and one record-oriented CSV.
// This package normalizes all of them into Document values — a mapping
// from anatomical sub-key (e.g. "hippocampus") to an ordered list of
// VolumeRecord entries — and serializes them to the three canonical JSON
// categories per series: subcortical, cortical, and general.
//
// On top of the per-series documents, the package computes cross-series
// field-wise averages (written under an AVERAGES folder) and a consolidated
// "global" document per category that nests every series plus the averages.
//
// # Failure Model
//
//   - A missing input file is a hard error (ErrStatsFileNotFound).
//   - A malformed row inside a file is never fatal: the row is skipped
//     and a warning is logged, so one bad line cannot sink a whole report.
package report
