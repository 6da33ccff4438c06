// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import "errors"

var (
	// ErrStatsFileNotFound indicates an expected segmentation output file
	// is absent. Wrapped with the offending path by the parser functions.
	ErrStatsFileNotFound = errors.New("stats file not found")

	// ErrReportNotFound indicates a per-series JSON report document is
	// absent. Recoverable during aggregation (the series is skipped).
	ErrReportNotFound = errors.New("report document not found")

	// ErrEmptyRecord indicates a record-oriented stats file contained no
	// data row after the header.
	ErrEmptyRecord = errors.New("stats file contains no data record")
)
