// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ParseHypothalamusCSV parses the hypothalamic subunit volume CSV
// (one header row of named columns plus a single data record).
//
// # Description
//
// The segmentation tool emits columns like "left anterior-inferior",
// "right tubular superior", plus an inconsistently named pair
// "whole left"/"whole right" and a non-numeric "subject" column. This
// parser drops the subject column, renames the whole-hypothalamus pair to
// the uniform left-/right- prefixed scheme ("left whole"/"right whole",
// appended after the subunit columns), and then splits the columns into
// bilateral records by their "left "/"right " prefixes.
//
// Column order from the file is preserved, so record order is stable
// across runs of the same tool version.
//
// # Outputs
//
//   - []VolumeRecord: One bilateral record per subunit name. A side whose
//     column is missing carries a nil value (JSON null).
//   - error: ErrStatsFileNotFound if the file is absent, ErrEmptyRecord if
//     the file has a header but no data row, or a CSV syntax error.
func ParseHypothalamusCSV(path string, logger *slog.Logger) ([]VolumeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrStatsFileNotFound, path)
		}
		return nil, fmt.Errorf("opening hypothalamus csv %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing hypothalamus csv %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRecord, path)
	}

	header, record := rows[0], rows[1]

	// Rebuild the record as ordered column/value pairs, dropping the
	// subject column and holding the "whole" pair aside for renaming.
	type column struct {
		name  string
		value string
	}
	var columns []column
	var wholeLeft, wholeRight *string

	for i, name := range header {
		if i >= len(record) {
			break
		}
		name = strings.TrimSpace(name)
		value := record[i]
		switch name {
		case "subject":
			continue
		case "whole left":
			wholeLeft = &value
		case "whole right":
			wholeRight = &value
		default:
			columns = append(columns, column{name: name, value: value})
		}
	}
	if wholeLeft != nil {
		columns = append(columns, column{name: "left whole", value: *wholeLeft})
	}
	if wholeRight != nil {
		columns = append(columns, column{name: "right whole", value: *wholeRight})
	}

	lhs := make(map[string]float64)
	rhs := make(map[string]float64)
	var names []string

	for _, col := range columns {
		v, err := strconv.ParseFloat(strings.TrimSpace(col.value), 64)
		if err != nil {
			logger.Warn("skipping non-numeric hypothalamus column",
				"column", col.name, "value", col.value)
			continue
		}
		switch {
		case strings.HasPrefix(col.name, "left "):
			name := strings.TrimPrefix(col.name, "left ")
			lhs[name] = v
			names = append(names, name)
		case strings.HasPrefix(col.name, "right "):
			rhs[strings.TrimPrefix(col.name, "right ")] = v
		default:
			logger.Warn("skipping unpaired hypothalamus column", "column", col.name)
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
