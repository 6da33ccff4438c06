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
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// AveragesFolder is the sub-folder of a study's JSON root that holds the
// cross-series averaged report documents.
const AveragesFolder = "AVERAGES"

// Aggregator computes cross-series statistics over per-series report
// documents.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an Aggregator. A nil logger falls back to
// slog.Default().
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// structureSamples accumulates one structure's contributions across the
// study's series: how many records carried the structure, and the numeric
// values seen per field.
type structureSamples struct {
	count  int
	fields map[string][]float64
}

// Average computes the field-wise mean of one report category across a
// study's series and writes it to {jsonRoot}/AVERAGES/{category}.json.
//
// # Description
//
// For every (sub-key, structure) pair present in any series document, the
// record count and per-field sums are accumulated and each field's mean is
// sum divided by the record count, rounded to two decimals. The denominator
// is the number of records carrying the structure, not the number of values
// carrying the field, so a record whose field is null still weighs into that
// field's average. Structures are matched by name, not by row position, so
// series whose tools emitted rows in different orders (or dropped a
// structure entirely) still aggregate correctly. Output records are sorted
// by structure name for stable diffs.
//
// A series whose document is missing or unreadable is skipped with a
// warning, as is a record without a structure name. Non-numeric field
// values (including the JSON nulls marking an absent hemisphere) are logged
// and contribute nothing to the sum.
//
// # Outputs
//
//   - error: Non-nil only when the AVERAGES folder cannot be created or
//     the output document cannot be written.
func (a *Aggregator) Average(jsonRoot string, series []string, category string) error {
	samples := make(map[string]map[string]*structureSamples)
	subKeyOrder := make([]string, 0, 4)

	for _, s := range series {
		path := filepath.Join(jsonRoot, s, FileName(category))
		doc, err := ReadDocument(path)
		if err != nil {
			a.logger.Warn("skipping series in average", "series", s,
				"category", category, "error", err)
			continue
		}
		for subKey, records := range doc {
			byStructure, ok := samples[subKey]
			if !ok {
				byStructure = make(map[string]*structureSamples)
				samples[subKey] = byStructure
				subKeyOrder = append(subKeyOrder, subKey)
			}
			for _, rec := range records {
				name, ok := rec[KeyStructure].(string)
				if !ok {
					a.logger.Warn("skipping record without structure name",
						"series", s, "category", category, "subkey", subKey)
					continue
				}
				acc, ok := byStructure[name]
				if !ok {
					acc = &structureSamples{fields: make(map[string][]float64)}
					byStructure[name] = acc
				}
				acc.count++
				for field, value := range rec {
					if field == KeyStructure {
						continue
					}
					// json.Unmarshal decodes every number as float64.
					v, ok := value.(float64)
					if !ok {
						a.logger.Warn("non-numeric field in averaged record",
							"series", s, "structure", name, "field", field)
						continue
					}
					acc.fields[field] = append(acc.fields[field], v)
				}
			}
		}
	}

	sort.Strings(subKeyOrder)
	averaged := make(Document, len(samples))
	for _, subKey := range subKeyOrder {
		byStructure := samples[subKey]
		names := make([]string, 0, len(byStructure))
		for name := range byStructure {
			names = append(names, name)
		}
		sort.Strings(names)

		records := make([]VolumeRecord, 0, len(names))
		for _, name := range names {
			acc := byStructure[name]
			rec := VolumeRecord{KeyStructure: name}
			for field, values := range acc.fields {
				rec[field] = Round2(floats.Sum(values) / float64(acc.count))
			}
			records = append(records, rec)
		}
		averaged[subKey] = records
	}

	outDir := filepath.Join(jsonRoot, AveragesFolder)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("creating averages folder %s: %w", outDir, err)
	}
	outPath := filepath.Join(outDir, FileName(category))
	if err := WriteDocument(outPath, averaged); err != nil {
		return err
	}
	a.logger.Info("wrote averaged report", "category", category,
		"series", len(series), "path", outPath)
	return nil
}

// AverageAll runs Average for every report category.
func (a *Aggregator) AverageAll(jsonRoot string, series []string) error {
	for _, category := range Categories {
		if err := a.Average(jsonRoot, series, category); err != nil {
			return err
		}
	}
	return nil
}
