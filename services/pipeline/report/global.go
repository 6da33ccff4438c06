// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Consolidate writes one study-level document per category that nests the
// per-series documents plus the AVERAGES document under their folder names.
//
// # Description
//
// The consolidated file lands at {jsonRoot}/{category}.json and has the
// shape {"<series>": <doc>, ..., "AVERAGES": <doc>}. It is what the HTTP
// report endpoints serve. A series (or the AVERAGES folder) whose document
// is missing is logged and omitted rather than failing the study, so a
// partially rebuilt study still consolidates what exists.
func (a *Aggregator) Consolidate(jsonRoot string, series []string) error {
	for _, category := range Categories {
		consolidated := make(map[string]Document, len(series)+1)
		for _, member := range append(append([]string{}, series...), AveragesFolder) {
			doc, err := ReadDocument(filepath.Join(jsonRoot, member, FileName(category)))
			if err != nil {
				a.logger.Warn("omitting member from consolidated report",
					"member", member, "category", category, "error", err)
				continue
			}
			consolidated[member] = doc
		}

		data, err := json.MarshalIndent(consolidated, "", "    ")
		if err != nil {
			return fmt.Errorf("marshaling consolidated %s report: %w", category, err)
		}
		outPath := filepath.Join(jsonRoot, FileName(category))
		if err := os.WriteFile(outPath, data, 0640); err != nil {
			return fmt.Errorf("writing consolidated report %s: %w", outPath, err)
		}
		a.logger.Info("wrote consolidated report", "category", category, "path", outPath)
	}
	return nil
}

// ReadConsolidated loads a study-level consolidated document for serving.
//
// Returns ErrReportNotFound when the category file has not been produced
// yet, which the HTTP layer maps to a "processing not complete" response.
func ReadConsolidated(jsonRoot, category string) (map[string]Document, error) {
	path := filepath.Join(jsonRoot, FileName(category))
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, path)
		}
		return nil, fmt.Errorf("reading consolidated report %s: %w", path, err)
	}
	var doc map[string]Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding consolidated report %s: %w", path, err)
	}
	return doc, nil
}
