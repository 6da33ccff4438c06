// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"errors"
	"testing"
)

func TestParseHypothalamusCSV(t *testing.T) {
	dir := t.TempDir()

	t.Run("splits columns into bilateral records", func(t *testing.T) {
		path := writeFile(t, dir, "hyp.csv",
			"subject,left anterior-inferior,right anterior-inferior,whole left,whole right\n"+
				"series1,12.5,13.25,700.5,710.25\n")

		records, err := ParseHypothalamusCSV(path, testLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if records[0][KeyStructure] != "anterior-inferior" {
			t.Errorf("unexpected first structure: %v", records[0][KeyStructure])
		}
		if records[0][KeyLHSVolume] != 12.5 || records[0][KeyRHSVolume] != 13.25 {
			t.Errorf("unexpected subunit volumes: %v", records[0])
		}
		// The inconsistently named whole-hypothalamus pair is renamed
		// and appended after the subunits.
		if records[1][KeyStructure] != "whole" {
			t.Errorf("expected whole appended last, got %v", records[1][KeyStructure])
		}
		if records[1][KeyLHSVolume] != 700.5 || records[1][KeyRHSVolume] != 710.25 {
			t.Errorf("unexpected whole volumes: %v", records[1])
		}
	})

	t.Run("missing side yields null", func(t *testing.T) {
		path := writeFile(t, dir, "hyp_one_side.csv",
			"subject,left tubular superior\nseries1,42.5\n")
		records, err := ParseHypothalamusCSV(path, testLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
		if records[0][KeyRHSVolume] != nil {
			t.Errorf("expected nil RHS, got %v", records[0][KeyRHSVolume])
		}
	})

	t.Run("header without data row", func(t *testing.T) {
		path := writeFile(t, dir, "hyp_empty.csv", "subject,left whole\n")
		_, err := ParseHypothalamusCSV(path, testLogger())
		if !errors.Is(err, ErrEmptyRecord) {
			t.Fatalf("expected ErrEmptyRecord, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ParseHypothalamusCSV(dir+"/absent.csv", testLogger())
		if !errors.Is(err, ErrStatsFileNotFound) {
			t.Fatalf("expected ErrStatsFileNotFound, got %v", err)
		}
	})
}
