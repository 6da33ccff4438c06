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
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Report categories. Each maps to a "{category}.json" file per series,
// per AVERAGES folder, and at the study root.
const (
	CategorySubcortical = "subcortical"
	CategoryCortical    = "cortical"
	CategoryGeneral     = "general"
)

// Categories lists all report categories in their canonical order.
var Categories = []string{CategorySubcortical, CategoryCortical, CategoryGeneral}

// FileName returns the JSON file name for a report category.
func FileName(category string) string {
	return category + ".json"
}

// =============================================================================
// Builder
// =============================================================================

// Builder assembles the three per-series report documents from a completed
// segmentation output tree.
//
// # Thread Safety
//
// Builder is stateless apart from its logger and safe for concurrent use;
// distinct series write to distinct output folders.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder. A nil logger falls back to slog.Default().
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// BuildReports generates subcortical.json, cortical.json and general.json
// for one series.
//
// # Description
//
// Reads the series' reconstruction tree (fsSubjectDir, containing mri/ and
// stats/) and its lesion segmentation output (samsegDir), parses every
// known stats file, and serializes the three category documents into
// outDir. When fastSubjectDir is non-empty the FastSurfer cerebellum and
// hypothalamus-v2 tables are merged into the subcortical document. The
// output folder is created if absent and existing report files are
// overwritten, so the operation is idempotent at the file level.
//
// # Outputs
//
//   - error: Non-nil when a mandatory input file is missing or unreadable
//     (ErrStatsFileNotFound in the chain). Failures writing an individual
//     output file are logged and do not abort the remaining categories.
func (b *Builder) BuildReports(fsSubjectDir, samsegDir, fastSubjectDir, outDir string) error {
	mriDir := filepath.Join(fsSubjectDir, "mri")
	statsDir := filepath.Join(fsSubjectDir, "stats")

	subcortical, err := b.Subcortical(mriDir)
	if err != nil {
		return fmt.Errorf("building subcortical report: %w", err)
	}
	if fastSubjectDir != "" {
		err := b.appendFastSurfer(subcortical, filepath.Join(fastSubjectDir, "stats"))
		if err != nil {
			return fmt.Errorf("building fastsurfer report: %w", err)
		}
	}
	cortical, err := b.Cortical(statsDir)
	if err != nil {
		return fmt.Errorf("building cortical report: %w", err)
	}
	general, err := b.General(statsDir, samsegDir)
	if err != nil {
		return fmt.Errorf("building general report: %w", err)
	}

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("creating report folder %s: %w", outDir, err)
	}

	for category, doc := range map[string]Document{
		CategorySubcortical: subcortical,
		CategoryCortical:    cortical,
		CategoryGeneral:     general,
	} {
		path := filepath.Join(outDir, FileName(category))
		if err := WriteDocument(path, doc); err != nil {
			b.logger.Error("failed to write report document",
				"category", category, "path", path, "error", err)
			continue
		}
		b.logger.Info("wrote report document", "category", category, "path", path)
	}
	return nil
}

// Subcortical parses the five subcortical structure reports from the
// series' mri/ folder.
func (b *Builder) Subcortical(mriDir string) (Document, error) {
	hippocampus, err := ParsePairedVolumes(
		filepath.Join(mriDir, "lh.hippoSfVolumes.txt"),
		filepath.Join(mriDir, "rh.hippoSfVolumes.txt"), b.logger)
	if err != nil {
		return nil, err
	}
	thalamus, err := ParseThalamus(filepath.Join(mriDir, "ThalamicNuclei.volumes.txt"), b.logger)
	if err != nil {
		return nil, err
	}
	amygdala, err := ParsePairedVolumes(
		filepath.Join(mriDir, "lh.amygNucVolumes.txt"),
		filepath.Join(mriDir, "rh.amygNucVolumes.txt"), b.logger)
	if err != nil {
		return nil, err
	}
	brainStemRows, err := ReadVolumeFile(filepath.Join(mriDir, "brainstemSsLabels.volumes.txt"))
	if err != nil {
		return nil, err
	}
	hypothalamus, err := ParseHypothalamusCSV(
		filepath.Join(mriDir, "hypothalamic_subunits_volumes.v1.csv"), b.logger)
	if err != nil {
		return nil, err
	}

	return Document{
		"hippocampus":  hippocampus,
		"thalamus":     thalamus,
		"amygdala":     amygdala,
		"brain_stem":   ParseTwoColumn(brainStemRows, b.logger),
		"hypothalamus": hypothalamus,
	}, nil
}

// appendFastSurfer merges the FastSurfer stats tables into a subcortical
// document: the cerebellum parcels as-is and the hypothalamus-v2 subunits
// with their L-/R- prefixes rewritten to match the FreeSurfer naming.
func (b *Builder) appendFastSurfer(doc Document, fastStatsDir string) error {
	cerebellum, err := ParseFastSurferStats(
		filepath.Join(fastStatsDir, "cerebellum.CerebNet.stats"), false, b.logger)
	if err != nil {
		return err
	}
	hypothalamusV2, err := ParseFastSurferStats(
		filepath.Join(fastStatsDir, "hypothalamus.HypVINN.stats"), true, b.logger)
	if err != nil {
		return err
	}
	doc["cerebellum"] = cerebellum
	doc["hypothalamus_v2"] = hypothalamusV2
	return nil
}

// Cortical parses whole-brain, white-matter and cortical parcellation
// metrics from the series' stats/ folder.
func (b *Builder) Cortical(statsDir string) (Document, error) {
	brain, err := b.parseBrainVol(filepath.Join(statsDir, "brainvol.stats"))
	if err != nil {
		return nil, err
	}
	whiteMatter, err := b.parseWhiteMatter(filepath.Join(statsDir, "wmparc.stats"))
	if err != nil {
		return nil, err
	}
	lhAtlas, err := b.parseDKTAtlas(filepath.Join(statsDir, "lh.aparc.DKTatlas.stats"))
	if err != nil {
		return nil, err
	}
	rhAtlas, err := b.parseDKTAtlas(filepath.Join(statsDir, "rh.aparc.DKTatlas.stats"))
	if err != nil {
		return nil, err
	}

	return Document{
		"brain":       brain,
		"whitematter": whiteMatter,
		"lh_dkatlas":  lhAtlas,
		"rh_dkatlas":  rhAtlas,
	}, nil
}

// General parses the whole-segmentation (aseg) volumes and the lesion
// findings. Hypointensity rows are moved from aseg into the lesions key
// alongside the lesion segmentation tool's output.
func (b *Builder) General(statsDir, samsegDir string) (Document, error) {
	asegRows, err := ReadVolumeFileSkip(filepath.Join(statsDir, "aseg.stats"), skipASeg)
	if err != nil {
		return nil, err
	}

	var aseg, lesions []VolumeRecord
	for i, row := range asegRows {
		rec, ok := b.segRecord(row, i)
		if !ok {
			continue
		}
		if strings.Contains(row[4], "hypointensities") {
			lesions = append(lesions, rec)
		} else {
			aseg = append(aseg, rec)
		}
	}

	samsegRows, err := ReadVolumeFile(filepath.Join(samsegDir, "samseg.fs.stats"))
	if err != nil {
		return nil, err
	}
	for i, row := range samsegRows {
		if len(row) < 5 || !strings.Contains(row[4], "Lesions") {
			continue
		}
		rec, ok := b.segRecord(row, i)
		if !ok {
			continue
		}
		lesions = append(lesions, rec)
	}

	return Document{
		"aseg":    aseg,
		"lesions": lesions,
	}, nil
}

// segRecord extracts a {structure, raw volume} record from an aseg-format
// row (volume in column 4, name in column 5). Values deliberately keep the
// tool's full precision; these categories are not rounded at parse time.
func (b *Builder) segRecord(row []string, idx int) (VolumeRecord, bool) {
	if len(row) < 5 {
		b.logger.Warn("skipping short segmentation row", "row", idx+1, "tokens", len(row))
		return nil, false
	}
	v, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		b.logger.Warn("skipping non-numeric segmentation row", "row", idx+1, "value", row[3])
		return nil, false
	}
	return VolumeRecord{KeyStructure: row[4], KeyVolume: v}, true
}

// parseBrainVol parses brainvol.stats "# Measure" comment lines. The
// structure name is the comma-stripped third token and the volume is the
// second-to-last token minus its trailing comma, truncated to an integer.
func (b *Builder) parseBrainVol(path string) ([]VolumeRecord, error) {
	rows, err := ReadVolumeFile(path)
	if err != nil {
		return nil, err
	}
	records := make([]VolumeRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < 4 {
			b.logger.Warn("skipping short brainvol row", "row", i+1, "tokens", len(row))
			continue
		}
		raw := row[len(row)-2]
		if len(raw) < 2 {
			b.logger.Warn("skipping malformed brainvol row", "row", i+1, "value", raw)
			continue
		}
		v, err := strconv.ParseFloat(raw[:len(raw)-1], 64)
		if err != nil {
			b.logger.Warn("skipping non-numeric brainvol row", "row", i+1, "value", raw)
			continue
		}
		records = append(records, VolumeRecord{
			KeyStructure: strings.ReplaceAll(row[2], ",", ""),
			KeyVolume:    int(v),
		})
	}
	return records, nil
}

// parseWhiteMatter pairs the wm-lh-*/wm-rh-* rows of wmparc.stats into
// bilateral records keyed by the prefix-stripped parcel name.
func (b *Builder) parseWhiteMatter(path string) ([]VolumeRecord, error) {
	rows, err := ReadVolumeFileSkip(path, skipWMParc)
	if err != nil {
		return nil, err
	}

	lhs := make(map[string]float64)
	rhs := make(map[string]float64)
	var names []string

	for i, row := range rows {
		if len(row) < 5 {
			b.logger.Warn("skipping short wmparc row", "row", i+1, "tokens", len(row))
			continue
		}
		v, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			b.logger.Warn("skipping non-numeric wmparc row", "row", i+1, "value", row[3])
			continue
		}
		switch {
		case strings.Contains(row[4], "wm-lh"):
			name := strings.Replace(row[4], "wm-lh-", "", 1)
			lhs[name] = v
			names = append(names, name)
		case strings.Contains(row[4], "wm-rh"):
			rhs[strings.Replace(row[4], "wm-rh-", "", 1)] = v
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

// parseDKTAtlas parses a cortical parcellation table (DKT atlas) into
// records carrying surface area, gray matter volume, average thickness and
// mean curvature per parcel.
func (b *Builder) parseDKTAtlas(path string) ([]VolumeRecord, error) {
	rows, err := ReadVolumeFileSkip(path, skipDKTAtlas)
	if err != nil {
		return nil, err
	}

	records := make([]VolumeRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			b.logger.Warn("skipping short parcellation row", "row", i+1, "tokens", len(row))
			continue
		}
		surfArea, err1 := strconv.Atoi(row[2])
		grayVol, err2 := strconv.Atoi(row[3])
		thickAvg, err3 := strconv.ParseFloat(row[4], 64)
		meanCurv, err4 := strconv.ParseFloat(row[6], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			b.logger.Warn("skipping non-numeric parcellation row", "row", i+1, "fields", row)
			continue
		}
		records = append(records, VolumeRecord{
			KeyStructure: row[0],
			KeySurfArea:  surfArea,
			KeyGrayVol:   grayVol,
			KeyThickAvg:  thickAvg,
			KeyMeanCurv:  meanCurv,
		})
	}
	return records, nil
}

// =============================================================================
// Document I/O
// =============================================================================

// WriteDocument serializes a Document as indented JSON, overwriting any
// existing file at path.
func WriteDocument(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling report document: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing report document %s: %w", path, err)
	}
	return nil
}

// ReadDocument loads a Document previously written by WriteDocument.
//
// Returns ErrReportNotFound (wrapped with the path) when the file is
// absent, so aggregation callers can distinguish "not produced yet" from a
// corrupt file.
func ReadDocument(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, path)
		}
		return nil, fmt.Errorf("reading report document %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding report document %s: %w", path, err)
	}
	return doc, nil
}
