// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Study sub-folder names. Every (patient, study) pair owns one of each.
const (
	FolderDicom      = "DICOM"
	FolderNifti      = "NIFTI"
	FolderFreesurfer = "FREESURFER"
	FolderSamseg     = "SAMSEG"
	FolderWorkflows  = "WORKFLOWS"
	FolderJSON       = "JSON"
	FolderCorestats  = "CORESTATS"

	// FolderFastSurfer holds the optional FastSurfer subjects tree. Not
	// part of the fixed study folders; created only when the stage runs.
	FolderFastSurfer = "FASTSURFER"
)

var studyFolders = []string{
	FolderDicom, FolderNifti, FolderFreesurfer,
	FolderSamseg, FolderWorkflows, FolderJSON, FolderCorestats,
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeName strips every character outside [A-Za-z0-9_-] from a
// caller-supplied identifier. Patient and study names become path
// segments, so this is the only line of defense against traversal.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "")
}

// =============================================================================
// StudyLayout
// =============================================================================

// StudyLayout resolves the on-disk folder tree for one (patient, study)
// pair under the data root.
//
// # Description
//
// The tree is {root}/{patient}/{study}/ with one fixed sub-folder per
// pipeline artifact kind: raw DICOM input, converted NIfTI volumes,
// per-series reconstruction subjects, lesion segmentation output, tool
// workflow scratch, JSON reports, and exported core stats. Names are
// sanitized at construction, so a layout never points outside the root.
type StudyLayout struct {
	Root    string
	Patient string
	Study   string
}

// NewStudyLayout builds a layout with sanitized patient and study names.
func NewStudyLayout(root, patient, study string) StudyLayout {
	return StudyLayout{
		Root:    root,
		Patient: SanitizeName(patient),
		Study:   SanitizeName(study),
	}
}

// StudyDir returns {root}/{patient}/{study}.
func (l StudyLayout) StudyDir() string {
	return filepath.Join(l.Root, l.Patient, l.Study)
}

// DicomDir returns the raw DICOM intake folder.
func (l StudyLayout) DicomDir() string { return filepath.Join(l.StudyDir(), FolderDicom) }

// NiftiDir returns the converted NIfTI volume folder.
func (l StudyLayout) NiftiDir() string { return filepath.Join(l.StudyDir(), FolderNifti) }

// FreesurferDir returns the reconstruction subjects folder. Each series
// becomes one subject directory beneath it.
func (l StudyLayout) FreesurferDir() string { return filepath.Join(l.StudyDir(), FolderFreesurfer) }

// SamsegDir returns the lesion segmentation output folder.
func (l StudyLayout) SamsegDir() string { return filepath.Join(l.StudyDir(), FolderSamseg) }

// WorkflowsDir returns the tool scratch folder.
func (l StudyLayout) WorkflowsDir() string { return filepath.Join(l.StudyDir(), FolderWorkflows) }

// JSONDir returns the report document root.
func (l StudyLayout) JSONDir() string { return filepath.Join(l.StudyDir(), FolderJSON) }

// CorestatsDir returns the exported raw stats folder.
func (l StudyLayout) CorestatsDir() string { return filepath.Join(l.StudyDir(), FolderCorestats) }

// SubjectDir returns the reconstruction subject folder for one series.
func (l StudyLayout) SubjectDir(series string) string {
	return filepath.Join(l.FreesurferDir(), series)
}

// SeriesSamsegDir returns the lesion segmentation folder for one series.
func (l StudyLayout) SeriesSamsegDir(series string) string {
	return filepath.Join(l.SamsegDir(), series)
}

// SeriesJSONDir returns the report folder for one series.
func (l StudyLayout) SeriesJSONDir(series string) string {
	return filepath.Join(l.JSONDir(), series)
}

// FastSurferDir returns the FastSurfer subjects folder. Kept apart from
// FreesurferDir so the two tools never write into the same subject tree.
func (l StudyLayout) FastSurferDir() string { return filepath.Join(l.StudyDir(), FolderFastSurfer) }

// FastSurferSubjectDir returns the FastSurfer subject folder for one series.
func (l StudyLayout) FastSurferSubjectDir(series string) string {
	return filepath.Join(l.FastSurferDir(), series)
}

// Exists reports whether the study folder tree is present on disk.
func (l StudyLayout) Exists() bool {
	info, err := os.Stat(l.StudyDir())
	return err == nil && info.IsDir()
}

// CreateFolders creates the full study tree, idempotently.
func (l StudyLayout) CreateFolders() error {
	for _, folder := range studyFolders {
		dir := filepath.Join(l.StudyDir(), folder)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating study folder %s: %w", dir, err)
		}
	}
	return nil
}

// NiftiSuffix is the extension of converted volumes. A series is named
// by its volume file minus this suffix.
const NiftiSuffix = ".nii.gz"

// VolumePath returns the converted NIfTI volume path for one series.
func (l StudyLayout) VolumePath(series string) string {
	return filepath.Join(l.NiftiDir(), series+NiftiSuffix)
}

// Series lists the series names of the study, derived from the converted
// NIfTI volumes and sorted for deterministic stage order.
func (l StudyLayout) Series() ([]string, error) {
	entries, err := os.ReadDir(l.NiftiDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrStudyNotFound, l.Patient, l.Study)
		}
		return nil, fmt.Errorf("listing series for %s/%s: %w", l.Patient, l.Study, err)
	}
	var series []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), NiftiSuffix) {
			continue
		}
		series = append(series, strings.TrimSuffix(e.Name(), NiftiSuffix))
	}
	sort.Strings(series)
	return series, nil
}
