// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// mediaStorageDirectorySOPClass identifies DICOMDIR index objects, which
// carry no image data and must never enter a series folder.
const mediaStorageDirectorySOPClass = "1.2.840.10008.1.3.10"

// unknownSeries is the fallback series name for files without a readable
// SeriesDescription.
const unknownSeries = "UNKNOWN"

// Upload is one file received by the intake endpoint.
type Upload struct {
	Filename string
	Data     []byte
}

// =============================================================================
// Intake
// =============================================================================

// SaveDicoms files uploaded DICOM objects into per-series folders.
//
// # Description
//
// Each upload is parsed (pixel data skipped) to read its series
// description, which becomes the series folder name under the study's
// DICOM root with spaces collapsed to underscores. Directory index
// objects are dropped twice over: by the conventional DICOMDIR file name
// and by the media storage SOP class in the file meta, since the file
// name is not guaranteed. Saved files gain a .dcm extension when the
// upload lacked one, which the conversion tool requires.
//
// Files that fail to parse are skipped with a warning rather than
// failing the intake; scanners routinely ship non-DICOM artifacts
// alongside the image objects.
//
// # Outputs
//
//   - map[string]int: Files saved per series name.
//   - error: ErrNoDicomFiles when nothing usable was uploaded, or the
//     first filesystem write error.
func SaveDicoms(layout StudyLayout, uploads []Upload, logger *slog.Logger) (map[string]int, error) {
	saved := make(map[string]int)
	for _, up := range uploads {
		base := filepath.Base(up.Filename)
		// Substring, not equality: media ships DICOMDIR.bak, DICOMDIR_1
		// and similar alongside the canonical index file.
		if strings.Contains(strings.ToUpper(base), "DICOMDIR") {
			logger.Info("skipping directory index file", "filename", base)
			continue
		}

		ds, err := dicom.Parse(bytes.NewReader(up.Data), int64(len(up.Data)), nil,
			dicom.SkipPixelData())
		if err != nil {
			logger.Warn("skipping unparseable dicom upload", "filename", base, "error", err)
			continue
		}
		if sopClass := stringElement(&ds, tag.MediaStorageSOPClassUID); sopClass == mediaStorageDirectorySOPClass {
			logger.Info("skipping directory index object", "filename", base)
			continue
		}

		series := seriesName(&ds)
		seriesDir := filepath.Join(layout.DicomDir(), series)
		if err := os.MkdirAll(seriesDir, 0750); err != nil {
			return nil, fmt.Errorf("creating series folder %s: %w", seriesDir, err)
		}
		outPath := filepath.Join(seriesDir, addDcmExtension(base))
		if err := os.WriteFile(outPath, up.Data, 0640); err != nil {
			return nil, fmt.Errorf("writing dicom file %s: %w", outPath, err)
		}
		saved[series]++
	}
	if len(saved) == 0 {
		return nil, ErrNoDicomFiles
	}
	return saved, nil
}

// seriesName extracts the series description as a folder-safe name.
func seriesName(ds *dicom.Dataset) string {
	desc := stringElement(ds, tag.SeriesDescription)
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return unknownSeries
	}
	return SanitizeName(strings.ReplaceAll(desc, " ", "_"))
}

// stringElement reads the first string value of a tag, or "" if the
// element is absent or not string-valued.
func stringElement(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	values, ok := el.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}

// addDcmExtension appends ".dcm" to file names that lack it.
func addDcmExtension(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".dcm") {
		return name
	}
	return name + ".dcm"
}

// DicomSeriesDirs lists the per-series DICOM intake folders, sorted.
func DicomSeriesDirs(layout StudyLayout) ([]string, error) {
	entries, err := os.ReadDir(layout.DicomDir())
	if err != nil {
		return nil, fmt.Errorf("listing dicom series for %s/%s: %w",
			layout.Patient, layout.Study, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}
