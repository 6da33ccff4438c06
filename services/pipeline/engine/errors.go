// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "errors"

var (
	// ErrPipelineBusy indicates a run is already in flight. Only one
	// study processes at a time; callers should retry after completion.
	ErrPipelineBusy = errors.New("a pipeline run is already in progress")

	// ErrNoDicomFiles indicates an intake request carried no usable
	// DICOM payload after filtering.
	ErrNoDicomFiles = errors.New("no dicom files in upload")

	// ErrVolumeNotFound indicates a NIfTI volume expected for a series
	// is absent from the study's NIFTI folder.
	ErrVolumeNotFound = errors.New("nifti volume not found")

	// ErrStudyNotFound indicates the requested (patient, study) pair has
	// no folder tree on disk.
	ErrStudyNotFound = errors.New("study not found")
)
