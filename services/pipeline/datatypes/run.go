// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and event types for the pipeline
// service.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxIdentifierLength bounds patient and study identifiers. They
	// become path segments, so length alone is the only remaining bound
	// after sanitization.
	MaxIdentifierLength = 128

	// MaxUploadFiles bounds files per intake request. A full multi-series
	// study from a clinical scanner stays well under this.
	MaxUploadFiles = 10000
)

// runValidate is the validator instance for pipeline datatypes.
var runValidate *validator.Validate

func init() {
	runValidate = validator.New()
}

// RunRequest carries the form fields of a pipeline intake request. The
// DICOM payload itself arrives as multipart file parts and is handled
// separately by the handler.
//
// # Validation
//
// Uses go-playground/validator:
//   - Patient: required, 1-128 characters
//   - Study: required, 1-128 characters
type RunRequest struct {
	Patient string `form:"patient_name" validate:"required,min=1,max=128"`
	Study   string `form:"study_name" validate:"required,min=1,max=128"`
}

// Validate validates the RunRequest fields. Call after binding the
// multipart form.
func (r *RunRequest) Validate() error {
	return runValidate.Struct(r)
}
