// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides HTTP handlers for the pipeline service.
package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/datatypes"
	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/engine"
	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/observability"
)

// dicomsFormField is the multipart field carrying the DICOM files.
const dicomsFormField = "dicoms"

// HandleRunPipeline accepts a DICOM study upload and starts a pipeline
// run in the background.
//
// # Description
//
// Expects a multipart form with patient_name, study_name, and one or
// more file parts under "dicoms". The upload is read fully before the
// single-flight guard is claimed, so a rejected request costs no
// pipeline state. On acceptance the run proceeds in a detached
// goroutine (the request context would die with the response) and the
// client follows progress on the stream endpoint.
//
// # Outputs
//
//   - 202: {"message": "Processing started"}
//   - 400: Validation failure, empty upload, or a run already in flight.
func HandleRunPipeline(p *engine.Pipeline, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RunRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
			return
		}
		files := form.File[dicomsFormField]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no dicom files in upload"})
			return
		}
		if len(files) > datatypes.MaxUploadFiles {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(
				"too many files: %d exceeds limit of %d", len(files), datatypes.MaxUploadFiles)})
			return
		}

		uploads, err := readUploads(files)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reading upload: " + err.Error()})
			return
		}

		if !p.Guard().TryAcquire() {
			observability.DefaultMetrics.RecordRun("rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": engine.ErrPipelineBusy.Error()})
			return
		}

		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("pipeline run panicked", "panic", r)
					p.Guard().Release()
				}
			}()
			// Errors are already logged and streamed by the pipeline.
			_ = p.Run(context.Background(), req.Patient, req.Study, uploads)
		}()

		c.JSON(http.StatusAccepted, gin.H{"message": "Processing started"})
	}
}

// readUploads drains the multipart file parts into memory. Individual
// DICOM objects are small (a slice apiece); the study as a whole is
// bounded by the server's multipart memory limit.
func readUploads(files []*multipart.FileHeader) ([]engine.Upload, error) {
	uploads := make([]engine.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, engine.Upload{Filename: fh.Filename, Data: data})
	}
	return uploads, nil
}
