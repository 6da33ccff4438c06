// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine drives the imaging pipeline: DICOM intake, NIfTI
// conversion, the segmentation tool chain, and report generation.
//
// # Description
//
// The pipeline is a fixed sequence of stages over one (patient, study)
// pair. Each stage wraps one external neuroimaging tool invocation per
// series (or per study), checked for idempotency against the tool's known
// output files so a re-run resumes instead of recomputing. Stage progress
// is published through a Notifier that the SSE handler drains, and only
// one study may run at a time, enforced by the Guard.
//
// # Failure Model
//
// Stages fail fast: the first series error aborts the stage, the pipeline
// publishes a "failed_<stage>" event, and the guard is released. Partial
// outputs stay on disk and are picked up by the idempotency checks on the
// next run.
package engine
