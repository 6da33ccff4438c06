// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/engine"
	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/report"
)

// processingIncompleteMessage is served when a report is requested
// before the pipeline has produced it.
const processingIncompleteMessage = "Data processing not yet completed - please wait until completion"

// HandleGetReport serves a study's consolidated report for one category.
//
// # Description
//
// Path parameters: category (subcortical, cortical or general), patient,
// study. The consolidated document nests every series plus the AVERAGES
// entry. A missing document means the study either doesn't exist or
// hasn't finished processing; both yield the same 404 so the endpoint
// reveals nothing about which patients exist.
func HandleGetReport(p *engine.Pipeline, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := c.Param("category")
		if !slices.Contains(report.Categories, category) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report category: " + category})
			return
		}

		layout := p.Layout(c.Param("patient"), c.Param("study"))
		doc, err := report.ReadConsolidated(layout.JSONDir(), category)
		if err != nil {
			if errors.Is(err, report.ErrReportNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"message": processingIncompleteMessage})
				return
			}
			logger.Error("failed to read consolidated report",
				"category", category, "patient", layout.Patient,
				"study", layout.Study, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read report"})
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}
