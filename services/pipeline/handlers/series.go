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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/engine"
)

// HandleGetSeries lists a study's imaging series with their voxel grid
// dimensions.
//
// # Description
//
// Responds with {"<series>": [x, y, z], ...} read from the converted
// NIfTI volume headers. A series whose volume header cannot be read is
// omitted with a warning rather than failing the listing; conversion may
// still be in flight for that series.
func HandleGetSeries(p *engine.Pipeline, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		layout := p.Layout(c.Param("patient"), c.Param("study"))
		series, err := layout.Series()
		if err != nil {
			if errors.Is(err, engine.ErrStudyNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"message": processingIncompleteMessage})
				return
			}
			logger.Error("failed to list series",
				"patient", layout.Patient, "study", layout.Study, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list series"})
			return
		}

		dims := make(map[string][3]int, len(series))
		for _, s := range series {
			d, err := engine.VolumeDimensions(layout.VolumePath(s))
			if err != nil {
				logger.Warn("skipping series with unreadable volume",
					"series", s, "error", err)
				continue
			}
			dims[s] = d
		}
		c.JSON(http.StatusOK, dims)
	}
}
