// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/engine"
	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/handlers"
)

// SetupRoutes registers the pipeline service's HTTP surface.
func SetupRoutes(router *gin.Engine, p *engine.Pipeline, heartbeat time.Duration, logger *slog.Logger) {

	router.GET("/health", handlers.HandleHealth(p))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		pipeline := v1.Group("/pipeline")
		{
			pipeline.POST("/run", handlers.HandleRunPipeline(p, logger))
			pipeline.GET("/stream", handlers.HandleStream(p, heartbeat, logger))
		}
		v1.GET("/reports/:category/:patient/:study", handlers.HandleGetReport(p, logger))
		v1.GET("/series/:patient/:study", handlers.HandleGetSeries(p, logger))
	}
}
