// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/engine"
	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [patient] [study]",
	Short: "Rebuilds the per-series report documents for a study",
	Long: `Re-parses the segmentation outputs of every series in the study and
rewrites subcortical.json, cortical.json and general.json. Useful after
fixing a stats file by hand or upgrading the parsers.`,
	Args: cobra.ExactArgs(2),
	Run:  runReportCommand,
}

var averageCmd = &cobra.Command{
	Use:   "average [patient] [study]",
	Short: "Recomputes the cross-series AVERAGES documents for a study",
	Args:  cobra.ExactArgs(2),
	Run:   runAverageCommand,
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate [patient] [study]",
	Short: "Rebuilds the consolidated study-level report documents",
	Args:  cobra.ExactArgs(2),
	Run:   runConsolidateCommand,
}

var seriesCmd = &cobra.Command{
	Use:   "series [patient] [study]",
	Short: "Lists a study's series with their voxel grid dimensions",
	Args:  cobra.ExactArgs(2),
	Run:   runSeriesCommand,
}

// studySeries resolves the layout and series list or exits.
func studySeries(patient, study string) (engine.StudyLayout, []string) {
	layout := engine.NewStudyLayout(dataRoot, patient, study)
	series, err := layout.Series()
	if err != nil {
		log.Fatalf("Error listing series for %s/%s: %v", layout.Patient, layout.Study, err)
	}
	if len(series) == 0 {
		log.Fatalf("No converted series found for %s/%s", layout.Patient, layout.Study)
	}
	return layout, series
}

func runReportCommand(cmd *cobra.Command, args []string) {
	layout, series := studySeries(args[0], args[1])
	builder := report.NewBuilder(logger.Slog())
	for _, s := range series {
		// FastSurfer outputs are included when that stage ran for the study.
		fastDir := layout.FastSurferSubjectDir(s)
		if _, err := os.Stat(fastDir); err != nil {
			fastDir = ""
		}
		err := builder.BuildReports(layout.SubjectDir(s),
			layout.SeriesSamsegDir(s), fastDir, layout.SeriesJSONDir(s))
		if err != nil {
			log.Fatalf("Error building reports for series %s: %v", s, err)
		}
		fmt.Printf("rebuilt reports for series %s\n", s)
	}
}

func runAverageCommand(cmd *cobra.Command, args []string) {
	layout, series := studySeries(args[0], args[1])
	aggregator := report.NewAggregator(logger.Slog())
	if err := aggregator.AverageAll(layout.JSONDir(), series); err != nil {
		log.Fatalf("Error averaging reports: %v", err)
	}
	fmt.Printf("averaged %d series\n", len(series))
}

func runConsolidateCommand(cmd *cobra.Command, args []string) {
	layout, series := studySeries(args[0], args[1])
	aggregator := report.NewAggregator(logger.Slog())
	if err := aggregator.Consolidate(layout.JSONDir(), series); err != nil {
		log.Fatalf("Error consolidating reports: %v", err)
	}
	fmt.Printf("consolidated %d series\n", len(series))
}

func runSeriesCommand(cmd *cobra.Command, args []string) {
	layout, series := studySeries(args[0], args[1])
	for _, s := range series {
		dims, err := engine.VolumeDimensions(layout.VolumePath(s))
		if err != nil {
			logger.Warn("skipping series with unreadable volume", "series", s, "error", err)
			continue
		}
		fmt.Printf("%s\t%d x %d x %d\n", s, dims[0], dims[1], dims[2])
	}
}
