// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// The neuroatlas CLI operates on study trees produced by the pipeline
// service: it rebuilds report documents, recomputes averages, and
// inspects converted volumes without going through the HTTP surface.
package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/NeuroAtlasLocal/pkg/logging"
)

var (
	dataRoot string
	verbose  bool

	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "neuroatlas",
	Short: "A CLI to inspect and rebuild NeuroAtlas study data",
	Long: `neuroatlas operates directly on the study trees the pipeline service
maintains: per-series volume reports, cross-series averages, consolidated
study documents, and converted NIfTI volumes.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "/data/studies",
		"Root directory holding the study trees")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if verbose {
			level = logging.LevelDebug
		}
		logger = logging.New(logging.Config{
			Level:   level,
			Service: "cli",
		})
	}

	rootCmd.AddCommand(reportCmd, averageCmd, consolidateCmd, seriesCmd)
}
