// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ToolCommands names the external executables the pipeline invokes.
// Overridable so deployments can pin versioned wrappers (e.g. a container
// entry script) without code changes.
type ToolCommands struct {
	Converter           string `yaml:"converter"`
	ReconAll            string `yaml:"recon_all"`
	Samseg              string `yaml:"samseg"`
	SegmentSubregions   string `yaml:"segment_subregions"`
	SegmentHypothalamus string `yaml:"segment_hypothalamus"`

	// FastSurfer is the path of the run_fastsurfer.sh wrapper. Empty
	// disables the FastSurfer stage; it needs a GPU-capable install that
	// most deployments lack.
	FastSurfer string `yaml:"fastsurfer"`
}

// Config carries the pipeline's tunable settings.
//
// # Description
//
// Loaded from an optional YAML file; absent file or absent fields fall
// back to defaults. Parallelism bounds the number of series processed
// concurrently within a stage; Threads is forwarded to tools that accept
// a thread count. Both default to the host CPU count.
type Config struct {
	Tools       ToolCommands `yaml:"tools"`
	Parallelism int          `yaml:"parallelism"`
	Threads     int          `yaml:"threads"`
	EventBuffer int          `yaml:"event_buffer"`
}

// DefaultConfig returns the built-in settings: stock tool names, host CPU
// count for parallelism and threads, and a 16-event stream buffer.
func DefaultConfig() Config {
	return Config{
		Tools: ToolCommands{
			Converter:           "dcm2niix",
			ReconAll:            "recon-all",
			Samseg:              "run_samseg",
			SegmentSubregions:   "segment_subregions",
			SegmentHypothalamus: "mri_segment_hypothalamic_subunits",
		},
		Parallelism: runtime.NumCPU(),
		Threads:     runtime.NumCPU(),
		EventBuffer: 16,
	}
}

// LoadConfig reads a YAML config file, layering it over DefaultConfig.
// An empty path or a missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = runtime.NumCPU()
	}
	if cfg.Threads < 1 {
		cfg.Threads = runtime.NumCPU()
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 16
	}
	return cfg, nil
}
