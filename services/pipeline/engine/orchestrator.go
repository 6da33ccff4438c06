// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/observability"
	"github.com/AleutianAI/NeuroAtlasLocal/services/pipeline/report"
)

// Subregion structures passed to the subregion segmentation tool, each
// with the complete output set proving the segmentation already ran. A
// partial set (a crash between the volumes table and the label volume)
// must trigger a re-run, so every file is checked.
var subregionStructures = []struct {
	structure string
	outputs   []string
}{
	{"thalamus", []string{
		"mri/ThalamicNuclei.mgz",
		"mri/ThalamicNuclei.volumes.txt",
	}},
	{"hippo-amygdala", []string{
		"mri/lh.hippoSfVolumes.txt",
		"mri/rh.hippoSfVolumes.txt",
		"mri/lh.amygNucVolumes.txt",
		"mri/rh.amygNucVolumes.txt",
		"mri/lh.hippoAmygLabels.mgz",
		"mri/rh.hippoAmygLabels.mgz",
	}},
	{"brainstem", []string{
		"mri/brainstemSsLabels.mgz",
		"mri/brainstemSsLabels.volumes.txt",
	}},
}

// reconKeyFiles prove a subject's cortical reconstruction completed.
// recon-all cannot resume a half-finished subject safely, so the check
// demands the late-stage surface and stats outputs, not just the folder.
var reconKeyFiles = []string{
	"surf/lh.white",
	"surf/rh.white",
	"stats/lh.aparc.stats",
	"stats/rh.aparc.stats",
	"mri/aparc+aseg.mgz",
}

// hypothalamusOutput is the CSV the hypothalamic segmentation emits.
const hypothalamusOutput = "hypothalamic_subunits_volumes.v1.csv"

// fastSurferOutputs prove a subject's FastSurfer segmentations completed,
// relative to its FastSurfer subject folder.
var fastSurferOutputs = []string{
	"mri/cerebellum.CerebNet.nii.gz",
	"mri/hypothalamus.HypVINN.nii.gz",
	"mri/hypothalamus_mask.HypVINN.nii.gz",
	"stats/cerebellum.CerebNet.stats",
	"stats/hypothalamus.HypVINN.stats",
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline runs the full imaging chain for one study: DICOM intake,
// NIfTI conversion, reconstruction, segmentations, report generation and
// core stats export.
//
// # Thread Safety
//
// A Pipeline is shared by all HTTP handlers. The Guard serializes runs;
// within a run, per-series work is parallelized up to Config.Parallelism.
type Pipeline struct {
	root       string
	cfg        Config
	tools      *Toolset
	steps      *StepRunner
	guard      *Guard
	notifier   *Notifier
	builder    *report.Builder
	aggregator *report.Aggregator
	metrics    *observability.PipelineMetrics
	logger     *slog.Logger
}

// NewPipeline wires a Pipeline over the given data root.
//
// # Inputs
//
//   - root: Data root under which every study tree lives.
//   - cfg: Tool names and concurrency settings.
//   - runner: Command runner; pass NewExecRunner in production.
//   - metrics: May be nil (all metric paths are nil-safe).
//   - logger: May be nil; falls back to slog.Default().
func NewPipeline(root string, cfg Config, runner CommandRunner,
	metrics *observability.PipelineMetrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		root:       root,
		cfg:        cfg,
		tools:      NewToolset(runner, cfg.Tools),
		steps:      NewStepRunner(logger),
		guard:      NewGuard(),
		notifier:   NewNotifier(cfg.EventBuffer, logger),
		builder:    report.NewBuilder(logger),
		aggregator: report.NewAggregator(logger),
		metrics:    metrics,
		logger:     logger,
	}
}

// Guard exposes the single-flight latch; the intake handler acquires it
// before starting a run.
func (p *Pipeline) Guard() *Guard { return p.guard }

// Notifier exposes the progress event source for the stream handler.
func (p *Pipeline) Notifier() *Notifier { return p.notifier }

// Layout resolves the study tree for a (patient, study) pair.
func (p *Pipeline) Layout(patient, study string) StudyLayout {
	return NewStudyLayout(p.root, patient, study)
}

// Run executes the full stage sequence for one study.
//
// # Description
//
// The caller must hold the Guard; Run releases it on return. Stages run
// in a fixed order and fail fast: the first error publishes a
// "failed_<stage>" event and aborts the run, leaving completed outputs
// on disk for the idempotency checks of the next attempt. Each
// successful stage publishes its tag to the progress stream.
func (p *Pipeline) Run(ctx context.Context, patient, study string, uploads []Upload) (err error) {
	defer p.guard.Release()
	p.metrics.SetActive(true)
	defer p.metrics.SetActive(false)

	layout := p.Layout(patient, study)
	p.logger.Info("pipeline run starting",
		"patient", layout.Patient, "study", layout.Study, "uploads", len(uploads))

	defer func() {
		if err != nil {
			p.metrics.RecordRun("error")
			return
		}
		p.metrics.RecordRun("success")
		p.logger.Info("pipeline run complete",
			"patient", layout.Patient, "study", layout.Study)
	}()

	type stageFn struct {
		tag string
		fn  func(context.Context, StudyLayout) error
	}
	stages := []stageFn{
		{StageDicom, func(ctx context.Context, l StudyLayout) error { return p.stageDicom(l, uploads) }},
		{StageNifti, p.stageNifti},
		{StageRecon, p.stageRecon},
		{StageLesions, p.stageLesions},
		{StageSubs, p.stageSubregions},
		{StageHyp, p.stageHypothalamus},
	}
	if p.cfg.Tools.FastSurfer != "" {
		stages = append(stages, stageFn{StageFastSurfer, p.stageFastSurfer})
	}
	stages = append(stages,
		stageFn{StageJSON, p.stageReports},
		stageFn{StageCorestats, p.stageCorestats},
	)
	for _, s := range stages {
		if err = p.runStage(ctx, s.tag, layout, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// runStage times one stage, records its metrics, and publishes the
// completion or failure event.
func (p *Pipeline) runStage(ctx context.Context, tag string, layout StudyLayout,
	fn func(context.Context, StudyLayout) error) error {
	start := time.Now()
	if err := fn(ctx, layout); err != nil {
		p.metrics.RecordStage(tag, "error", time.Since(start).Seconds())
		p.notifier.Fail(tag)
		p.logger.Error("pipeline stage failed", "stage", tag,
			"patient", layout.Patient, "study", layout.Study, "error", err)
		return err
	}
	p.metrics.RecordStage(tag, "success", time.Since(start).Seconds())
	p.notifier.Publish(tag)
	return nil
}

// =============================================================================
// Stages
// =============================================================================

func (p *Pipeline) stageDicom(layout StudyLayout, uploads []Upload) error {
	if err := layout.CreateFolders(); err != nil {
		return err
	}
	saved, err := SaveDicoms(layout, uploads, p.logger)
	if err != nil {
		return err
	}
	for series, count := range saved {
		p.logger.Info("dicom series filed", "series", series, "files", count)
	}
	return nil
}

func (p *Pipeline) stageNifti(ctx context.Context, layout StudyLayout) error {
	seriesDirs, err := DicomSeriesDirs(layout)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallelism)
	for _, series := range seriesDirs {
		series := series
		g.Go(func() error {
			return p.steps.Do(gctx, Step{
				Name:    StageNifti,
				Series:  series,
				Outputs: []string{layout.VolumePath(series)},
				Run: func(ctx context.Context) error {
					return p.tools.ConvertSeries(ctx,
						filepath.Join(layout.DicomDir(), series),
						layout.NiftiDir(), series)
				},
			})
		})
	}
	return g.Wait()
}

// stageRecon runs cortical reconstruction series by series. The tool
// already saturates the host on its own; parallelizing subjects would
// thrash memory rather than save time.
func (p *Pipeline) stageRecon(ctx context.Context, layout StudyLayout) error {
	series, err := layout.Series()
	if err != nil {
		return err
	}
	for _, s := range series {
		outputs := make([]string, 0, len(reconKeyFiles))
		for _, kf := range reconKeyFiles {
			outputs = append(outputs, filepath.Join(layout.SubjectDir(s), kf))
		}
		err := p.steps.Do(ctx, Step{
			Name:    StageRecon,
			Series:  s,
			Outputs: outputs,
			Run: func(ctx context.Context) error {
				return p.tools.ReconAll(ctx, layout.FreesurferDir(), s, layout.VolumePath(s))
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) stageLesions(ctx context.Context, layout StudyLayout) error {
	return p.forEachSeries(ctx, layout, func(gctx context.Context, s string) error {
		outDir := layout.SeriesSamsegDir(s)
		return p.steps.Do(gctx, Step{
			Name:    StageLesions,
			Series:  s,
			Outputs: []string{filepath.Join(outDir, "samseg.stats")},
			Run: func(ctx context.Context) error {
				return p.tools.Samseg(ctx,
					filepath.Join(layout.SubjectDir(s), "mri", "brain.mgz"), outDir)
			},
		})
	})
}

func (p *Pipeline) stageSubregions(ctx context.Context, layout StudyLayout) error {
	return p.forEachSeries(ctx, layout, func(gctx context.Context, s string) error {
		for _, sub := range subregionStructures {
			outputs := make([]string, 0, len(sub.outputs))
			for _, f := range sub.outputs {
				outputs = append(outputs, filepath.Join(layout.SubjectDir(s), f))
			}
			err := p.steps.Do(gctx, Step{
				Name:    StageSubs,
				Series:  s,
				Outputs: outputs,
				Run: func(ctx context.Context) error {
					return p.tools.SegmentSubregions(ctx, sub.structure, s, layout.FreesurferDir())
				},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// stageHypothalamus runs series by series; the tool parallelizes
// internally via its thread count.
func (p *Pipeline) stageHypothalamus(ctx context.Context, layout StudyLayout) error {
	series, err := layout.Series()
	if err != nil {
		return err
	}
	for _, s := range series {
		err := p.steps.Do(ctx, Step{
			Name:    StageHyp,
			Series:  s,
			Outputs: []string{filepath.Join(layout.SubjectDir(s), "mri", hypothalamusOutput)},
			Run: func(ctx context.Context) error {
				return p.tools.SegmentHypothalamus(ctx, s, layout.FreesurferDir(), p.cfg.Threads)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// stageFastSurfer runs the optional FastSurfer segmentations series by
// series, into their own subjects tree so the reconstruction outputs stay
// untouched. Like the hypothalamic stage, the tool parallelizes internally.
func (p *Pipeline) stageFastSurfer(ctx context.Context, layout StudyLayout) error {
	series, err := layout.Series()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(layout.FastSurferDir(), 0750); err != nil {
		return fmt.Errorf("creating fastsurfer folder: %w", err)
	}
	for _, s := range series {
		outputs := make([]string, 0, len(fastSurferOutputs))
		for _, f := range fastSurferOutputs {
			outputs = append(outputs, filepath.Join(layout.FastSurferSubjectDir(s), f))
		}
		err := p.steps.Do(ctx, Step{
			Name:    StageFastSurfer,
			Series:  s,
			Outputs: outputs,
			Run: func(ctx context.Context) error {
				return p.tools.RunFastSurfer(ctx,
					filepath.Join(layout.SubjectDir(s), "mri", "T1.mgz"),
					s, layout.FastSurferDir(), p.cfg.Threads)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) stageReports(ctx context.Context, layout StudyLayout) error {
	series, err := layout.Series()
	if err != nil {
		return err
	}
	for _, s := range series {
		if err := ctx.Err(); err != nil {
			return err
		}
		fastDir := ""
		if p.cfg.Tools.FastSurfer != "" {
			fastDir = layout.FastSurferSubjectDir(s)
		}
		err := p.builder.BuildReports(layout.SubjectDir(s),
			layout.SeriesSamsegDir(s), fastDir, layout.SeriesJSONDir(s))
		if err != nil {
			return fmt.Errorf("series %s: %w", s, err)
		}
	}
	if err := p.aggregator.AverageAll(layout.JSONDir(), series); err != nil {
		return err
	}
	return p.aggregator.Consolidate(layout.JSONDir(), series)
}

func (p *Pipeline) stageCorestats(ctx context.Context, layout StudyLayout) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	series, err := layout.Series()
	if err != nil {
		return err
	}
	return ExportCorestats(layout, series, p.logger)
}

// forEachSeries runs fn for every series of the study, bounded by the
// configured parallelism, failing fast on the first error.
func (p *Pipeline) forEachSeries(ctx context.Context, layout StudyLayout,
	fn func(ctx context.Context, series string) error) error {
	series, err := layout.Series()
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallelism)
	for _, s := range series {
		s := s
		g.Go(func() error { return fn(gctx, s) })
	}
	return g.Wait()
}
