// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fixtureSubject lays out a minimal but complete segmentation output
// tree for one series and returns (subjectDir, samsegDir).
func fixtureSubject(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	subjectDir := filepath.Join(root, "FREESURFER", "series1")
	samsegDir := filepath.Join(root, "SAMSEG", "series1")
	mriDir := filepath.Join(subjectDir, "mri")
	statsDir := filepath.Join(subjectDir, "stats")
	for _, d := range []string{mriDir, statsDir, samsegDir} {
		if err := os.MkdirAll(d, 0750); err != nil {
			t.Fatalf("creating fixture dir: %v", err)
		}
	}

	header := func(n int) string { return strings.Repeat("# header line\n", n) }

	writeFile(t, mriDir, "lh.hippoSfVolumes.txt", "CA1 100.456\nCA3 50.25\n")
	writeFile(t, mriDir, "rh.hippoSfVolumes.txt", "CA1 110.0\nCA3 55.75\n")
	writeFile(t, mriDir, "lh.amygNucVolumes.txt", "Basal-nucleus 200.5\n")
	writeFile(t, mriDir, "rh.amygNucVolumes.txt", "Basal-nucleus 210.25\n")
	writeFile(t, mriDir, "ThalamicNuclei.volumes.txt", "Left-AV 120.125\nRight-AV 118.333\n")
	writeFile(t, mriDir, "brainstemSsLabels.volumes.txt", "Midbrain 123.456\nPons 99.5\n")
	writeFile(t, mriDir, "hypothalamic_subunits_volumes.v1.csv",
		"subject,left anterior-inferior,right anterior-inferior,whole left,whole right\n"+
			"series1,12.5,13.25,700.5,710.25\n")

	writeFile(t, statsDir, "brainvol.stats",
		"# Measure BrainSeg, BrainSegVol, Brain Segmentation Volume, 1243340.000000, mm^3\n"+
			"# Measure Cortex, CortexVol, Total cortical gray matter volume, 501234.500000, mm^3\n")
	writeFile(t, statsDir, "wmparc.stats", header(skipWMParc)+
		"1 3001 1234 567.8 wm-lh-bankssts 0 0 0 0\n"+
		"2 4001 1200 550.1 wm-rh-bankssts 0 0 0 0\n")
	dktRow := "bankssts 1000 800 2000 2.5 0.5 0.12 0.03 10 1.1\n"
	writeFile(t, statsDir, "lh.aparc.DKTatlas.stats", header(skipDKTAtlas)+dktRow)
	writeFile(t, statsDir, "rh.aparc.DKTatlas.stats", header(skipDKTAtlas)+dktRow)
	writeFile(t, statsDir, "aseg.stats", header(skipASeg)+
		"10 4 1234 5678.9 Left-Lateral-Ventricle 0 0 0 0\n"+
		"11 77 100 250.5 WM-hypointensities 0 0 0 0\n")

	writeFile(t, samsegDir, "samseg.fs.stats",
		"12 99 300 622.5 Lesions 0\n"+
			"13 2 400 100.0 Left-Cerebral-White-Matter 0\n")

	return subjectDir, samsegDir
}

func TestBuilderSubcortical(t *testing.T) {
	subjectDir, _ := fixtureSubject(t)
	b := NewBuilder(testLogger())

	doc, err := b.Subcortical(filepath.Join(subjectDir, "mri"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"hippocampus", "thalamus", "amygdala", "brain_stem", "hypothalamus"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing subcortical key %q", key)
		}
	}
	if doc["hippocampus"][0][KeyLHSVolume] != 100.46 {
		t.Errorf("unexpected hippocampus LHS: %v", doc["hippocampus"][0])
	}
	if doc["brain_stem"][0][KeyVolume] != 123.46 {
		t.Errorf("unexpected brain stem volume: %v", doc["brain_stem"][0])
	}
}

func TestBuilderCortical(t *testing.T) {
	subjectDir, _ := fixtureSubject(t)
	b := NewBuilder(testLogger())

	doc, err := b.Cortical(filepath.Join(subjectDir, "stats"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	brain := doc["brain"]
	if len(brain) != 2 {
		t.Fatalf("expected 2 brain measures, got %d", len(brain))
	}
	if brain[0][KeyStructure] != "BrainSeg" || brain[0][KeyVolume] != 1243340 {
		t.Errorf("unexpected brain measure: %v", brain[0])
	}

	wm := doc["whitematter"]
	if len(wm) != 1 {
		t.Fatalf("expected 1 whitematter record, got %d", len(wm))
	}
	if wm[0][KeyStructure] != "bankssts" {
		t.Errorf("expected prefix-stripped name, got %v", wm[0][KeyStructure])
	}
	if wm[0][KeyLHSVolume] != 567.8 || wm[0][KeyRHSVolume] != 550.1 {
		t.Errorf("unexpected whitematter volumes: %v", wm[0])
	}

	lh := doc["lh_dkatlas"]
	if len(lh) != 1 {
		t.Fatalf("expected 1 parcellation record, got %d", len(lh))
	}
	rec := lh[0]
	if rec[KeySurfArea] != 800 || rec[KeyGrayVol] != 2000 {
		t.Errorf("unexpected parcel areas: %v", rec)
	}
	if rec[KeyThickAvg] != 2.5 || rec[KeyMeanCurv] != 0.12 {
		t.Errorf("unexpected parcel metrics: %v", rec)
	}
}

func TestBuilderGeneral(t *testing.T) {
	subjectDir, samsegDir := fixtureSubject(t)
	b := NewBuilder(testLogger())

	doc, err := b.General(filepath.Join(subjectDir, "stats"), samsegDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	aseg := doc["aseg"]
	if len(aseg) != 1 {
		t.Fatalf("expected 1 aseg record, got %d", len(aseg))
	}
	if aseg[0][KeyStructure] != "Left-Lateral-Ventricle" || aseg[0][KeyVolume] != 5678.9 {
		t.Errorf("unexpected aseg record: %v", aseg[0])
	}

	// Hypointensities from aseg plus the lesion tool's Lesions row,
	// nothing else from the samseg table.
	lesions := doc["lesions"]
	if len(lesions) != 2 {
		t.Fatalf("expected 2 lesion records, got %d", len(lesions))
	}
	if lesions[0][KeyStructure] != "WM-hypointensities" || lesions[0][KeyVolume] != 250.5 {
		t.Errorf("unexpected hypointensity record: %v", lesions[0])
	}
	if lesions[1][KeyStructure] != "Lesions" || lesions[1][KeyVolume] != 622.5 {
		t.Errorf("unexpected lesion record: %v", lesions[1])
	}
}

func TestBuildReportsWritesAllCategories(t *testing.T) {
	subjectDir, samsegDir := fixtureSubject(t)
	outDir := filepath.Join(t.TempDir(), "JSON", "series1")
	b := NewBuilder(testLogger())

	if err := b.BuildReports(subjectDir, samsegDir, "", outDir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, category := range Categories {
		doc, err := ReadDocument(filepath.Join(outDir, FileName(category)))
		if err != nil {
			t.Fatalf("reading %s report: %v", category, err)
		}
		if len(doc) == 0 {
			t.Errorf("%s report is empty", category)
		}
	}
}

func TestBuildReportsMergesFastSurfer(t *testing.T) {
	subjectDir, samsegDir := fixtureSubject(t)
	fastSubjectDir := filepath.Join(t.TempDir(), "FASTSURFER", "series1")
	fastStatsDir := filepath.Join(fastSubjectDir, "stats")
	if err := os.MkdirAll(fastStatsDir, 0750); err != nil {
		t.Fatalf("creating fastsurfer fixture dir: %v", err)
	}
	header := strings.Repeat("# header line\n", 55)
	writeFile(t, fastStatsDir, "cerebellum.CerebNet.stats",
		header+"1 601 100 5000.456 Cbm-White-Matter extra\n")
	writeFile(t, fastStatsDir, "hypothalamus.HypVINN.stats",
		header+"1 801 100 250.125 L-SupTubal extra\n")

	outDir := filepath.Join(t.TempDir(), "JSON", "series1")
	b := NewBuilder(testLogger())
	if err := b.BuildReports(subjectDir, samsegDir, fastSubjectDir, outDir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := ReadDocument(filepath.Join(outDir, FileName(CategorySubcortical)))
	if err != nil {
		t.Fatalf("reading subcortical report: %v", err)
	}
	cerebellum := doc["cerebellum"]
	if len(cerebellum) != 1 || cerebellum[0][KeyStructure] != "Cbm-White-Matter" {
		t.Fatalf("unexpected cerebellum records: %v", cerebellum)
	}
	if cerebellum[0][KeyVolume] != 5000.46 {
		t.Errorf("unexpected cerebellum volume: %v", cerebellum[0])
	}
	hypV2 := doc["hypothalamus_v2"]
	if len(hypV2) != 1 || hypV2[0][KeyStructure] != "LeftSupTubal" {
		t.Fatalf("unexpected hypothalamus_v2 records: %v", hypV2)
	}
	// The FreeSurfer hypothalamus key must survive the merge.
	if len(doc["hypothalamus"]) == 0 {
		t.Error("hypothalamus v1 records missing after fastsurfer merge")
	}
}

func TestBuildReportsMissingInput(t *testing.T) {
	subjectDir, samsegDir := fixtureSubject(t)
	if err := os.Remove(filepath.Join(subjectDir, "stats", "aseg.stats")); err != nil {
		t.Fatalf("removing fixture: %v", err)
	}
	b := NewBuilder(testLogger())
	err := b.BuildReports(subjectDir, samsegDir, "", t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing aseg.stats")
	}
}

func TestBuilderToleratesShortRows(t *testing.T) {
	subjectDir, samsegDir := fixtureSubject(t)
	statsDir := filepath.Join(subjectDir, "stats")

	// Append a truncated row; parsing must skip it, not fail.
	raw, err := os.ReadFile(filepath.Join(statsDir, "aseg.stats"))
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	writeFile(t, statsDir, "aseg.stats", string(raw)+"14 5\n")

	b := NewBuilder(testLogger())
	doc, err := b.General(statsDir, samsegDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc["aseg"]) != 1 {
		t.Errorf("expected short row to be skipped, got %d records", len(doc["aseg"]))
	}
}
