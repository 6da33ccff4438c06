// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeNiftiHeader creates a gzipped NIfTI-1 header with the given voxel
// dimensions in the requested byte order.
func writeNiftiHeader(t *testing.T, path string, order binary.ByteOrder, x, y, z int16) {
	t.Helper()
	header := make([]byte, niftiHeaderSize)
	order.PutUint32(header[0:4], niftiHeaderSize)
	order.PutUint16(header[40:42], 3) // rank
	order.PutUint16(header[42:44], uint16(x))
	order.PutUint16(header[44:46], uint16(y))
	order.PutUint16(header[46:48], uint16(z))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating volume: %v", err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(header); err != nil {
		t.Fatalf("writing header: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
}

func TestVolumeDimensions(t *testing.T) {
	dir := t.TempDir()

	t.Run("little endian", func(t *testing.T) {
		path := filepath.Join(dir, "le.nii.gz")
		writeNiftiHeader(t, path, binary.LittleEndian, 256, 256, 180)
		dims, err := VolumeDimensions(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dims != [3]int{256, 256, 180} {
			t.Errorf("unexpected dims: %v", dims)
		}
	})

	t.Run("big endian", func(t *testing.T) {
		path := filepath.Join(dir, "be.nii.gz")
		writeNiftiHeader(t, path, binary.BigEndian, 192, 224, 160)
		dims, err := VolumeDimensions(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dims != [3]int{192, 224, 160} {
			t.Errorf("unexpected dims: %v", dims)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := VolumeDimensions(filepath.Join(dir, "absent.nii.gz"))
		if !errors.Is(err, ErrVolumeNotFound) {
			t.Fatalf("expected ErrVolumeNotFound, got %v", err)
		}
	})

	t.Run("not a nifti header", func(t *testing.T) {
		path := filepath.Join(dir, "junk.nii.gz")
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("creating file: %v", err)
		}
		gz := gzip.NewWriter(f)
		if _, err := gz.Write(make([]byte, niftiHeaderSize)); err != nil {
			t.Fatalf("writing junk: %v", err)
		}
		gz.Close()
		f.Close()

		if _, err := VolumeDimensions(path); err == nil {
			t.Fatal("expected format error")
		}
	})
}
