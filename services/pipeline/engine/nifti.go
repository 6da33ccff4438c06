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
	"fmt"
	"io"
	"os"
)

// niftiHeaderSize is the fixed NIfTI-1 header size; the sizeof_hdr field
// at offset 0 must equal it, which doubles as the byte-order probe.
const niftiHeaderSize = 348

// VolumeDimensions reads the voxel grid dimensions of a gzipped NIfTI-1
// volume.
//
// # Description
//
// Only the 348-byte header is decompressed and inspected: sizeof_hdr at
// offset 0 validates the format and reveals the byte order (a header
// written on a big-endian host reads as a byte-swapped sizeof_hdr), and
// the dim[] shorts at offset 40 carry the grid. dim[0] is the rank;
// dim[1..3] are the spatial extents returned here.
//
// # Outputs
//
//   - [3]int: X, Y, Z voxel counts.
//   - error: ErrVolumeNotFound if the file is absent, or a format error
//     for truncated or non-NIfTI content.
func VolumeDimensions(path string) ([3]int, error) {
	var dims [3]int

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return dims, fmt.Errorf("%w: %s", ErrVolumeNotFound, path)
		}
		return dims, fmt.Errorf("opening volume %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return dims, fmt.Errorf("decompressing volume %s: %w", path, err)
	}
	defer gz.Close()

	header := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(gz, header); err != nil {
		return dims, fmt.Errorf("reading volume header %s: %w", path, err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if order.Uint32(header[0:4]) != niftiHeaderSize {
		order = binary.BigEndian
		if order.Uint32(header[0:4]) != niftiHeaderSize {
			return dims, fmt.Errorf("volume %s: not a nifti-1 header", path)
		}
	}

	// dim[0] at offset 40 is the rank; dim[1..3] follow as int16.
	rank := int(order.Uint16(header[40:42]))
	if rank < 3 {
		return dims, fmt.Errorf("volume %s: unexpected rank %d", path, rank)
	}
	for i := 0; i < 3; i++ {
		off := 42 + 2*i
		dims[i] = int(int16(order.Uint16(header[off : off+2])))
	}
	return dims, nil
}
