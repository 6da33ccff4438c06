// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "sync/atomic"

// Guard is a single-flight latch for pipeline runs.
//
// # Description
//
// The pipeline saturates the host (the segmentation tools are CPU- and
// memory-bound), so at most one study runs at a time. Guard is a
// compare-and-swap latch: the handler acquires it before kicking off a
// background run and the run releases it in a defer, success or failure.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Guard struct {
	running atomic.Bool
}

// NewGuard creates an idle Guard.
func NewGuard() *Guard {
	return &Guard{}
}

// TryAcquire claims the guard. Returns false if a run already holds it.
func (g *Guard) TryAcquire() bool {
	return g.running.CompareAndSwap(false, true)
}

// Release returns the guard to idle. Safe to call when already idle.
func (g *Guard) Release() {
	g.running.Store(false)
}

// Busy reports whether a run currently holds the guard.
func (g *Guard) Busy() bool {
	return g.running.Load()
}
