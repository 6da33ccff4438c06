// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"
)

func TestRunRequestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := RunRequest{Patient: "patient_01", Study: "study-2024"}
		if err := r.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing patient", func(t *testing.T) {
		r := RunRequest{Study: "s1"}
		if err := r.Validate(); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("missing study", func(t *testing.T) {
		r := RunRequest{Patient: "p1"}
		if err := r.Validate(); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("identifier too long", func(t *testing.T) {
		r := RunRequest{
			Patient: strings.Repeat("a", MaxIdentifierLength+1),
			Study:   "s1",
		}
		if err := r.Validate(); err == nil {
			t.Fatal("expected validation error")
		}
	})
}
