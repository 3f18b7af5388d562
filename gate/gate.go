// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gate implements the variance admission filter.
//
// A frame is kept when its whole frame variance deviates from the background
// reference by at least ThresholdPercent, relative to the frame variance:
//
//   |var(frame) - var(background)| / var(frame) * 100 >= ThresholdPercent
//
// A frame with no variance at all carries no signal and is always rejected.
package gate

import (
	"math"

	"github.com/holoscope/go-holocam/background"
	"github.com/holoscope/go-holocam/frame"
	"github.com/holoscope/go-holocam/store"
)

// Decision is the outcome of Gate.Process for one frame.
type Decision struct {
	Variance  float64 // Whole frame variance.
	Deviation float64 // Relative deviation from the background, in percent.
	Admitted  bool
	Saved     bool
}

// Gate filters frames against a background reference.
type Gate struct {
	ThresholdPercent float64
	// Disabled keeps every frame, as if the threshold was always met.
	Disabled bool
	Saver    store.Saver
}

// Deviation returns the relative deviation in percent of a frame of variance
// v from ref. It returns 0 when v is 0.
func Deviation(ref background.Reference, v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 0
	}
	return math.Abs(v-ref.Variance) / v * 100
}

// Admits returns true if a frame of variance v must be kept.
func (g *Gate) Admits(ref background.Reference, v float64) bool {
	if g.Disabled {
		return true
	}
	if v == 0 || math.IsNaN(v) {
		return false
	}
	return Deviation(ref, v) >= g.ThresholdPercent
}

// Process applies the filter to f and saves it at path when admitted. A
// rejected frame causes no I/O.
//
// The returned error is the persistence error, if any.
func (g *Gate) Process(ref background.Reference, f *frame.Frame, path string) (Decision, error) {
	v := frame.Variance(f)
	d := Decision{Variance: v, Deviation: Deviation(ref, v), Admitted: g.Admits(ref, v)}
	if !d.Admitted || g.Saver == nil {
		return d, nil
	}
	if err := g.Saver.Save(path, f); err != nil {
		return d, err
	}
	d.Saved = true
	return d, nil
}
