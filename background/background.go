// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package background estimates the reference noise variance of the idle
// optical setup from a batch of calibration frames.
//
// The first frame of a batch is a warm-up artifact of the sensor and is never
// taken into account.
package background

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/holoscope/go-holocam/frame"
	"github.com/holoscope/go-holocam/store"
)

var (
	// ErrNoData is returned when no calibration frame could be used.
	ErrNoData = errors.New("background: no calibration data")
	// ErrFormatMismatch is returned when the stored calibration frames don't
	// use the configured file extension.
	ErrFormatMismatch = errors.New("background: calibration image format mismatch")
)

// Error describes a calibration failure. Kind is ErrNoData or
// ErrFormatMismatch so errors.Is works on it.
type Error struct {
	Kind    error
	Dir     string
	Missing bool   // Dir doesn't exist.
	Want    string // Configured extension.
	Got     string // Extension found in Dir.
}

func (e *Error) Error() string {
	switch {
	case e.Kind == ErrFormatMismatch:
		return fmt.Sprintf("background: image extension not recognized in %s (required %q, provided %q)", e.Dir, e.Want, e.Got)
	case e.Missing:
		return fmt.Sprintf("background: folder %s not found", e.Dir)
	case e.Dir != "":
		return fmt.Sprintf("background: folder %s empty", e.Dir)
	}
	return e.Kind.Error()
}

// Unwrap returns Kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// Reference is the background noise reference of a session. It is immutable
// once computed.
type Reference struct {
	Variance    float64
	StdDev      float64
	SampleCount int
}

// Degenerate returns true when the reference can't be used to discriminate
// frames: a flat calibration signal has no variance to compare against.
func (r Reference) Degenerate() bool {
	return r.Variance == 0 || math.IsNaN(r.Variance)
}

func (r Reference) String() string {
	return fmt.Sprintf("var=%.3f std=%.3f n=%d", r.Variance, r.StdDev, r.SampleCount)
}

// Accumulator computes a Reference incrementally so the calibration frames
// don't have to be kept in memory.
//
// The zero value is ready to use and ignores the first frame added.
type Accumulator struct {
	seen int
	n    int
	sum  float64
}

// Add accounts for the whole frame variance of f.
func (a *Accumulator) Add(f *frame.Frame) {
	a.AddVariance(frame.Variance(f))
}

// AddVariance accounts for one frame of variance v.
func (a *Accumulator) AddVariance(v float64) {
	a.seen++
	if a.seen == 1 {
		return
	}
	a.n++
	a.sum += v
}

// SkipWarmup marks the warm-up frame as already seen, so the next frame
// added is accounted for.
func (a *Accumulator) SkipWarmup() {
	if a.seen == 0 {
		a.seen = 1
	}
}

// Seen returns the number of frames added, including the warm-up frame.
func (a *Accumulator) Seen() int {
	return a.seen
}

// Reference returns the mean variance of the frames added after the first
// one.
func (a *Accumulator) Reference() (Reference, error) {
	if a.n == 0 {
		return Reference{}, &Error{Kind: ErrNoData}
	}
	v := a.sum / float64(a.n)
	return Reference{Variance: v, StdDev: math.Sqrt(v), SampleCount: a.n}, nil
}

// Estimate returns the reference of an ordered calibration batch.
//
// A zero variance result is not an error; check Reference.Degenerate.
func Estimate(frames []*frame.Frame) (Reference, error) {
	var a Accumulator
	for _, f := range frames {
		a.Add(f)
	}
	return a.Reference()
}

// EstimateDir returns the reference of the calibration frames stored in dir.
//
// Frames are read in index order. Files that are not named like frames are
// ignored. The frame numbered 1 is the warm-up frame; when it is missing every
// stored frame is used.
func EstimateDir(dir, ext string) (Reference, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	all, err := store.ListFrames(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Reference{}, &Error{Kind: ErrNoData, Dir: dir, Missing: true}
		}
		return Reference{}, err
	}
	var items []store.FrameFile
	other := ""
	for _, ff := range all {
		if strings.ToLower(ff.Ext) != ext {
			if other == "" {
				other = ff.Ext
			}
			continue
		}
		items = append(items, ff)
	}
	if len(items) == 0 {
		if other != "" {
			return Reference{}, &Error{Kind: ErrFormatMismatch, Dir: dir, Want: ext, Got: other}
		}
		return Reference{}, &Error{Kind: ErrNoData, Dir: dir}
	}
	var a Accumulator
	if items[0].Index != 1 {
		// The warm-up frame wasn't saved; every stored frame counts.
		a.SkipWarmup()
	}
	for _, ff := range items {
		if ff.Index == 1 {
			// The warm-up frame; don't bother decoding it.
			a.AddVariance(0)
			continue
		}
		f, err := store.Load(filepath.Join(dir, ff.Name))
		if err != nil {
			return Reference{}, fmt.Errorf("background: %s: %w", ff.Name, err)
		}
		a.Add(f)
	}
	r, err := a.Reference()
	if err != nil {
		return r, &Error{Kind: ErrNoData, Dir: dir}
	}
	return r, nil
}
