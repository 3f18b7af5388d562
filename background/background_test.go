// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package background

import (
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/holoscope/go-holocam/frame"
	"github.com/holoscope/go-holocam/store"
)

func TestEstimate(t *testing.T) {
	ten := []int{-4, -2, 2, 4}
	data := []struct {
		frames [][]int
		want   float64
	}{
		{[][]int{ten, ten, ten, ten, ten}, 10},
		{[][]int{{-20, 20}, {-2, 2}, {-4, 4}}, 10},
		{[][]int{{0}, {-1, 1}}, 1},
		{[][]int{{0}, {0}, {0}}, 0},
	}
	for i, line := range data {
		var frames []*frame.Frame
		for _, devs := range line.frames {
			frames = append(frames, patternFrame(devs...))
		}
		r, err := Estimate(frames)
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if math.Abs(r.Variance-line.want) > 1e-9 {
			t.Fatalf("#%d: Variance = %g, want %g", i, r.Variance, line.want)
		}
		if math.Abs(r.StdDev-math.Sqrt(line.want)) > 1e-9 {
			t.Fatalf("#%d: StdDev = %g", i, r.StdDev)
		}
		if r.SampleCount != len(line.frames)-1 {
			t.Fatalf("#%d: SampleCount = %d", i, r.SampleCount)
		}
		if r.Degenerate() != (line.want == 0) {
			t.Fatalf("#%d: Degenerate = %t", i, r.Degenerate())
		}
	}
}

func TestEstimate_noData(t *testing.T) {
	for _, frames := range [][]*frame.Frame{nil, {patternFrame(-2, 2)}} {
		if _, err := Estimate(frames); !errors.Is(err, ErrNoData) {
			t.Fatal(err)
		}
	}
}

func TestEstimateDir(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	s := &store.Files{}
	for i, d := range []int{20, 2, 4, 2} {
		if err := s.Save(filepath.Join(dir, store.FrameName(uint64(i+1), "tif")), patternFrame(-d, d)); err != nil {
			t.Fatal(err)
		}
	}
	// Noise that must be ignored.
	if err := ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0666); err != nil {
		t.Fatal(err)
	}
	r, err := EstimateDir(dir, ".TIF")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(r.Variance-8) > 1e-9 || r.SampleCount != 3 {
		t.Fatal(r)
	}
}

func TestEstimateDir_warmupLost(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	s := &store.Files{}
	// Frame 1 couldn't be saved; frame 2 is a real calibration frame.
	for i, d := range []int{2, 4, 2} {
		if err := s.Save(filepath.Join(dir, store.FrameName(uint64(i+2), "tif")), patternFrame(-d, d)); err != nil {
			t.Fatal(err)
		}
	}
	r, err := EstimateDir(dir, "tif")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(r.Variance-8) > 1e-9 || r.SampleCount != 3 {
		t.Fatal(r)
	}
}

func TestAccumulator_skipWarmup(t *testing.T) {
	var a Accumulator
	a.SkipWarmup()
	a.AddVariance(4)
	r, err := a.Reference()
	if err != nil {
		t.Fatal(err)
	}
	if r.Variance != 4 || r.SampleCount != 1 || a.Seen() != 2 {
		t.Fatal(r, a.Seen())
	}
}

func TestEstimateDir_errors(t *testing.T) {
	root := tempDir(t)
	defer os.RemoveAll(root)

	_, err := EstimateDir(filepath.Join(root, "missing"), "tif")
	var e *Error
	if !errors.As(err, &e) || !e.Missing || !errors.Is(err, ErrNoData) {
		t.Fatal(err)
	}

	empty := filepath.Join(root, "empty")
	if err := os.Mkdir(empty, 0777); err != nil {
		t.Fatal(err)
	}
	_, err = EstimateDir(empty, "tif")
	if !errors.As(err, &e) || e.Missing || !errors.Is(err, ErrNoData) {
		t.Fatal(err)
	}

	png := filepath.Join(root, "png")
	if err := os.Mkdir(png, 0777); err != nil {
		t.Fatal(err)
	}
	s := &store.Files{}
	for i := uint64(1); i <= 3; i++ {
		if err := s.Save(filepath.Join(png, store.FrameName(i, "png")), patternFrame(-2, 2)); err != nil {
			t.Fatal(err)
		}
	}
	_, err = EstimateDir(png, "tif")
	if !errors.As(err, &e) || !errors.Is(err, ErrFormatMismatch) || e.Want != "tif" || e.Got != "png" {
		t.Fatal(err)
	}

	// A single frame is only the warm-up frame.
	one := filepath.Join(root, "one")
	if err := os.Mkdir(one, 0777); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(filepath.Join(one, store.FrameName(1, "tif")), patternFrame(-2, 2)); err != nil {
		t.Fatal(err)
	}
	if _, err = EstimateDir(one, "tif"); !errors.Is(err, ErrNoData) {
		t.Fatal(err)
	}
}

//

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "holocam")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

// patternFrame returns an 8 bits frame repeating 100+devs. Its population
// variance is the one of devs as long as the pixel count is a multiple of
// len(devs).
func patternFrame(devs ...int) *frame.Frame {
	f := frame.New(12, 10, 1, 8)
	for i := range f.Pix {
		f.Pix[i] = uint16(100 + devs[i%len(devs)])
	}
	return f
}
