// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cameratest

import (
	"testing"

	"github.com/holoscope/go-holocam/camera"
	"github.com/holoscope/go-holocam/frame"
)

func TestFake(t *testing.T) {
	f := New(32, 24)
	f.Script = []*frame.Frame{Pattern(32, 24, -4, -2, 2, 4), nil}
	f.FailGrabs = map[int]bool{4: true}
	if _, err := f.Grab(); err != camera.ErrNotConnected {
		t.Fatal(err)
	}
	if err := f.Connect(); err != nil {
		t.Fatal(err)
	}
	img, err := f.Grab()
	if err != nil {
		t.Fatal(err)
	}
	if v := frame.Variance(img); v != 10 {
		t.Fatal(v)
	}
	// The script must not be aliased.
	img.Pix[0] = 0
	if f.Script[0].Pix[0] != 96 {
		t.Fatal("aliased")
	}
	if _, err := f.Grab(); err != ErrGrab {
		t.Fatal(err)
	}
	img, err = f.Grab()
	if err != nil {
		t.Fatal(err)
	}
	if err := img.Validate(); err != nil {
		t.Fatal(err)
	}
	if img.Metadata.Sequence != 3 {
		t.Fatal(img.Metadata.Sequence)
	}
	if _, err := f.Grab(); err != ErrGrab {
		t.Fatal(err)
	}
	if err := f.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if c, d, g := f.Counts(); c != 1 || d != 1 || g != 4 {
		t.Fatal(c, d, g)
	}
}

func TestFake_bursts(t *testing.T) {
	f := New(64, 48)
	f.BurstRate = 1
	if err := f.Connect(); err != nil {
		t.Fatal(err)
	}
	burst, err := f.Grab()
	if err != nil {
		t.Fatal(err)
	}
	f.BurstRate = 0
	flat, err := f.Grab()
	if err != nil {
		t.Fatal(err)
	}
	if vb, vf := frame.Variance(burst), frame.Variance(flat); vb <= 2*vf {
		t.Fatalf("fringes didn't raise the variance: %g vs %g", vb, vf)
	}
}
