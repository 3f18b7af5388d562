// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package camera_test

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holoscope/go-holocam/camera"
	"github.com/holoscope/go-holocam/cameratest"
	"github.com/holoscope/go-holocam/store"
)

var fast = camera.Policy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxElapsed: time.Second}

func TestConnect_retry(t *testing.T) {
	cam := cameratest.New(4, 4)
	flaky := errors.New("is_InitCamera failed")
	cam.ConnectErrs = []error{flaky, flaky}
	var notified []error
	err := camera.Connect(context.Background(), cam, fast, func(err error, next time.Duration) {
		notified = append(notified, err)
	})
	if err != nil {
		t.Fatal(err)
	}
	if c, _, _ := cam.Counts(); c != 3 {
		t.Fatal(c)
	}
	if len(notified) != 2 || notified[0] != flaky {
		t.Fatal(notified)
	}
	if !cam.Connected() {
		t.Fatal("not connected")
	}
}

func TestConnect_maxRetries(t *testing.T) {
	cam := cameratest.New(4, 4)
	flaky := errors.New("busy")
	cam.ConnectErrs = []error{flaky, flaky, flaky, flaky, flaky}
	p := fast
	p.MaxRetries = 2
	if err := camera.Connect(context.Background(), cam, p, nil); err != flaky {
		t.Fatal(err)
	}
	if c, _, _ := cam.Counts(); c != 3 {
		t.Fatal(c)
	}
}

func TestConnect_permanent(t *testing.T) {
	cam := cameratest.New(4, 4)
	cam.ConnectErrs = []error{camera.ErrNoDevice}
	if err := camera.Connect(context.Background(), cam, fast, nil); !errors.Is(err, camera.ErrNoDevice) {
		t.Fatal(err)
	}
	if c, _, _ := cam.Counts(); c != 1 {
		t.Fatal(c)
	}
}

func TestConnect_canceled(t *testing.T) {
	cam := cameratest.New(4, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := camera.Connect(ctx, cam, fast, nil); err == nil {
		t.Fatal("expected error")
	}
	if c, _, _ := cam.Counts(); c != 0 {
		t.Fatal(c)
	}
}

func TestReplay(t *testing.T) {
	dir, err := ioutil.TempDir("", "holocam")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	s := &store.Files{}
	// Written out of order.
	for _, i := range []uint64{2, 10, 1} {
		if err := s.Save(filepath.Join(dir, store.FrameName(i, "tif")), cameratest.Pattern(4, 3, int(i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := ioutil.WriteFile(filepath.Join(dir, "log_file.txt"), nil, 0666); err != nil {
		t.Fatal(err)
	}

	r := camera.NewReplay(dir)
	if _, err := r.Grab(); err != camera.ErrNotConnected {
		t.Fatal(err)
	}
	if err := r.Connect(); err != nil {
		t.Fatal(err)
	}
	info, err := r.Describe()
	if err != nil || info.Width != 4 || info.Height != 3 || info.BitDepth != 8 {
		t.Fatal(info, err)
	}
	for i, want := range []uint16{101, 102, 110} {
		f, err := r.Grab()
		if err != nil {
			t.Fatal(err)
		}
		if f.Pix[0] != want || f.Metadata.Sequence != uint64(i+1) {
			t.Fatalf("#%d: got %d seq %d", i, f.Pix[0], f.Metadata.Sequence)
		}
	}
	if _, err := r.Grab(); err != camera.ErrExhausted {
		t.Fatal(err)
	}
	r.Loop = true
	if f, err := r.Grab(); err != nil || f.Pix[0] != 101 {
		t.Fatal(err)
	}
	if err := r.Disconnect(); err != nil {
		t.Fatal(err)
	}
}

func TestReplay_empty(t *testing.T) {
	dir, err := ioutil.TempDir("", "holocam")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	if err := camera.NewReplay(dir).Connect(); !errors.Is(err, camera.ErrNoDevice) {
		t.Fatal(err)
	}
}
