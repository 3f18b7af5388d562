// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/holoscope/go-holocam/frame"
)

type recordSaver struct {
	mu    sync.Mutex
	paths []string
	gate  chan struct{}
	fail  string
}

func (r *recordSaver) Save(path string, f *frame.Frame) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	if path == r.fail {
		return errors.New("disk full")
	}
	return nil
}

func TestQueue_order(t *testing.T) {
	r := &recordSaver{fail: FrameName(3, "tif")}
	var failed []string
	q := NewQueue(r, 2, func(p string, err error) { failed = append(failed, p) })
	var want []string
	for i := uint64(1); i <= 20; i++ {
		p := FrameName(i, "tif")
		want = append(want, p)
		if err := q.Save(p, &frame.Frame{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Close(); err == nil || err.Error() != "disk full" {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, r.paths); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if len(failed) != 1 || failed[0] != r.fail {
		t.Fatal(failed)
	}
	if err := q.Save("x", &frame.Frame{}); err != ErrClosed {
		t.Fatal(err)
	}
}

func TestQueue_backpressure(t *testing.T) {
	r := &recordSaver{gate: make(chan struct{})}
	q := NewQueue(r, 1, nil)
	// The writer holds the first frame, the channel holds the second.
	if err := q.Save("1", &frame.Frame{}); err != nil {
		t.Fatal(err)
	}
	if err := q.Save("2", &frame.Frame{}); err != nil {
		t.Fatal(err)
	}
	returned := make(chan struct{})
	go func() {
		q.Save("3", &frame.Frame{})
		close(returned)
	}()
	select {
	case <-returned:
		t.Fatal("Save didn't block on a full queue")
	case <-time.After(50 * time.Millisecond):
	}
	close(r.gate)
	<-returned
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if len(r.paths) != 3 {
		t.Fatal(r.paths)
	}
}
