// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package camera

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/holoscope/go-holocam/frame"
	"github.com/holoscope/go-holocam/store"
)

// Replay is a Camera playing back the frames stored in a folder, in index
// order. It is useful to tune the variance filter on a previous run.
type Replay struct {
	Dir string
	// Loop restarts from the first frame instead of returning ErrExhausted.
	Loop bool
	// Interval is the minimum time between two frames, to mimic the sensor
	// frame rate.
	Interval time.Duration

	names      []string
	next       int
	seq        uint64
	last       time.Time
	connected  bool
	exposure   time.Duration
	blackLevel int
}

// NewReplay returns a Replay camera reading dir.
func NewReplay(dir string) *Replay {
	return &Replay{Dir: dir}
}

// Connect implements Camera. It lists the frames present in Dir.
func (r *Replay) Connect() error {
	all, err := store.ListFrames(r.Dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	r.names = r.names[:0]
	for _, ff := range all {
		if store.Supported(ff.Ext) {
			r.names = append(r.names, ff.Name)
		}
	}
	if len(r.names) == 0 {
		return fmt.Errorf("%w: no frame in %s", ErrNoDevice, r.Dir)
	}
	r.next = 0
	r.connected = true
	return nil
}

// SetExposure implements Camera. The value is only recorded.
func (r *Replay) SetExposure(d time.Duration) error {
	r.exposure = d
	return nil
}

// SetBlackLevel implements Camera. The value is only recorded.
func (r *Replay) SetBlackLevel(offset int) error {
	r.blackLevel = offset
	return nil
}

// Grab implements Camera.
func (r *Replay) Grab() (*frame.Frame, error) {
	if !r.connected {
		return nil, ErrNotConnected
	}
	if r.next == len(r.names) {
		if !r.Loop {
			return nil, ErrExhausted
		}
		r.next = 0
	}
	if r.Interval > 0 && !r.last.IsZero() {
		if d := r.Interval - time.Since(r.last); d > 0 {
			time.Sleep(d)
		}
	}
	name := r.names[r.next]
	r.next++
	f, err := store.Load(filepath.Join(r.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("camera: replaying %s: %w", name, err)
	}
	r.last = time.Now()
	r.seq++
	f.Metadata.Captured = r.last
	f.Metadata.Sequence = r.seq
	return f, nil
}

// Disconnect implements Camera.
func (r *Replay) Disconnect() error {
	r.connected = false
	return nil
}

// Describe implements Describer.
func (r *Replay) Describe() (Info, error) {
	if !r.connected {
		return Info{}, ErrNotConnected
	}
	f, err := store.Load(filepath.Join(r.Dir, r.names[0]))
	if err != nil {
		return Info{}, err
	}
	mode := "monochrome"
	if f.Channels > 1 {
		mode = "rgb"
	}
	return Info{
		Model:     "replay",
		Serial:    r.Dir,
		ColorMode: mode,
		Width:     f.Width,
		Height:    f.Height,
		Channels:  f.Channels,
		BitDepth:  f.BitDepth,
	}, nil
}
