// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/theckman/yacspin"

	"github.com/holoscope/go-holocam/acquire"
)

// progress shows a spinner while the background is recorded.
type progress struct {
	mu      sync.Mutex
	s       *yacspin.Spinner
	running bool
}

func newProgress(w io.Writer) (*progress, error) {
	s, err := yacspin.New(yacspin.Config{
		Writer:          w,
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[14],
		Suffix:          " background",
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	})
	if err != nil {
		return nil, err
	}
	return &progress{s: s}, nil
}

func (p *progress) update(ph acquire.Phase, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ph != acquire.CalibratingBackground {
		p.stopLocked()
		return
	}
	p.s.Message(fmt.Sprintf("[ %d / %d ]", done, total))
	if !p.running {
		p.running = p.s.Start() == nil
	}
	if done == total {
		p.stopLocked()
	}
}

func (p *progress) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *progress) stopLocked() {
	if p.running {
		p.s.Stop()
		p.running = false
	}
}
