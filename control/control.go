// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package control implements the operator control surfaces driving the
// acquisition: a panel of digital input lines or an interactive prompt.
package control

import (
	"context"
	"errors"
	"sync"

	"github.com/holoscope/go-holocam/config"
)

// ErrExit is returned when the operator asked to leave the program. It is not
// a failure.
var ErrExit = errors.New("control: exit requested")

// State is the control state as seen by the acquisition.
type State int

// Valid values for State.
const (
	Idle State = iota
	Running
	Paused
	Exiting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Exiting:
		return "Exiting"
	}
	return "State(?)"
}

// Surface is an operator control surface.
//
// Only the surface transitions its State; the acquisition queries it.
type Surface interface {
	// ShouldStart blocks until a session may start and returns true. It
	// returns false when no more session must be run. It returns ErrExit or
	// the context error when the program must leave.
	ShouldStart(ctx context.Context) (bool, error)
	// ShouldProceed blocks until the operator allows the capture to start
	// after the background calibration.
	ShouldProceed(ctx context.Context) error
	// ShouldContinue is polled after every captured frame. It returns false to
	// end the capture.
	ShouldContinue() bool
	// ShouldExit is polled at every phase boundary and loop iteration.
	ShouldExit() bool
	// State returns the current control state.
	State() State
}

// ConfigEditor is implemented by surfaces letting the operator edit the
// configuration between two sessions.
type ConfigEditor interface {
	EditConfig(ctx context.Context, c config.Config) (config.Config, error)
}

// state is embedded by the surfaces.
type state struct {
	mu sync.Mutex
	s  State
}

func (s *state) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}

func (s *state) set(n State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Exiting is final.
	if s.s != Exiting {
		s.s = n
	}
}
