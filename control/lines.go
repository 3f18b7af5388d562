// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package control

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"periph.io/x/periph/conn/gpio"
)

// Line is one input line of the panel.
type Line struct {
	Pin  gpio.PinIn
	Pull gpio.Pull
}

// ParsePull converts "up", "down" or "float" into a gpio.Pull. An empty
// string leaves the pull resistor unchanged.
func ParsePull(s string) (gpio.Pull, error) {
	switch s {
	case "":
		return gpio.PullNoChange, nil
	case "up":
		return gpio.PullUp, nil
	case "down":
		return gpio.PullDown, nil
	case "float":
		return gpio.Float, nil
	}
	return gpio.PullNoChange, fmt.Errorf("control: unknown pull %q", s)
}

// Lines is the panel of four digital input lines:
//
//   - Run high allows sessions to start.
//   - Stop high keeps the capture running; low ends the capture. Run and Stop
//     both low end the program.
//   - Acquire high starts the capture after the background calibration.
//   - Exit high, at any time, ends the program.
//
// The lines are polled at a bounded interval.
type Lines struct {
	state
	run     gpio.PinIn
	acquire gpio.PinIn
	stop    gpio.PinIn
	exit    gpio.PinIn
	limiter *rate.Limiter
}

// NewLines configures the pins as inputs.
func NewLines(run, acquire, stop, exit Line, poll time.Duration) (*Lines, error) {
	for _, l := range []Line{run, acquire, stop, exit} {
		if l.Pin == nil {
			return nil, fmt.Errorf("control: missing line")
		}
		if err := l.Pin.In(l.Pull, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("control: %s: %w", l.Pin, err)
		}
	}
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	return &Lines{
		run:     run.Pin,
		acquire: acquire.Pin,
		stop:    stop.Pin,
		exit:    exit.Pin,
		limiter: rate.NewLimiter(rate.Every(poll), 1),
	}, nil
}

// ShouldStart implements Surface. It waits for Run and Stop to be both high.
func (l *Lines) ShouldStart(ctx context.Context) (bool, error) {
	l.set(Idle)
	for {
		if l.ShouldExit() {
			return false, ErrExit
		}
		run, stop := l.run.Read(), l.stop.Read()
		if run == gpio.High && stop == gpio.High {
			l.set(Running)
			return true, nil
		}
		if run == gpio.Low && stop == gpio.Low {
			return false, nil
		}
		if err := l.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}
}

// ShouldProceed implements Surface. It waits for Acquire to be high.
func (l *Lines) ShouldProceed(ctx context.Context) error {
	for {
		if l.ShouldExit() {
			return ErrExit
		}
		if l.acquire.Read() == gpio.High {
			return nil
		}
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
	}
}

// ShouldContinue implements Surface.
func (l *Lines) ShouldContinue() bool {
	if l.stop.Read() == gpio.Low {
		l.set(Paused)
		return false
	}
	return true
}

// ShouldExit implements Surface.
func (l *Lines) ShouldExit() bool {
	if l.exit.Read() == gpio.High {
		l.set(Exiting)
		return true
	}
	return false
}
