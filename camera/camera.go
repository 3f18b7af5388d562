// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package camera defines the camera device seen by the acquisition session.
//
// The vendor SDK binding lives behind the Camera interface. This package
// provides the connection retry policy and a Replay camera that plays back
// frames stored on disk.
package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/holoscope/go-holocam/frame"
)

var (
	// ErrNotConnected is returned by Grab before Connect succeeded.
	ErrNotConnected = errors.New("camera: not connected")
	// ErrExhausted is returned by Grab when a finite source has no more frame.
	ErrExhausted = errors.New("camera: no more frames")
	// ErrNoDevice is returned by Connect when retrying is pointless.
	ErrNoDevice = errors.New("camera: no device")
)

// Camera is an exclusive camera device. It is not safe for concurrent use.
type Camera interface {
	// Connect opens the device and starts the capture.
	Connect() error
	// SetExposure sets the exposure time. 0 means automatic exposure.
	SetExposure(d time.Duration) error
	// SetBlackLevel sets the black level offset.
	SetBlackLevel(offset int) error
	// Grab returns the next frame. A failure only affects this frame.
	Grab() (*frame.Frame, error)
	// Disconnect releases the device.
	Disconnect() error
}

// Info describes a connected camera.
type Info struct {
	Model     string
	Serial    string
	ColorMode string
	Width     int
	Height    int
	Channels  int
	BitDepth  int
}

func (i *Info) String() string {
	return fmt.Sprintf("%s (%s) %dx%d %s %d bits", i.Model, i.Serial, i.Width, i.Height, i.ColorMode, i.BitDepth)
}

// Describer is implemented by cameras that can report what they are.
type Describer interface {
	Describe() (Info, error)
}

// Policy is the connection retry policy.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed bounds the total time spent retrying. 0 means no bound other
	// than MaxRetries and the context.
	MaxElapsed time.Duration
	// MaxRetries bounds the number of retries. 0 means unbounded.
	MaxRetries int
}

// DefaultPolicy retries for up to 30 seconds.
var DefaultPolicy = Policy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxElapsed:      30 * time.Second,
}

// Connect connects cam, retrying with an exponential backoff according to p.
//
// notify, if not nil, is called after every failed attempt that will be
// retried. An error wrapping ErrNoDevice is not retried.
func Connect(ctx context.Context, cam Camera, p Policy, notify func(err error, next time.Duration)) error {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         p.MaxInterval,
		MaxElapsedTime:      p.MaxElapsed,
		Clock:               backoff.SystemClock,
	}
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultPolicy.InitialInterval
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Reset()
	var bo backoff.BackOff = b
	if p.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(p.MaxRetries))
	}
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := cam.Connect()
		if errors.Is(err, ErrNoDevice) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}
