// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package acquire

import (
	"context"
	"io"
	"io/ioutil"
	"log"

	"github.com/fatih/color"

	"github.com/holoscope/go-holocam/camera"
	"github.com/holoscope/go-holocam/config"
	"github.com/holoscope/go-holocam/control"
	"github.com/holoscope/go-holocam/store"
)

// Loop runs sessions for as long as the control surface asks for them.
type Loop struct {
	Config  config.Config
	Camera  camera.Camera
	Surface control.Surface

	// Optional.
	Console     io.Writer
	Thermometer Thermometer
	Progress    func(p Phase, done, total int)
	// Watcher reloads the configuration between two sessions.
	Watcher *config.Watcher
	// Override is applied to every configuration reloaded by Watcher, e.g. to
	// keep the command line flags in effect.
	Override func(c *config.Config)
	// OnSession is called after every session.
	OnSession func(res Result, err error)

	counter  store.Counter
	sessions int
}

// Counter returns the next sequence number.
func (l *Loop) Counter() uint64 {
	return l.counter.Peek()
}

// Sessions returns the number of sessions run.
func (l *Loop) Sessions() int {
	return l.sessions
}

// Run runs sessions until the operator is done or asks to exit. An exit
// request is not an error.
func (l *Loop) Run(ctx context.Context) error {
	console := l.Console
	if console == nil {
		console = ioutil.Discard
	}
	defer color.New(color.FgRed).Fprintf(console, "\n----> EXIT PROGRAM\n\n")
	for {
		if l.Surface.ShouldExit() {
			return nil
		}
		ok, err := l.Surface.ShouldStart(ctx)
		if err != nil {
			if isExit(err) {
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}
		if l.sessions != 0 {
			if err := l.updateConfig(ctx); err != nil {
				if isExit(err) {
					return nil
				}
				return err
			}
		}
		s := &Session{
			Config:      l.Config,
			Camera:      l.Camera,
			Surface:     l.Surface,
			Counter:     &l.counter,
			Console:     l.Console,
			Thermometer: l.Thermometer,
			Progress:    l.Progress,
		}
		res, err := s.Run(ctx)
		l.sessions++
		if l.OnSession != nil {
			l.OnSession(res, err)
		}
		if err != nil {
			if isExit(err) {
				return nil
			}
			return err
		}
	}
}

// updateConfig picks up the modifications of the configuration file, then
// lets the operator edit the configuration when the surface supports it.
func (l *Loop) updateConfig(ctx context.Context) error {
	if l.Watcher != nil {
		c, changed, err := l.Watcher.Reload()
		switch {
		case err != nil:
			log.Printf("keeping the current configuration: %v", err)
		case changed:
			log.Printf("configuration reloaded")
			if l.Override != nil {
				l.Override(&c)
			}
			l.Config = c
		}
	}
	e, ok := l.Surface.(control.ConfigEditor)
	if !ok {
		return nil
	}
	c, err := e.EditConfig(ctx, l.Config)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		log.Printf("keeping the current configuration: %v", err)
		return nil
	}
	l.Config = c
	return nil
}
