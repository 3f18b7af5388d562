// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package control

import (
	"context"
	"testing"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
)

func TestParsePull(t *testing.T) {
	data := []struct {
		in   string
		want gpio.Pull
	}{
		{"", gpio.PullNoChange},
		{"up", gpio.PullUp},
		{"down", gpio.PullDown},
		{"float", gpio.Float},
	}
	for _, line := range data {
		if got, err := ParsePull(line.in); err != nil || got != line.want {
			t.Fatal(line.in, got, err)
		}
	}
	if _, err := ParsePull("high"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLines_start(t *testing.T) {
	p, l := newPanel(t)
	if l.State() != Idle {
		t.Fatal(l.State())
	}
	// Stop is pulled up, Run down: wait for Run.
	go func() {
		time.Sleep(20 * time.Millisecond)
		p.run.Out(gpio.High)
	}()
	ok, err := l.ShouldStart(context.Background())
	if !ok || err != nil {
		t.Fatal(ok, err)
	}
	if l.State() != Running {
		t.Fatal(l.State())
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.acquire.Out(gpio.High)
	}()
	if err := l.ShouldProceed(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !l.ShouldContinue() {
		t.Fatal("Stop is high")
	}
	p.stop.Out(gpio.Low)
	if l.ShouldContinue() {
		t.Fatal("Stop is low")
	}
	if l.State() != Paused {
		t.Fatal(l.State())
	}
}

func TestLines_done(t *testing.T) {
	p, l := newPanel(t)
	p.stop.Out(gpio.Low)
	ok, err := l.ShouldStart(context.Background())
	if ok || err != nil {
		t.Fatal(ok, err)
	}
}

func TestLines_exit(t *testing.T) {
	p, l := newPanel(t)
	go func() {
		time.Sleep(20 * time.Millisecond)
		p.exit.Out(gpio.High)
	}()
	if _, err := l.ShouldStart(context.Background()); err != ErrExit {
		t.Fatal(err)
	}
	if l.State() != Exiting {
		t.Fatal(l.State())
	}
	if err := l.ShouldProceed(context.Background()); err != ErrExit {
		t.Fatal(err)
	}
	if !l.ShouldExit() {
		t.Fatal("exit")
	}
}

func TestLines_canceled(t *testing.T) {
	_, l := newPanel(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := l.ShouldProceed(ctx); err == nil {
		t.Fatal("expected error")
	}
	if d := time.Since(start); d > time.Second {
		t.Fatal(d)
	}
}

//

type panel struct {
	run, acquire, stop, exit *gpiotest.Pin
}

func newPanel(t *testing.T) (*panel, *Lines) {
	p := &panel{
		run:     &gpiotest.Pin{N: "GPIO14"},
		acquire: &gpiotest.Pin{N: "GPIO15"},
		stop:    &gpiotest.Pin{N: "GPIO17"},
		exit:    &gpiotest.Pin{N: "GPIO23"},
	}
	l, err := NewLines(
		Line{Pin: p.run, Pull: gpio.PullDown},
		Line{Pin: p.acquire, Pull: gpio.PullDown},
		Line{Pin: p.stop, Pull: gpio.PullUp},
		Line{Pin: p.exit, Pull: gpio.PullDown},
		time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	// Pulls are applied by In() on the fake pins; set the levels explicitly
	// in case they aren't.
	p.run.Out(gpio.Low)
	p.acquire.Out(gpio.Low)
	p.stop.Out(gpio.High)
	p.exit.Out(gpio.Low)
	return p, l
}
