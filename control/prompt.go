// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/holoscope/go-holocam/config"
)

// Prompt is the interactive surface. The operator answers yes/no questions
// and presses a key to start the capture. "q" during a capture ends it. The
// program is left on interrupt or at the end of the input.
type Prompt struct {
	state
	in  io.Reader
	out io.Writer
	// Interrupted reports whether the operator interrupted the program, e.g.
	// interrupt.IsSet.
	Interrupted func() bool
	// ProceedKey is the answer starting the capture.
	ProceedKey string

	once     sync.Once
	lines    chan string
	mu       sync.Mutex
	eof      bool
	sessions int
}

// NewPrompt returns a Prompt reading answers from in and writing questions to
// out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: in, out: out, ProceedKey: "k"}
}

// ShouldStart implements Surface.
func (p *Prompt) ShouldStart(ctx context.Context) (bool, error) {
	p.set(Idle)
	if p.ShouldExit() {
		return false, ErrExit
	}
	q := "Proceed with data acquisition? [y/n]"
	if p.sessions != 0 {
		q = "Start another task and proceed with data acquisition? [y/n]"
	}
	ok, err := p.ask(ctx, q)
	if err != nil || !ok {
		return false, err
	}
	p.sessions++
	p.set(Running)
	return true, nil
}

// ShouldProceed implements Surface.
func (p *Prompt) ShouldProceed(ctx context.Context) error {
	fmt.Fprintf(p.out, "\nWaiting before starting the measurement, press <%s> to proceed.\n", p.ProceedKey)
	for {
		l, err := p.readLine(ctx)
		if err != nil {
			return err
		}
		if l == p.ProceedKey {
			return nil
		}
	}
}

// ShouldContinue implements Surface. It doesn't block.
func (p *Prompt) ShouldContinue() bool {
	p.start()
	for {
		select {
		case l, ok := <-p.lines:
			if !ok {
				p.setEOF()
				p.set(Paused)
				return false
			}
			if l == "q" {
				p.set(Paused)
				return false
			}
		default:
			return !p.ShouldExit()
		}
	}
}

// ShouldExit implements Surface.
func (p *Prompt) ShouldExit() bool {
	p.mu.Lock()
	eof := p.eof
	p.mu.Unlock()
	if eof || (p.Interrupted != nil && p.Interrupted()) {
		p.set(Exiting)
		return true
	}
	return false
}

// EditConfig implements ConfigEditor. An empty or invalid answer keeps the
// current value.
func (p *Prompt) EditConfig(ctx context.Context, c config.Config) (config.Config, error) {
	ok, err := p.ask(ctx, "Change some acquisition settings? [y/n]")
	if err != nil || !ok {
		return c, err
	}
	bkg := float64(c.BackgroundFrames)
	fields := []struct {
		name string
		unit string
		v    *float64
		min  float64
	}{
		{"Exposure time", " ms", &c.ExposureMS, 0},
		{"Background images number", "", &bkg, 2},
		{"Time sleep", " ms", &c.SleepMS, 0},
		{"Variance threshold for image filtering", "", &c.ThresholdPercent, 0},
	}
	for _, f := range fields {
		v, err := p.askFloat(ctx, fmt.Sprintf("- %s (set value %g%s):", f.name, *f.v, f.unit), *f.v, f.min)
		if err != nil {
			return c, err
		}
		*f.v = v
	}
	c.BackgroundFrames = int(bkg)
	return c, nil
}

//

func (p *Prompt) ask(ctx context.Context, q string) (bool, error) {
	color.New(color.FgYellow).Fprintf(p.out, "\n%s ", q)
	l, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(l) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (p *Prompt) askFloat(ctx context.Context, q string, cur, min float64) (float64, error) {
	fmt.Fprintf(p.out, "%s ", q)
	l, err := p.readLine(ctx)
	if err != nil {
		return cur, err
	}
	v, err := strconv.ParseFloat(l, 64)
	if err != nil || v < min {
		if l != "" {
			fmt.Fprintf(p.out, "invalid value %q, keeping %g\n", l, cur)
		}
		return cur, nil
	}
	return v, nil
}

func (p *Prompt) start() {
	p.once.Do(func() {
		p.lines = make(chan string)
		go func() {
			s := bufio.NewScanner(p.in)
			for s.Scan() {
				p.lines <- strings.TrimSpace(s.Text())
			}
			close(p.lines)
		}()
	})
}

func (p *Prompt) readLine(ctx context.Context) (string, error) {
	p.start()
	select {
	case l, ok := <-p.lines:
		if !ok {
			p.setEOF()
			return "", ErrExit
		}
		return l, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Prompt) setEOF() {
	p.mu.Lock()
	p.eof = true
	p.mu.Unlock()
	p.set(Exiting)
}
