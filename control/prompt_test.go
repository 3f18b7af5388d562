// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package control

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/holoscope/go-holocam/config"
)

func TestPrompt(t *testing.T) {
	ctx := context.Background()
	pr, pw := io.Pipe()
	var out bytes.Buffer
	p := NewPrompt(pr, &out)

	go io.WriteString(pw, "Y\n")
	if ok, err := p.ShouldStart(ctx); !ok || err != nil {
		t.Fatal(ok, err)
	}
	if p.State() != Running {
		t.Fatal(p.State())
	}

	go io.WriteString(pw, "x\nk\n")
	if err := p.ShouldProceed(ctx); err != nil {
		t.Fatal(err)
	}
	if !p.ShouldContinue() {
		t.Fatal("nothing typed yet")
	}
	go io.WriteString(pw, "q\n")
	waitFor(t, func() bool { return !p.ShouldContinue() })
	if p.State() != Paused {
		t.Fatal(p.State())
	}

	go io.WriteString(pw, "no\n")
	if ok, err := p.ShouldStart(ctx); ok || err != nil {
		t.Fatal(ok, err)
	}
	s := out.String()
	if !strings.Contains(s, "Proceed with data acquisition? [y/n]") ||
		!strings.Contains(s, "press <k> to proceed") ||
		!strings.Contains(s, "Start another task and proceed with data acquisition? [y/n]") {
		t.Fatal(s)
	}

	pw.Close()
	if _, err := p.ShouldStart(ctx); err != ErrExit {
		t.Fatal(err)
	}
	if !p.ShouldExit() || p.State() != Exiting {
		t.Fatal(p.State())
	}
}

func TestPrompt_editConfig(t *testing.T) {
	pr, pw := io.Pipe()
	var out bytes.Buffer
	p := NewPrompt(pr, &out)
	go io.WriteString(pw, "y\n2\n\n-5\n7.5\n")
	c, err := p.EditConfig(context.Background(), config.Default())
	if err != nil {
		t.Fatal(err)
	}
	want := config.Default()
	want.ExposureMS = 2
	want.ThresholdPercent = 7.5
	if c != want {
		t.Fatalf("%+v", c)
	}
	if !strings.Contains(out.String(), "keeping 300") {
		t.Fatal(out.String())
	}

	go io.WriteString(pw, "n\n")
	if c, err = p.EditConfig(context.Background(), want); err != nil || c != want {
		t.Fatal(c, err)
	}
}

func TestPrompt_interrupted(t *testing.T) {
	p := NewPrompt(strings.NewReader("y\n"), &bytes.Buffer{})
	p.Interrupted = func() bool { return true }
	if _, err := p.ShouldStart(context.Background()); err != ErrExit {
		t.Fatal(err)
	}
	if p.ShouldContinue() {
		t.Fatal("interrupted")
	}
}

func TestPrompt_canceled(t *testing.T) {
	pr, _ := io.Pipe()
	p := NewPrompt(pr, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.ShouldProceed(ctx); err != context.Canceled {
		t.Fatal(err)
	}
}

//

func waitFor(t *testing.T, f func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !f() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}
