// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package acquire

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"sync"

	"github.com/fatih/color"
)

// RunLog is the human readable log of a session, mirrored on the operator
// console.
//
// Writing to the log is best effort: the first failure is reported through
// the log package and every later write to the file is dropped. A RunLog
// never returns a write error and never blocks the acquisition on a failed
// write.
type RunLog struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	console io.Writer
	failed  bool
}

// OpenRunLog creates the log file at path.
func OpenRunLog(path string, console io.Writer) (*RunLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return nil, err
	}
	l := NewRunLog(f, console)
	l.closer = f
	return l, nil
}

// NewRunLog returns a RunLog writing to w. console may be nil.
func NewRunLog(w io.Writer, console io.Writer) *RunLog {
	if console == nil {
		console = ioutil.Discard
	}
	return &RunLog{w: w, console: console}
}

// Printf writes a line.
func (l *RunLog) Printf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	l.emit(s, s+"\n", nil)
}

// Field writes a name/value line.
func (l *RunLog) Field(name string, value interface{}) {
	s := fmt.Sprintf("%-44s%v", name+":", value)
	l.emit(s, s+"\n", nil)
}

// Banner writes a phase banner.
func (l *RunLog) Banner(title string) {
	s := fmt.Sprintf("- - - - - - - - - - %s - - - - - - - - - -", title)
	l.emit("\n"+s+"\n", "\n"+s+"\n\n", green)
}

// Checkf writes the header of a health check.
func (l *RunLog) Checkf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	l.emit("\n"+s, "\n"+s+"\n", yellow)
}

// Warnf writes a warning.
func (l *RunLog) Warnf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	l.emit("\n"+s+"\n", "\n"+s+"\n", red)
}

// Failed returns true if a write to the log file failed.
func (l *RunLog) Failed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}

// Close closes the log file.
func (l *RunLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	l.w = ioutil.Discard
	return err
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// emit appends line to the file and prints msg on the console. Both happen
// under the lock: the write queue reports its failures from its own goroutine.
func (l *RunLog) emit(line, msg string, c *color.Color) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.failed {
		if _, err := io.WriteString(l.w, line+"\n"); err != nil {
			l.failed = true
			log.Printf("run log: %v; further writes are dropped", err)
		}
	}
	if c != nil {
		c.Fprint(l.console, msg)
	} else {
		io.WriteString(l.console, msg)
	}
}
