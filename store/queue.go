// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package store

import (
	"errors"
	"sync"

	"github.com/holoscope/go-holocam/frame"
)

// ErrClosed is returned by Queue.Save after Close.
var ErrClosed = errors.New("store: queue closed")

type job struct {
	path string
	f    *frame.Frame
}

// Queue is a Saver that writes frames on a single background goroutine.
//
// Frames are written in the order they were queued. When depth frames are
// pending, Save blocks until the writer catches up; frames are never dropped.
// Queue is meant to be used by a single producer.
type Queue struct {
	saver   Saver
	onError func(path string, err error)
	c       chan job
	done    chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

// NewQueue starts the writer goroutine. onError, if not nil, is called from
// the writer goroutine for every failed write.
func NewQueue(s Saver, depth int, onError func(path string, err error)) *Queue {
	if depth < 1 {
		depth = 1
	}
	q := &Queue{saver: s, onError: onError, c: make(chan job, depth), done: make(chan struct{})}
	go q.run()
	return q
}

// Save queues f. The returned error only reports whether the frame was
// accepted; write failures go to onError and Close.
func (q *Queue) Save(path string, f *frame.Frame) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}
	q.c <- job{path, f}
	return nil
}

// Close waits for every pending frame to be written and returns the first
// write error, if any.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.c)
	}
	q.mu.Unlock()
	<-q.done
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *Queue) run() {
	defer close(q.done)
	for j := range q.c {
		if err := q.saver.Save(j.path, j.f); err != nil {
			q.mu.Lock()
			if q.err == nil {
				q.err = err
			}
			q.mu.Unlock()
			if q.onError != nil {
				q.onError(j.path, err)
			}
		}
	}
}
