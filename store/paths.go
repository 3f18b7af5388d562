// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Layout selects how the three session folders are arranged under the root.
type Layout string

// Valid values for Layout.
const (
	// Flat is <root>/data/<ts>/, <root>/log_files/<ts>/, <root>/background/<ts>/.
	Flat Layout = "flat"
	// Nested is <root>/<ts>/data/, <root>/<ts>/log_files/, <root>/<ts>/background/.
	Nested Layout = "nested"
)

// Folder names.
const (
	DataDir       = "data"
	LogDir        = "log_files"
	BackgroundDir = "background"
	LogFileName   = "log_file.txt"
)

// Paths are the folders of one acquisition session.
type Paths struct {
	Stamp      string
	Data       string
	Log        string
	Background string
}

// LogFile is the path of the session run log.
func (p Paths) LogFile() string {
	return filepath.Join(p.Log, LogFileName)
}

// NewPaths returns the session folders for a session started at t. It doesn't
// touch the file system.
func NewPaths(root string, layout Layout, t time.Time) Paths {
	if layout == Nested {
		stamp := t.Format("20060102_150405")
		return newPaths(root, layout, stamp)
	}
	return newPaths(root, layout, t.Format("2006-01-02_15-04-05"))
}

func newPaths(root string, layout Layout, stamp string) Paths {
	if layout == Nested {
		base := filepath.Join(root, stamp)
		return Paths{
			Stamp:      stamp,
			Data:       filepath.Join(base, DataDir),
			Log:        filepath.Join(base, LogDir),
			Background: filepath.Join(base, BackgroundDir),
		}
	}
	return Paths{
		Stamp:      stamp,
		Data:       filepath.Join(root, DataDir, stamp),
		Log:        filepath.Join(root, LogDir, stamp),
		Background: filepath.Join(root, BackgroundDir, stamp),
	}
}

// AllocatePaths creates fresh session folders. If a previous session already
// used the timestamp, a numeric suffix is appended so folders are never
// shared between sessions.
func AllocatePaths(root string, layout Layout, t time.Time) (Paths, error) {
	p := NewPaths(root, layout, t)
	stamp := p.Stamp
	for i := 2; p.exists(); i++ {
		if i > 1000 {
			return Paths{}, fmt.Errorf("store: no free session folder for %s", stamp)
		}
		p = newPaths(root, layout, fmt.Sprintf("%s_%d", stamp, i))
	}
	for _, d := range []string{p.Data, p.Log, p.Background} {
		if err := os.MkdirAll(d, 0777); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (p Paths) exists() bool {
	for _, d := range []string{p.Data, p.Log, p.Background} {
		if _, err := os.Stat(d); err == nil {
			return true
		}
	}
	return false
}
