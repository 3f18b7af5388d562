// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package store

import (
	"fmt"
	"io/ioutil"
	"sort"
	"strconv"
	"strings"
)

// Digits is the minimum number of digits of the frame index in a file name.
//
// Indexes below 10 get 6 leading zeros, below 100 get 5 and so on, so that
// names sort lexicographically up to 9999999 frames.
const Digits = 7

const framePrefix = "image_"

// FrameName returns the file name of the frame at index, e.g.
// "image_0000042.tif".
func FrameName(index uint64, ext string) string {
	return fmt.Sprintf("%s%0*d.%s", framePrefix, Digits, index, strings.TrimPrefix(ext, "."))
}

// ParseFrameName is the reverse of FrameName.
func ParseFrameName(name string) (uint64, string, bool) {
	if !strings.HasPrefix(name, framePrefix) {
		return 0, "", false
	}
	rest := name[len(framePrefix):]
	dot := strings.IndexByte(rest, '.')
	if dot <= 0 {
		return 0, "", false
	}
	index, err := strconv.ParseUint(rest[:dot], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return index, rest[dot+1:], true
}

// FrameFile is a frame file found in a folder.
type FrameFile struct {
	Name  string
	Index uint64
	Ext   string // As found in Name, without the dot.
}

// ListFrames returns the files of dir named like frames, in index order.
// Other files, hidden files and folders are ignored.
func ListFrames(dir string) ([]FrameFile, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []FrameFile
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if i, ext, ok := ParseFrameName(e.Name()); ok {
			out = append(out, FrameFile{Name: e.Name(), Index: i, Ext: ext})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// Counter hands out monotonically increasing frame indexes. The zero value
// starts at 1.
type Counter struct {
	next uint64
}

// NewCounter returns a counter whose next index is start.
func NewCounter(start uint64) Counter {
	return Counter{next: start}
}

// Take returns the next index and advances the counter.
func (c *Counter) Take() uint64 {
	if c.next == 0 {
		c.next = 1
	}
	i := c.next
	c.next++
	return i
}

// Peek returns the index Take would return.
func (c *Counter) Peek() uint64 {
	if c.next == 0 {
		return 1
	}
	return c.next
}
