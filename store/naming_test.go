// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package store

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameName(t *testing.T) {
	data := []struct {
		index uint64
		want  string
	}{
		{1, "image_0000001.tif"},
		{9, "image_0000009.tif"},
		{10, "image_0000010.tif"},
		{99, "image_0000099.tif"},
		{100, "image_0000100.tif"},
		{999, "image_0000999.tif"},
		{1000, "image_0001000.tif"},
		{99999, "image_0099999.tif"},
		{100000, "image_0100000.tif"},
		{999999, "image_0999999.tif"},
		{1000000, "image_1000000.tif"},
		{12345678, "image_12345678.tif"},
	}
	for _, line := range data {
		if got := FrameName(line.index, "tif"); got != line.want {
			t.Fatalf("FrameName(%d) = %q, want %q", line.index, got, line.want)
		}
	}
	if got := FrameName(3, ".png"); got != "image_0000003.png" {
		t.Fatal(got)
	}
}

func TestFrameName_sorted(t *testing.T) {
	var names []string
	for _, i := range []uint64{1, 9, 10, 99, 100, 5000, 999999, 1000000, 9999999} {
		names = append(names, FrameName(i, "tif"))
	}
	if !sort.StringsAreSorted(names) {
		t.Fatal(names)
	}
}

func TestParseFrameName(t *testing.T) {
	i, ext, ok := ParseFrameName("image_0000042.tiff")
	if !ok || i != 42 || ext != "tiff" {
		t.Fatal(i, ext, ok)
	}
	for _, bad := range []string{"img_0000042.tif", "image_.tif", "image_abc.tif", "image_0000042", "log_file.txt"} {
		if _, _, ok := ParseFrameName(bad); ok {
			t.Fatal(bad)
		}
	}
}

func TestListFrames(t *testing.T) {
	dir, err := ioutil.TempDir("", "holocam")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	for _, n := range []string{"image_0000010.tif", "image_0000002.PNG", "image_0000001.tif", "notes.txt", ".image_0000003.tif"} {
		if err := ioutil.WriteFile(filepath.Join(dir, n), []byte("x"), 0666); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "image_0000004.tif"), 0777); err != nil {
		t.Fatal(err)
	}
	got, err := ListFrames(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []FrameFile{
		{Name: "image_0000001.tif", Index: 1, Ext: "tif"},
		{Name: "image_0000002.PNG", Index: 2, Ext: "PNG"},
		{Name: "image_0000010.tif", Index: 10, Ext: "tif"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if _, err := ListFrames(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Fatal(err)
	}
}

func TestCounter(t *testing.T) {
	var c Counter
	if c.Peek() != 1 {
		t.Fatal(c.Peek())
	}
	for want := uint64(1); want < 5; want++ {
		if got := c.Take(); got != want {
			t.Fatalf("Take() = %d, want %d", got, want)
		}
	}
	c = NewCounter(1000000)
	if got := c.Take(); got != 1000000 {
		t.Fatal(got)
	}
	if c.Peek() != 1000001 {
		t.Fatal(c.Peek())
	}
}
