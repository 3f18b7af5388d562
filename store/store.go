// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package store persists frames and lays out the session folders.
//
// Frames are stored as TIFF (default), PNG or FITS depending on the file
// extension. Files are written under a temporary name and renamed once
// complete, so a reader never sees a partially written frame.
package store

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
	"golang.org/x/image/tiff"

	"github.com/holoscope/go-holocam/frame"
)

// ErrUnsupported is returned for an unknown file extension.
var ErrUnsupported = errors.New("store: unsupported image extension")

// Saver persists one frame at path.
type Saver interface {
	Save(path string, f *frame.Frame) error
}

// Files is a Saver writing to the local file system.
type Files struct {
	// Cards are added to the primary header of FITS files.
	Cards []fitsio.Card
}

// Save implements Saver.
func (s *Files) Save(path string, f *frame.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	ext := Ext(path)
	if !Supported(ext) {
		return fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	if err = Encode(out, ext, f, s.Cards); err == nil {
		err = out.Close()
	} else {
		out.Close()
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Ext returns the lower case extension of path, without the dot.
func Ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Supported returns true if ext can be encoded and decoded.
func Supported(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "tif", "tiff", "png", "fits", "fit":
		return true
	}
	return false
}

// Encode writes f to w in the format implied by ext.
func Encode(w io.Writer, ext string, f *frame.Frame, cards []fitsio.Card) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "tif", "tiff":
		return tiff.Encode(w, f.Image(), &tiff.Options{Compression: tiff.Uncompressed})
	case "png":
		return png.Encode(w, f.Image())
	case "fits", "fit":
		return writeFits(w, cards, f)
	}
	return fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

// Decode reads a frame in the format implied by ext.
func Decode(r io.Reader, ext string) (*frame.Frame, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "tif", "tiff":
		img, err := tiff.Decode(r)
		if err != nil {
			return nil, err
		}
		return frame.FromImage(img, 0), nil
	case "png":
		img, err := png.Decode(r)
		if err != nil {
			return nil, err
		}
		return frame.FromImage(img, 0), nil
	case "fits", "fit":
		return readFits(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

// Load reads the frame stored at path.
func Load(path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, Ext(path))
}
