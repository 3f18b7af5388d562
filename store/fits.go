// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package store

import (
	"errors"
	"fmt"
	"io"

	"github.com/astrogo/fitsio"

	"github.com/holoscope/go-holocam/frame"
)

// writeFits streams a 16 bits FITS file to w. Channels are stored as planes
// along the third axis.
func writeFits(w io.Writer, metadata []fitsio.Card, f *frame.Frame) error {
	cards := make([]fitsio.Card, 0, len(metadata)+3)
	cards = append(cards, metadata...)
	cards = append(cards,
		fitsio.Card{Name: "BZERO", Value: 32768},
		fitsio.Card{Name: "BSCALE", Value: 1.0},
		fitsio.Card{Name: "SENSBITS", Value: f.BitDepth, Comment: "sensor bit depth"})
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	dims := []int{f.Width, f.Height}
	if f.Channels > 1 {
		dims = append(dims, f.Channels)
	}
	im := fitsio.NewImage(16, dims)
	defer im.Close()
	if err := im.Header().Append(cards...); err != nil {
		return err
	}
	// The samples are interleaved in the frame and planar in the file.
	n := f.Width * f.Height
	out := make([]int16, len(f.Pix))
	for i := 0; i < n; i++ {
		for c := 0; c < f.Channels; c++ {
			out[c*n+i] = int16(int32(f.Pix[i*f.Channels+c]) - 32768)
		}
	}
	if err := im.Write(out); err != nil {
		return err
	}
	return fits.Write(im)
}

func readFits(r io.Reader) (*frame.Frame, error) {
	fits, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer fits.Close()
	img, ok := fits.HDU(0).(fitsio.Image)
	if !ok {
		return nil, errors.New("store: primary HDU is not an image")
	}
	hdr := img.Header()
	if hdr.Bitpix() != 16 {
		return nil, fmt.Errorf("store: unsupported FITS BITPIX %d", hdr.Bitpix())
	}
	axes := hdr.Axes()
	if len(axes) < 2 || len(axes) > 3 {
		return nil, fmt.Errorf("store: unsupported FITS axes %v", axes)
	}
	channels := 1
	if len(axes) == 3 {
		channels = axes[2]
	}
	depth := 16
	if c := hdr.Get("SENSBITS"); c != nil {
		if v, ok := cardInt(c.Value); ok && v > 0 && v <= 16 {
			depth = v
		}
	}
	zero := 0
	if c := hdr.Get("BZERO"); c != nil {
		if v, ok := cardInt(c.Value); ok {
			zero = v
		}
	}
	f := frame.New(axes[0], axes[1], channels, depth)
	n := f.Width * f.Height
	raw := make([]int16, n*channels)
	if err := img.Read(&raw); err != nil {
		return nil, err
	}
	if len(raw) != n*channels {
		return nil, fmt.Errorf("store: FITS holds %d samples, expected %d", len(raw), n*channels)
	}
	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			f.Pix[i*channels+c] = uint16(int32(raw[c*n+i]) + int32(zero))
		}
	}
	return f, nil
}

func cardInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case int32:
		return int(t), true
	case float64:
		return int(t), true
	case float32:
		return int(t), true
	}
	return 0, false
}
