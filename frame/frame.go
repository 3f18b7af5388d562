// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package frame holds the image buffers grabbed from the camera and the
// statistics computed over them.
//
// A Frame stores raw sensor samples, one uint16 per channel, interleaved and
// row major. Values are not rescaled: an 8 bits sensor produces values in
// [0, 255], a 12 bits sensor values in [0, 4095].
package frame

import (
	"fmt"
	"image"
	"image/color"
	"time"
)

// Metadata is attached by the camera at grab time.
type Metadata struct {
	Captured time.Time // Wall clock time at which the buffer was retrieved.
	Sequence uint64    // Camera side frame counter, 0 if not provided.
}

// Frame is one image buffer. It is owned by the phase that grabbed it and is
// not modified after capture.
type Frame struct {
	Pix      []uint16
	Width    int
	Height   int
	Channels int
	BitDepth int
	Metadata Metadata
}

// New returns a zeroed frame.
func New(width, height, channels, bitDepth int) *Frame {
	if channels <= 0 {
		channels = 1
	}
	return &Frame{
		Pix:      make([]uint16, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
		BitDepth: bitDepth,
	}
}

// Validate returns an error if the buffer doesn't match the declared shape.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("frame: nil frame")
	}
	if f.Width <= 0 || f.Height <= 0 || f.Channels <= 0 {
		return fmt.Errorf("frame: invalid shape %dx%dx%d", f.Width, f.Height, f.Channels)
	}
	if len(f.Pix) != f.Width*f.Height*f.Channels {
		return fmt.Errorf("frame: %d samples for shape %dx%dx%d", len(f.Pix), f.Width, f.Height, f.Channels)
	}
	if f.BitDepth <= 0 || f.BitDepth > 16 {
		return fmt.Errorf("frame: unsupported bit depth %d", f.BitDepth)
	}
	return nil
}

// MaxValue is the saturation value of the sensor.
func (f *Frame) MaxValue() uint16 {
	if f.BitDepth <= 0 || f.BitDepth >= 16 {
		return 0xFFFF
	}
	return uint16(1)<<uint(f.BitDepth) - 1
}

// Sample returns channel c of pixel (x, y).
func (f *Frame) Sample(x, y, c int) uint16 {
	return f.Pix[(y*f.Width+x)*f.Channels+c]
}

// SetSample sets channel c of pixel (x, y). Only meant to be used while
// building a frame.
func (f *Frame) SetSample(x, y, c int, v uint16) {
	f.Pix[(y*f.Width+x)*f.Channels+c] = v
}

// ColorModel implements image.Image.
func (f *Frame) ColorModel() color.Model {
	if f.Channels == 1 {
		return color.Gray16Model
	}
	return color.RGBA64Model
}

// Bounds implements image.Image.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// At implements image.Image. It returns the raw samples, like image.Gray16
// would for a 14 bits thermal sensor.
func (f *Frame) At(x, y int) color.Color {
	if f.Channels == 1 {
		return color.Gray16{f.Sample(x, y, 0)}
	}
	return color.RGBA64{f.Sample(x, y, 0), f.Sample(x, y, 1), f.Sample(x, y, 2), 0xFFFF}
}

// Image converts the frame into a standard library image suitable for
// encoding. Frames up to 8 bits are converted to 8 bits images, deeper ones to
// 16 bits images, so the stored file keeps the raw sample values.
func (f *Frame) Image() image.Image {
	r := f.Bounds()
	n := f.Width * f.Height
	wide := f.BitDepth > 8
	switch {
	case f.Channels == 1 && !wide:
		img := image.NewGray(r)
		for i := 0; i < n; i++ {
			img.Pix[i] = uint8(f.Pix[i])
		}
		return img
	case f.Channels == 1:
		img := image.NewGray16(r)
		for i := 0; i < n; i++ {
			img.Pix[2*i] = uint8(f.Pix[i] >> 8)
			img.Pix[2*i+1] = uint8(f.Pix[i])
		}
		return img
	case !wide:
		img := image.NewRGBA(r)
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				img.Pix[4*i+c] = uint8(f.Pix[i*f.Channels+c])
			}
			img.Pix[4*i+3] = 0xFF
		}
		return img
	default:
		img := image.NewRGBA64(r)
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				v := f.Pix[i*f.Channels+c]
				img.Pix[8*i+2*c] = uint8(v >> 8)
				img.Pix[8*i+2*c+1] = uint8(v)
			}
			img.Pix[8*i+6] = 0xFF
			img.Pix[8*i+7] = 0xFF
		}
		return img
	}
}

// FromImage converts a decoded image back into a frame.
//
// bitDepth overrides the depth implied by the image type when non zero, e.g.
// 12 for a 12 bits sensor stored as 16 bits.
func FromImage(img image.Image, bitDepth int) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var f *Frame
	switch src := img.(type) {
	case *image.Gray:
		f = New(w, h, 1, 8)
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w]
			for x, v := range row {
				f.Pix[y*w+x] = uint16(v)
			}
		}
	case *image.Gray16:
		f = New(w, h, 1, 16)
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+2*w]
			for x := 0; x < w; x++ {
				f.Pix[y*w+x] = uint16(row[2*x])<<8 | uint16(row[2*x+1])
			}
		}
	case *image.RGBA, *image.NRGBA, *image.YCbCr, *image.Paletted:
		f = New(w, h, 3, 8)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				i := (y*w + x) * 3
				f.Pix[i], f.Pix[i+1], f.Pix[i+2] = uint16(c.R), uint16(c.G), uint16(c.B)
			}
		}
	case *image.RGBA64, *image.NRGBA64:
		f = New(w, h, 3, 16)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				i := (y*w + x) * 3
				f.Pix[i], f.Pix[i+1], f.Pix[i+2] = c.R, c.G, c.B
			}
		}
	default:
		f = New(w, h, 1, 16)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				f.Pix[y*w+x] = color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
			}
		}
	}
	if bitDepth > 0 {
		f.BitDepth = bitDepth
	}
	return f
}
