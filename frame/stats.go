// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package frame

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrWindowOutOfBounds is returned when the inspection window doesn't fit in
// the frame.
var ErrWindowOutOfBounds = errors.New("frame: inspection window outside frame")

// DefaultWindow is the 750x750 inspection window used on the 1280x1024 uEye
// sensor, away from the edges where the laser spot vignettes.
var DefaultWindow = image.Rect(300, 100, 1050, 850)

// Metrics are the health statistics of one frame.
type Metrics struct {
	Variance       float64
	StdDev         float64
	Min            int
	Max            int
	Mean           float64
	NullCount      int // Samples exactly at 0.
	SaturatedCount int // Samples exactly at the sensor saturation value.
}

// ComputeMetrics computes the health statistics over window. All the channels
// are pooled together. The standard deviation is the population one.
func ComputeMetrics(f *Frame, window image.Rectangle) (Metrics, error) {
	if err := f.Validate(); err != nil {
		return Metrics{}, err
	}
	if window.Empty() || !window.In(f.Bounds()) {
		return Metrics{}, fmt.Errorf("%w: %v not in %v", ErrWindowOutOfBounds, window, f.Bounds())
	}
	sat := f.MaxValue()
	m := Metrics{Min: math.MaxInt32, Max: -1}
	sum := 0.
	n := 0
	rowLen := window.Dx() * f.Channels
	for y := window.Min.Y; y < window.Max.Y; y++ {
		start := (y*f.Width + window.Min.X) * f.Channels
		for _, v := range f.Pix[start : start+rowLen] {
			iv := int(v)
			if iv < m.Min {
				m.Min = iv
			}
			if iv > m.Max {
				m.Max = iv
			}
			if v == 0 {
				m.NullCount++
			}
			if v == sat {
				m.SaturatedCount++
			}
			sum += float64(v)
			n++
		}
	}
	m.Mean = sum / float64(n)
	acc := 0.
	for y := window.Min.Y; y < window.Max.Y; y++ {
		start := (y*f.Width + window.Min.X) * f.Channels
		for _, v := range f.Pix[start : start+rowLen] {
			d := float64(v) - m.Mean
			acc += d * d
		}
	}
	m.Variance = acc / float64(n)
	m.StdDev = math.Sqrt(m.Variance)
	return m, nil
}

// Variance returns the population variance of every sample of the frame. It
// is the statistic used for gating and background estimation.
//
// It returns 0 for an empty frame.
func Variance(f *Frame) float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	sum := 0.
	for _, v := range f.Pix {
		sum += float64(v)
	}
	mean := sum / float64(len(f.Pix))
	acc := 0.
	for _, v := range f.Pix {
		d := float64(v) - mean
		acc += d * d
	}
	return acc / float64(len(f.Pix))
}

// FitWindow returns window if it fits in the frame, otherwise the largest
// window of the same size centered in the frame, clipped to the frame.
func FitWindow(window image.Rectangle, bounds image.Rectangle) image.Rectangle {
	if !window.Empty() && window.In(bounds) {
		return window
	}
	w, h := window.Dx(), window.Dy()
	if w > bounds.Dx() || w <= 0 {
		w = bounds.Dx()
	}
	if h > bounds.Dy() || h <= 0 {
		h = bounds.Dy()
	}
	x := bounds.Min.X + (bounds.Dx()-w)/2
	y := bounds.Min.Y + (bounds.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}
