// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cameratest implements a fake camera.
package cameratest

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/holoscope/go-holocam/camera"
	"github.com/holoscope/go-holocam/frame"
)

// ErrGrab is the error injected by Fake.FailGrabs.
var ErrGrab = errors.New("cameratest: injected grab failure")

// Fake is a fake camera.Camera.
//
// Frames are served from Script first, then synthesized: a noisy flat
// background with, from time to time, the ring fringes of a particle crossing
// the field of view.
type Fake struct {
	Width    int
	Height   int
	BitDepth int
	// Script is served first, in order. A nil entry is a grab failure.
	Script []*frame.Frame
	// ConnectErrs are returned by the successive Connect calls.
	ConnectErrs []error
	// FailGrabs lists the 1-based Grab calls that fail with ErrGrab.
	FailGrabs map[int]bool
	// Delay is spent in every Grab, to mimic the sensor frame rate.
	Delay time.Duration
	// BurstRate is the probability of a synthesized frame to hold fringes.
	BurstRate float64

	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
	grabs       int
	exposure    time.Duration
	blackLevel  int
	noise       *noise
}

// New returns a fake 8 bits monochrome camera.
func New(width, height int) *Fake {
	return &Fake{Width: width, Height: height, BitDepth: 8, BurstRate: 0.2, noise: makeNoise(0)}
}

// Connect implements camera.Camera.
func (f *Fake) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.connects
	f.connects++
	if i < len(f.ConnectErrs) && f.ConnectErrs[i] != nil {
		return f.ConnectErrs[i]
	}
	f.connected = true
	return nil
}

// SetExposure implements camera.Camera.
func (f *Fake) SetExposure(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exposure = d
	return nil
}

// SetBlackLevel implements camera.Camera.
func (f *Fake) SetBlackLevel(offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blackLevel = offset
	return nil
}

// Grab implements camera.Camera.
func (f *Fake) Grab() (*frame.Frame, error) {
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, camera.ErrNotConnected
	}
	f.grabs++
	if f.FailGrabs[f.grabs] {
		return nil, ErrGrab
	}
	var img *frame.Frame
	if i := f.grabs - 1; i < len(f.Script) {
		if f.Script[i] == nil {
			return nil, ErrGrab
		}
		c := *f.Script[i]
		c.Pix = append([]uint16(nil), c.Pix...)
		img = &c
	} else {
		if f.noise == nil {
			f.noise = makeNoise(0)
		}
		img = frame.New(f.Width, f.Height, 1, f.BitDepth)
		f.noise.update()
		f.noise.render(img, f.noise.rand.Float64() < f.BurstRate)
	}
	img.Metadata.Captured = time.Now()
	img.Metadata.Sequence = uint64(f.grabs)
	return img, nil
}

// Disconnect implements camera.Camera.
func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

// Describe implements camera.Describer.
func (f *Fake) Describe() (camera.Info, error) {
	return camera.Info{
		Model:     "fake",
		Serial:    "1234",
		ColorMode: "monochrome",
		Width:     f.Width,
		Height:    f.Height,
		Channels:  1,
		BitDepth:  f.BitDepth,
	}, nil
}

// Connected returns true between a successful Connect and Disconnect.
func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Counts returns the number of Connect, Disconnect and Grab calls.
func (f *Fake) Counts() (connects, disconnects, grabs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects, f.grabs
}

// Settings returns the last exposure and black level set.
func (f *Fake) Settings() (time.Duration, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exposure, f.blackLevel
}

// Pattern returns an 8 bits monochrome frame repeating 100+devs[i%len(devs)].
//
// Its whole frame variance is exactly the population variance of devs when
// width*height is a multiple of len(devs), e.g. {-4, -2, 2, 4} is 10 and
// {-1, 1, -4, 4, -4, 4} is 11.
func Pattern(width, height int, devs ...int) *frame.Frame {
	f := frame.New(width, height, 1, 8)
	for i := range f.Pix {
		f.Pix[i] = uint16(100 + devs[i%len(devs)])
	}
	return f
}

//

type particle struct {
	x  float64
	y  float64
	vx float64
	vy float64
}

// noise is cheezy but gets us going for testing without a device.
type noise struct {
	rand *rand.Rand
	p    particle
}

func makeNoise(seed int64) *noise {
	n := &noise{rand: rand.New(rand.NewSource(seed))}
	n.respawn()
	return n
}

func (n *noise) respawn() {
	n.p = particle{
		x:  0.25 + n.rand.Float64()/2,
		y:  0.25 + n.rand.Float64()/2,
		vx: n.rand.NormFloat64() * 0.02,
		vy: n.rand.NormFloat64() * 0.02,
	}
}

func (n *noise) update() {
	n.p.x += n.p.vx
	n.p.y += n.p.vy
	if n.p.x < 0 || n.p.x > 1 || n.p.y < 0 || n.p.y > 1 {
		n.respawn()
	}
}

// render draws a flat background with sensor noise and, when burst is true,
// the concentric fringes of the particle.
func (n *noise) render(f *frame.Frame, burst bool) {
	max := float64(f.MaxValue())
	base := max / 4
	sigma := max / 128
	cx, cy := n.p.x*float64(f.Width), n.p.y*float64(f.Height)
	k := 40. / float64(f.Width*f.Width)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := base + n.rand.NormFloat64()*sigma
			if burst {
				dx, dy := float64(x)-cx, float64(y)-cy
				r2 := dx*dx + dy*dy
				v += base * math.Cos(k*r2) * math.Exp(-r2*k/20)
			}
			if v < 0 {
				v = 0
			} else if v > max {
				v = max
			}
			f.Pix[y*f.Width+x] = uint16(v)
		}
	}
}
