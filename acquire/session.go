// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package acquire runs the acquisition sessions.
//
// A session connects the camera, records a batch of background frames,
// waits for the operator, then captures frames continuously until told to
// stop. Captured frames are kept only when their variance differs enough from
// the background. The camera is released and the run log closed on every
// exit path.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/google/uuid"

	"github.com/holoscope/go-holocam/background"
	"github.com/holoscope/go-holocam/camera"
	"github.com/holoscope/go-holocam/config"
	"github.com/holoscope/go-holocam/control"
	"github.com/holoscope/go-holocam/frame"
	"github.com/holoscope/go-holocam/gate"
	"github.com/holoscope/go-holocam/store"
)

// ErrConnect is returned when the camera couldn't be connected.
var ErrConnect = errors.New("acquire: camera connection failed")

// Phase is the phase of a session.
type Phase int

// Valid values for Phase.
const (
	Initializing Phase = iota
	CalibratingBackground
	AwaitingTrigger
	Capturing
	Finalizing
	Closed
	Aborting
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "Initializing"
	case CalibratingBackground:
		return "CalibratingBackground"
	case AwaitingTrigger:
		return "AwaitingTrigger"
	case Capturing:
		return "Capturing"
	case Finalizing:
		return "Finalizing"
	case Closed:
		return "Closed"
	case Aborting:
		return "Aborting"
	}
	return "Phase(?)"
}

// Thermometer reports the temperature of the board in °C.
type Thermometer interface {
	Temperature() (float64, error)
}

// Result summarizes a session.
type Result struct {
	ID    string
	Paths store.Paths
	// Reference is the background reference. It is meaningful only when
	// BackgroundErr is nil.
	Reference     background.Reference
	BackgroundErr error
	// PassThrough is true when every frame was kept without filtering.
	PassThrough bool

	Background int // Calibration frames saved.
	Grabbed    int // Frames captured after the trigger.
	Admitted   int
	Rejected   int
	GrabErrors int
	SaveErrors int
	// First and Last are the sequence numbers used; 0 if none.
	First uint64
	Last  uint64
}

// Session is one acquisition session.
type Session struct {
	Config  config.Config
	Camera  camera.Camera
	Surface control.Surface
	// Counter numbers the captured frames. It is shared across the sessions of
	// a Loop.
	Counter *store.Counter

	// Optional.
	Console     io.Writer
	Thermometer Thermometer
	// Progress is called after every frame of the calibration and capture
	// phases. total is 0 when unbounded.
	Progress func(p Phase, done, total int)
	// Saver overrides the file writer; mostly for tests.
	Saver store.Saver
	Now   func() time.Time

	mu    sync.Mutex
	phase Phase
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// abort marks the session as aborting while the resources are released.
func (s *Session) abort(err error) error {
	s.setPhase(Aborting)
	return err
}

// Run runs the session to completion.
//
// It returns control.ErrExit or the context error when the operator asked to
// leave, ErrConnect if the camera couldn't be connected.
func (s *Session) Run(ctx context.Context) (res Result, err error) {
	cfg := s.Config
	if s.Counter == nil {
		s.Counter = &store.Counter{}
	}
	if cfg.ResetCounter {
		*s.Counter = store.NewCounter(1)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	res.ID = uuid.New().String()
	s.setPhase(Initializing)
	defer s.setPhase(Closed)
	if s.Surface.ShouldExit() {
		return res, s.abort(control.ErrExit)
	}

	if res.Paths, err = store.AllocatePaths(cfg.Root, cfg.StoreLayout(), now()); err != nil {
		return res, err
	}
	rl, err := OpenRunLog(res.Paths.LogFile(), s.Console)
	if err != nil {
		return res, err
	}
	defer rl.Close()
	rl.Field("Session", res.ID)
	rl.Field("Started", now().Format(time.RFC3339))

	if err = camera.Connect(ctx, s.Camera, cfg.Policy(), func(err error, next time.Duration) {
		rl.Warnf("Camera connection failed: %v, retrying in %s", err, next.Round(time.Millisecond))
	}); err != nil {
		if ctx.Err() != nil {
			return res, s.abort(ctx.Err())
		}
		rl.Warnf("Camera connection failed: %v", err)
		return res, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	defer func() {
		if err := s.Camera.Disconnect(); err != nil {
			rl.Warnf("Camera disconnection failed: %v", err)
		} else {
			rl.Printf("Camera disconnected")
		}
	}()
	s.configure(rl, &cfg)
	s.header(rl, &cfg)
	if s.Surface.ShouldExit() {
		return res, s.abort(control.ErrExit)
	}

	files := &store.Files{Cards: s.cards(&cfg, res.ID)}
	var saver store.Saver = files
	if s.Saver != nil {
		saver = s.Saver
	}

	s.setPhase(CalibratingBackground)
	if res.Background, err = s.calibrate(ctx, rl, &cfg, res.Paths.Background, saver); err != nil {
		return res, s.abort(err)
	}

	s.setPhase(AwaitingTrigger)
	rl.Printf("\nWaiting before starting the measurement.")
	if err = s.Surface.ShouldProceed(ctx); err != nil {
		return res, s.abort(err)
	}
	g := &gate.Gate{ThresholdPercent: cfg.ThresholdPercent, Disabled: !cfg.VarianceFilter}
	res.Reference, res.BackgroundErr = background.EstimateDir(res.Paths.Background, cfg.Extension)
	if !s.reportBackground(rl, res.Reference, res.BackgroundErr) {
		g.Disabled = true
	}
	res.PassThrough = g.Disabled

	s.setPhase(Capturing)
	var q *store.Queue
	queueErrors := 0
	if cfg.WriteQueue > 0 {
		q = store.NewQueue(saver, cfg.WriteQueue, func(path string, err error) {
			queueErrors++
			rl.Warnf("Saving %s failed: %v", filepath.Base(path), err)
		})
		g.Saver = q
		defer func() {
			// Pending frames are written before the camera is released.
			if q != nil {
				q.Close()
			}
		}()
	} else {
		g.Saver = saver
	}
	if err = s.capture(ctx, rl, &cfg, res.Paths.Data, g, res.Reference, &res); err != nil {
		s.abort(err)
	} else {
		s.setPhase(Finalizing)
	}
	if q != nil {
		// Close waits for the writer, queueErrors is stable afterward.
		q.Close()
		res.SaveErrors += queueErrors
		q = nil
	}
	rl.Field("Frames captured", res.Grabbed)
	rl.Field("Frames kept", res.Admitted)
	rl.Field("Frames discarded", res.Rejected)
	if res.GrabErrors != 0 || res.SaveErrors != 0 {
		rl.Field("Grab failures", res.GrabErrors)
		rl.Field("Save failures", res.SaveErrors)
	}
	rl.Banner("DATA ACQUISITION END")
	return res, err
}

// configure applies the camera settings. Failures are not fatal.
func (s *Session) configure(rl *RunLog, cfg *config.Config) {
	if d, ok := s.Camera.(camera.Describer); ok {
		if info, err := d.Describe(); err != nil {
			rl.Warnf("Camera description failed: %v", err)
		} else {
			rl.Field("Camera model", info.Model)
			rl.Field("Camera serial no.", info.Serial)
			rl.Field("Camera image size", fmt.Sprintf("%dx%d", info.Width, info.Height))
			rl.Field("Color mode", info.ColorMode)
			rl.Field("Bits per pixel", info.BitDepth)
		}
	}
	if err := s.Camera.SetExposure(cfg.Exposure()); err != nil {
		rl.Warnf("Camera exposure setting failed: %v", err)
	} else {
		rl.Field("Camera exposure setting", fmt.Sprintf("%.3f ms", cfg.ExposureMS))
	}
	if err := s.Camera.SetBlackLevel(cfg.BlackLevel); err != nil {
		rl.Warnf("Camera black level setting failed: %v", err)
	} else {
		rl.Field("Camera black level setting", cfg.BlackLevel)
	}
}

func (s *Session) header(rl *RunLog, cfg *config.Config) {
	rl.Printf("")
	rl.Field("Image format", cfg.Extension)
	rl.Field("Pixel size", fmt.Sprintf("%g um", cfg.PixelSizeUM))
	rl.Field("Wavelength", fmt.Sprintf("%g um", cfg.WavelengthUM))
	rl.Field("Medium refractive index", fmt.Sprintf("%.5f", cfg.Medium()))
	rl.Field("Variance threshold", fmt.Sprintf("%g %%", cfg.ThresholdPercent))
	rl.Field("Variance filter", cfg.VarianceFilter)
}

func (s *Session) cards(cfg *config.Config, id string) []fitsio.Card {
	return []fitsio.Card{
		{Name: "SESSION", Value: id, Comment: "acquisition session"},
		{Name: "EXPTIME", Value: cfg.ExposureMS / 1000, Comment: "exposure time [s]"},
		{Name: "BLACKLVL", Value: cfg.BlackLevel, Comment: "black level offset"},
		{Name: "PIXSIZE", Value: cfg.PixelSizeUM, Comment: "pixel size [um]"},
		{Name: "WAVELEN", Value: cfg.WavelengthUM, Comment: "wavelength [um]"},
		{Name: "MEDINDEX", Value: cfg.Medium(), Comment: "medium refractive index"},
	}
}

// calibrate records the background frames in dir. The frames are numbered
// from 1 in their own folder.
func (s *Session) calibrate(ctx context.Context, rl *RunLog, cfg *config.Config, dir string, saver store.Saver) (int, error) {
	rl.Banner("BACKGROUND ACQUISITION START")
	rl.Field("Selected path", dir)
	rl.Field("Number of background images", cfg.BackgroundFrames)
	s.sleepField(rl, cfg)
	saved := 0
	window := cfg.Window.Rect()
	for i := 1; i <= cfg.BackgroundFrames; i++ {
		if s.Surface.ShouldExit() {
			return saved, control.ErrExit
		}
		f, err := s.Camera.Grab()
		if err != nil {
			rl.Warnf("Background image %d: grab failed: %v", i, err)
		} else {
			if cfg.BackgroundCheckEvery > 0 && i%cfg.BackgroundCheckEvery == 0 {
				s.check(rl, f, window, uint64(i))
			}
			if err := saver.Save(filepath.Join(dir, store.FrameName(uint64(i), cfg.Extension)), f); err != nil {
				rl.Warnf("Background image %d: saving failed: %v", i, err)
			} else {
				saved++
			}
		}
		if s.Progress != nil {
			s.Progress(CalibratingBackground, i, cfg.BackgroundFrames)
		}
		if i == cfg.BackgroundFrames {
			break
		}
		if err := sleep(ctx, cfg.Sleep()); err != nil {
			return saved, err
		}
		if !s.Surface.ShouldContinue() {
			rl.Printf("Background acquisition stopped after %d images", i)
			break
		}
	}
	rl.Banner("BACKGROUND ACQUISITION END")
	return saved, nil
}

// reportBackground logs the background reference. It returns false if the
// reference can't be used for filtering.
func (s *Session) reportBackground(rl *RunLog, ref background.Reference, err error) bool {
	var e *background.Error
	switch {
	case errors.As(err, &e) && e.Kind == background.ErrFormatMismatch:
		rl.Warnf("Image extension not recognized!\n\t- required format: %s\n\t- provided extension: %s", e.Want, e.Got)
	case errors.As(err, &e) && e.Missing:
		rl.Warnf("Background folder not found!")
	case errors.As(err, &e):
		rl.Warnf("Background folder empty, could not upload data!")
	case err != nil:
		rl.Warnf("Background estimation failed: %v", err)
	case ref.Degenerate():
		rl.Warnf("NULL background variance, invalid value!")
	default:
		rl.Field("Background variance", fmt.Sprintf("%.3f", ref.Variance))
		rl.Field("Background std deviation", fmt.Sprintf("%.3f", ref.StdDev))
		rl.Field("Background images used", ref.SampleCount)
		return true
	}
	rl.Warnf("Variance filter disabled, every image is kept.")
	return false
}

func (s *Session) capture(ctx context.Context, rl *RunLog, cfg *config.Config, dir string, g *gate.Gate, ref background.Reference, res *Result) error {
	rl.Banner("DATA ACQUISITION START")
	rl.Field("Selected path", dir)
	s.sleepField(rl, cfg)
	if cfg.CaptureCheckEvery > 0 {
		rl.Printf("\nImage check every %d images", cfg.CaptureCheckEvery)
	}
	window := cfg.Window.Rect()
	for {
		if s.Surface.ShouldExit() {
			return control.ErrExit
		}
		f, err := s.Camera.Grab()
		switch {
		case errors.Is(err, camera.ErrExhausted):
			rl.Printf("Camera has no more frames")
			return nil
		case err != nil:
			res.GrabErrors++
			rl.Warnf("Grab failed: %v", err)
		default:
			index := s.Counter.Take()
			if res.First == 0 {
				res.First = index
			}
			res.Last = index
			res.Grabbed++
			if cfg.CaptureCheckEvery > 0 && res.Grabbed%cfg.CaptureCheckEvery == 0 {
				s.check(rl, f, window, index)
			}
			path := filepath.Join(dir, store.FrameName(index, cfg.Extension))
			d, err := g.Process(ref, f, path)
			if d.Admitted {
				res.Admitted++
			} else {
				res.Rejected++
			}
			if err != nil {
				res.SaveErrors++
				rl.Warnf("Saving %s failed: %v", filepath.Base(path), err)
			}
			if s.Progress != nil {
				s.Progress(Capturing, res.Grabbed, 0)
			}
		}
		if err := sleep(ctx, cfg.Sleep()); err != nil {
			return err
		}
		if s.Surface.ShouldExit() {
			return control.ErrExit
		}
		if !s.Surface.ShouldContinue() {
			return nil
		}
	}
}

// check logs the health of frame f.
func (s *Session) check(rl *RunLog, f *frame.Frame, window image.Rectangle, index uint64) {
	rl.Checkf("Image check - Image number: %d", index)
	m, err := frame.ComputeMetrics(f, frame.FitWindow(window, f.Bounds()))
	if err != nil {
		rl.Warnf("Image check failed: %v", err)
		return
	}
	rl.Field("\t- Minimum image value", m.Min)
	rl.Field("\t- Maximum image value", m.Max)
	rl.Field("\t- Average image value", fmt.Sprintf("%.3f", m.Mean))
	rl.Field("\t- Image Std deviation", fmt.Sprintf("%.3f", m.StdDev))
	rl.Field("\t- Number of NULL pixels", m.NullCount)
	rl.Field("\t- Number of saturated pixels", m.SaturatedCount)
	if s.Thermometer != nil {
		if t, err := s.Thermometer.Temperature(); err == nil {
			rl.Field("\t- Board temperature", fmt.Sprintf("%.1f °C", t))
		}
	}
}

func (s *Session) sleepField(rl *RunLog, cfg *config.Config) {
	if cfg.SleepEnabled {
		rl.Field("Time sleep between two consecutive images", fmt.Sprintf("true, T = %g ms", cfg.SleepMS))
	} else {
		rl.Field("Time sleep between two consecutive images", false)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isExit(err error) bool {
	return errors.Is(err, control.ErrExit) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
