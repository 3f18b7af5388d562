// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the acquisition settings.
//
// The settings are read from a YAML file layered over the defaults. Keys are
// the field names. A Config is never modified while a session runs; the
// operator may change it between sessions.
package config

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/holoscope/go-holocam/camera"
	"github.com/holoscope/go-holocam/store"
)

// FileName is the default configuration file name.
const FileName = "holocam.yml"

// Window is the inspection window used for the health checks, in pixels.
// X1 and Y1 are exclusive.
type Window struct {
	X0 int `koanf:"X0" yaml:"X0"`
	Y0 int `koanf:"Y0" yaml:"Y0"`
	X1 int `koanf:"X1" yaml:"X1"`
	Y1 int `koanf:"Y1" yaml:"Y1"`
}

// Rect returns the window as a rectangle.
func (w Window) Rect() image.Rectangle {
	return image.Rect(w.X0, w.Y0, w.X1, w.Y1)
}

// Retry is the camera connection retry policy.
type Retry struct {
	InitialMS    int `koanf:"InitialMS" yaml:"InitialMS"`
	MaxMS        int `koanf:"MaxMS" yaml:"MaxMS"`
	MaxElapsedMS int `koanf:"MaxElapsedMS" yaml:"MaxElapsedMS"`
	MaxRetries   int `koanf:"MaxRetries" yaml:"MaxRetries"`
}

// Line is one digital input line of the control panel.
type Line struct {
	// Name is the pin name as known by the host, e.g. "GPIO17".
	Name string `koanf:"Name" yaml:"Name"`
	// Pull is "up", "down" or "float".
	Pull string `koanf:"Pull" yaml:"Pull"`
}

// Lines is the control panel wiring.
type Lines struct {
	Run     Line `koanf:"Run" yaml:"Run"`
	Acquire Line `koanf:"Acquire" yaml:"Acquire"`
	Stop    Line `koanf:"Stop" yaml:"Stop"`
	Exit    Line `koanf:"Exit" yaml:"Exit"`
	// PollMS is the interval between two reads of the lines.
	PollMS int `koanf:"PollMS" yaml:"PollMS"`
}

// Config is the acquisition configuration.
type Config struct {
	// Camera.
	ExposureMS float64 `koanf:"ExposureMS" yaml:"ExposureMS"`
	BlackLevel int     `koanf:"BlackLevel" yaml:"BlackLevel"`
	Connect    Retry   `koanf:"Connect" yaml:"Connect"`

	// Cadence.
	SleepMS      float64 `koanf:"SleepMS" yaml:"SleepMS"`
	SleepEnabled bool    `koanf:"SleepEnabled" yaml:"SleepEnabled"`

	// Filtering.
	BackgroundFrames int     `koanf:"BackgroundFrames" yaml:"BackgroundFrames"`
	ThresholdPercent float64 `koanf:"ThresholdPercent" yaml:"ThresholdPercent"`
	VarianceFilter   bool    `koanf:"VarianceFilter" yaml:"VarianceFilter"`

	// Optical setup, reported in the run log.
	PixelSizeUM  float64 `koanf:"PixelSizeUM" yaml:"PixelSizeUM"`
	WavelengthUM float64 `koanf:"WavelengthUM" yaml:"WavelengthUM"`
	// MediumIndex is the refractive index of the medium. 0 means air at
	// WavelengthUM.
	MediumIndex float64 `koanf:"MediumIndex" yaml:"MediumIndex"`

	// Storage.
	Extension    string `koanf:"Extension" yaml:"Extension"`
	Root         string `koanf:"Root" yaml:"Root"`
	Layout       string `koanf:"Layout" yaml:"Layout"`
	WriteQueue   int    `koanf:"WriteQueue" yaml:"WriteQueue"`
	ResetCounter bool   `koanf:"ResetCounter" yaml:"ResetCounter"`

	// Health checks.
	Window               Window `koanf:"Window" yaml:"Window"`
	BackgroundCheckEvery int    `koanf:"BackgroundCheckEvery" yaml:"BackgroundCheckEvery"`
	CaptureCheckEvery    int    `koanf:"CaptureCheckEvery" yaml:"CaptureCheckEvery"`

	Lines Lines `koanf:"Lines" yaml:"Lines"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		ExposureMS:           0.01,
		BlackLevel:           220,
		Connect:              Retry{InitialMS: 500, MaxMS: 5000, MaxElapsedMS: 30000},
		SleepMS:              300,
		SleepEnabled:         true,
		BackgroundFrames:     250,
		ThresholdPercent:     5,
		VarianceFilter:       true,
		PixelSizeUM:          5.3,
		WavelengthUM:         0.6335,
		Extension:            "tif",
		Root:                 "/media/usb",
		Layout:               string(store.Flat),
		Window:               Window{X0: 300, Y0: 100, X1: 1050, Y1: 850},
		BackgroundCheckEvery: 25,
		CaptureCheckEvery:    50,
		Lines: Lines{
			Run:     Line{Name: "GPIO14", Pull: "down"},
			Acquire: Line{Name: "GPIO15", Pull: "down"},
			Stop:    Line{Name: "GPIO17", Pull: "up"},
			Exit:    Line{Name: "GPIO23", Pull: "down"},
			PollMS:  10,
		},
	}
}

// Load returns the configuration stored in path layered over the defaults.
// A missing file is not an error.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
			}
		}
	}
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

// Write encodes c as YAML.
func Write(w io.Writer, c Config) error {
	return yml.NewEncoder(w).Encode(c)
}

// WriteFile writes c as YAML to path.
func WriteFile(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = Write(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Validate returns an error if the configuration can't drive a session.
func (c *Config) Validate() error {
	var errs []string
	if c.BackgroundFrames < 2 {
		// The first frame is a warm-up frame, one more is needed.
		errs = append(errs, fmt.Sprintf("BackgroundFrames must be at least 2, got %d", c.BackgroundFrames))
	}
	if c.SleepMS < 0 || math.IsNaN(c.SleepMS) {
		errs = append(errs, fmt.Sprintf("SleepMS must be positive, got %g", c.SleepMS))
	}
	if c.ExposureMS < 0 || math.IsNaN(c.ExposureMS) {
		errs = append(errs, fmt.Sprintf("ExposureMS must be positive, got %g", c.ExposureMS))
	}
	if c.ThresholdPercent < 0 || math.IsNaN(c.ThresholdPercent) {
		errs = append(errs, fmt.Sprintf("ThresholdPercent must be positive, got %g", c.ThresholdPercent))
	}
	if c.Extension == "" || !store.Supported(c.Extension) {
		errs = append(errs, fmt.Sprintf("unsupported Extension %q", c.Extension))
	}
	if l := store.Layout(c.Layout); l != store.Flat && l != store.Nested {
		errs = append(errs, fmt.Sprintf("unknown Layout %q", c.Layout))
	}
	if c.Window.Rect().Empty() {
		errs = append(errs, fmt.Sprintf("empty Window %v", c.Window.Rect()))
	}
	if c.BackgroundCheckEvery < 0 || c.CaptureCheckEvery < 0 {
		errs = append(errs, "health check periods must be positive")
	}
	if c.WriteQueue < 0 {
		errs = append(errs, fmt.Sprintf("WriteQueue must be positive, got %d", c.WriteQueue))
	}
	if c.MediumIndex < 0 || (c.MediumIndex == 0 && c.WavelengthUM <= 0) {
		errs = append(errs, "MediumIndex or WavelengthUM must be set")
	}
	for _, l := range []Line{c.Lines.Run, c.Lines.Acquire, c.Lines.Stop, c.Lines.Exit} {
		switch l.Pull {
		case "", "up", "down", "float":
		default:
			errs = append(errs, fmt.Sprintf("line %s: unknown Pull %q", l.Name, l.Pull))
		}
	}
	if len(errs) != 0 {
		return errors.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// Exposure returns the camera exposure time.
func (c *Config) Exposure() time.Duration {
	return time.Duration(c.ExposureMS * float64(time.Millisecond))
}

// Sleep returns the pause between two frames, 0 if disabled.
func (c *Config) Sleep() time.Duration {
	if !c.SleepEnabled {
		return 0
	}
	return time.Duration(c.SleepMS * float64(time.Millisecond))
}

// Poll returns the control lines polling interval.
func (c *Config) Poll() time.Duration {
	if c.Lines.PollMS <= 0 {
		return 10 * time.Millisecond
	}
	return time.Duration(c.Lines.PollMS) * time.Millisecond
}

// Policy returns the camera connection retry policy.
func (c *Config) Policy() camera.Policy {
	return camera.Policy{
		InitialInterval: time.Duration(c.Connect.InitialMS) * time.Millisecond,
		MaxInterval:     time.Duration(c.Connect.MaxMS) * time.Millisecond,
		MaxElapsed:      time.Duration(c.Connect.MaxElapsedMS) * time.Millisecond,
		MaxRetries:      c.Connect.MaxRetries,
	}
}

// StoreLayout returns the session folders layout.
func (c *Config) StoreLayout() store.Layout {
	return store.Layout(c.Layout)
}

// Medium returns the refractive index of the medium.
func (c *Config) Medium() float64 {
	if c.MediumIndex > 0 {
		return c.MediumIndex
	}
	return AirIndex(c.WavelengthUM)
}

// AirIndex returns the refractive index of standard air at the vacuum
// wavelength lambda, in µm.
func AirIndex(lambda float64) float64 {
	const (
		a = 8060.51
		b = 2480990.
		c = 132.274
		d = 17455.7
		e = 39.32957
	)
	s := 1 / (lambda * lambda)
	return (a+b/(c-s)+d/(e-s))*1e-8 + 1
}
