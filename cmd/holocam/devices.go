// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/maruel/interrupt"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host/sysfs"

	"github.com/holoscope/go-holocam/camera"
	"github.com/holoscope/go-holocam/cameratest"
	"github.com/holoscope/go-holocam/config"
	"github.com/holoscope/go-holocam/control"
)

// openCamera returns the camera named by the -camera flag.
func openCamera(name string) (camera.Camera, error) {
	switch {
	case name == "fake":
		return cameratest.New(1280, 1024), nil
	case strings.HasPrefix(name, "replay:"):
		dir := strings.TrimPrefix(name, "replay:")
		if dir == "" {
			return nil, errors.New("-camera replay: requires a folder")
		}
		return camera.NewReplay(dir), nil
	}
	return nil, fmt.Errorf("unknown camera %q", name)
}

// openSurface returns the control surface named by the -surface flag.
func openSurface(name string, cfg *config.Config) (control.Surface, error) {
	switch name {
	case "prompt":
		p := control.NewPrompt(os.Stdin, os.Stdout)
		p.Interrupted = interrupt.IsSet
		return p, nil
	case "gpio":
		var lines [4]control.Line
		for i, c := range []config.Line{cfg.Lines.Run, cfg.Lines.Acquire, cfg.Lines.Stop, cfg.Lines.Exit} {
			l, err := openLine(c)
			if err != nil {
				return nil, err
			}
			lines[i] = l
		}
		return control.NewLines(lines[0], lines[1], lines[2], lines[3], cfg.Poll())
	}
	return nil, fmt.Errorf("unknown surface %q", name)
}

func openLine(c config.Line) (control.Line, error) {
	p := gpioreg.ByName(c.Name)
	if p == nil {
		return control.Line{}, fmt.Errorf("line %q not found", c.Name)
	}
	pull, err := control.ParsePull(c.Pull)
	if err != nil {
		return control.Line{}, err
	}
	return control.Line{Pin: p, Pull: pull}, nil
}

// thermometer reads the SoC temperature.
type thermometer struct {
	s *sysfs.ThermalSensor
}

// newThermometer returns nil when the host exposes no thermal sensor.
func newThermometer() *thermometer {
	if len(sysfs.ThermalSensors) == 0 {
		return nil
	}
	return &thermometer{s: sysfs.ThermalSensors[0]}
}

func (t *thermometer) Temperature() (float64, error) {
	var e physic.Env
	if err := t.s.Sense(&e); err != nil {
		return 0, err
	}
	return celsius(e.Temperature), nil
}

func celsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Celsius)
}
