// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// holocam-grab captures a single frame, prints its metrics and saves it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"
	"time"

	"github.com/maruel/interrupt"

	"github.com/holoscope/go-holocam/camera"
	"github.com/holoscope/go-holocam/cameratest"
	"github.com/holoscope/go-holocam/config"
	"github.com/holoscope/go-holocam/frame"
	"github.com/holoscope/go-holocam/store"
)

func mainImpl() error {
	configPath := flag.String("config", config.FileName, "configuration file")
	cameraName := flag.String("camera", "fake", "camera: fake or replay:<dir>")
	meta := flag.Bool("meta", false, "print metadata")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if flag.NArg() != 1 {
		return errors.New("supply path to the image to save (.tif, .png or .fits)")
	}
	out := flag.Args()[0]
	if !store.Supported(store.Ext(out)) {
		return fmt.Errorf("%s: %w", out, store.ErrUnsupported)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	var cam camera.Camera
	switch {
	case *cameraName == "fake":
		cam = cameratest.New(1280, 1024)
	case strings.HasPrefix(*cameraName, "replay:"):
		cam = camera.NewReplay(strings.TrimPrefix(*cameraName, "replay:"))
	default:
		return fmt.Errorf("unknown camera %q", *cameraName)
	}

	interrupt.HandleCtrlC()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-interrupt.Channel:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := camera.Connect(ctx, cam, cfg.Policy(), func(err error, next time.Duration) {
		log.Printf("connect: %v, retrying in %s", err, next)
	}); err != nil {
		return fmt.Errorf("%s\nIf testing without hardware, use -camera=fake to simulate a camera", err)
	}
	defer cam.Disconnect()
	if err := cam.SetExposure(cfg.Exposure()); err != nil {
		return err
	}
	if err := cam.SetBlackLevel(cfg.BlackLevel); err != nil {
		return err
	}
	f, err := cam.Grab()
	if err != nil {
		return err
	}
	if *meta {
		fmt.Printf("Captured:   %s\n", f.Metadata.Captured.Format(time.RFC3339Nano))
		fmt.Printf("Sequence:   %d\n", f.Metadata.Sequence)
		fmt.Printf("Size:       %dx%dx%d\n", f.Width, f.Height, f.Channels)
		fmt.Printf("Bit depth:  %d\n", f.BitDepth)
	}
	window := frame.FitWindow(cfg.Window.Rect(), f.Bounds())
	m, err := frame.ComputeMetrics(f, window)
	if err != nil {
		return err
	}
	fmt.Printf("Window:     %s\n", window)
	fmt.Printf("Min:        %d\n", m.Min)
	fmt.Printf("Max:        %d\n", m.Max)
	fmt.Printf("Mean:       %.3f\n", m.Mean)
	fmt.Printf("StdDev:     %.3f\n", m.StdDev)
	fmt.Printf("Null:       %d\n", m.NullCount)
	fmt.Printf("Saturated:  %d\n", m.SaturatedCount)
	fmt.Printf("Variance:   %.3f\n", frame.Variance(f))
	return (&store.Files{}).Save(out, f)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nholocam-grab: %s.\n", err)
		os.Exit(1)
	}
}
