// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// holocam runs the acquisition station of a holographic microscope.
//
// It records a batch of background frames, waits for the operator, then
// captures frames continuously and keeps the ones that differ enough from the
// background. Sessions are driven either from the terminal or from the panel
// switches wired to the GPIO header.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"runtime/pprof"

	"github.com/maruel/interrupt"
	"periph.io/x/periph/host"

	"github.com/holoscope/go-holocam/acquire"
	"github.com/holoscope/go-holocam/config"
	"github.com/holoscope/go-holocam/control"
)

const version = "1.0.0"

const usage = `usage: holocam [flags] [command]

Commands:
  run      run acquisition sessions (default)
  mkconf   write the default configuration file
  conf     print the effective configuration
  version  print the version
  help     print this help

Flags:
`

func mainImpl() error {
	configPath := flag.String("config", config.FileName, "configuration file")
	surfaceName := flag.String("surface", "prompt", "control surface: prompt or gpio")
	cameraName := flag.String("camera", "fake", "camera: fake or replay:<dir>")
	root := flag.String("root", "", "output folder, overrides the configuration")
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	cmd := "run"
	switch flag.NArg() {
	case 0:
	case 1:
		cmd = flag.Arg(0)
	default:
		return fmt.Errorf("unexpected argument: %s", flag.Args()[1:])
	}

	switch cmd {
	case "help":
		flag.Usage()
		return nil
	case "version":
		fmt.Println(version)
		return nil
	case "mkconf":
		if _, err := os.Stat(*configPath); err == nil {
			return fmt.Errorf("%s already exists", *configPath)
		}
		return config.WriteFile(*configPath, config.Default())
	case "conf":
		c, err := loadConfig(*configPath, *root)
		if err != nil {
			return err
		}
		return config.Write(os.Stdout, c)
	case "run":
	default:
		return fmt.Errorf("unknown command %q; try \"holocam help\"", cmd)
	}

	cfg, err := loadConfig(*configPath, *root)
	if err != nil {
		return err
	}
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
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

	if _, err := host.Init(); err != nil {
		return err
	}
	cam, err := openCamera(*cameraName)
	if err != nil {
		return err
	}
	surface, err := openSurface(*surfaceName, &cfg)
	if err != nil {
		return err
	}

	l := &acquire.Loop{
		Config:      cfg,
		Camera:      cam,
		Surface:     surface,
		Console:     os.Stdout,
		Thermometer: newThermometer(),
		OnSession: func(res acquire.Result, err error) {
			log.Printf("session %s: %d grabbed, %d kept, %d discarded: %v", res.ID, res.Grabbed, res.Admitted, res.Rejected, err)
		},
	}
	if p, err := newProgress(os.Stdout); err != nil {
		log.Printf("no progress spinner: %v", err)
	} else {
		defer p.stop()
		l.Progress = p.update
	}
	if w, err := config.Watch(*configPath); err != nil {
		log.Printf("not watching %s: %v", *configPath, err)
	} else {
		defer w.Close()
		l.Watcher = w
		l.Override = func(c *config.Config) { override(c, *root) }
	}
	return l.Run(ctx)
}

func loadConfig(path, root string) (config.Config, error) {
	c, err := config.Load(path)
	if err != nil {
		return c, err
	}
	override(&c, root)
	return c, c.Validate()
}

// override applies the command line flags overriding the file.
func override(c *config.Config, root string) {
	if root != "" {
		c.Root = root
	}
}

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, control.ErrExit) {
		fmt.Fprintf(os.Stderr, "\nholocam: %s.\n", err)
		os.Exit(1)
	}
}
