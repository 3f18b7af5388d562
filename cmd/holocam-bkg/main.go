// Copyright 2022 The go-holocam Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// holocam-bkg estimates the background reference of a recorded calibration
// folder and optionally replays the variance filter over a data folder.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/holoscope/go-holocam/background"
	"github.com/holoscope/go-holocam/gate"
	"github.com/holoscope/go-holocam/store"
)

func mainImpl() error {
	ext := flag.String("ext", "tif", "image extension of the background frames")
	threshold := flag.Float64("threshold", 5, "variance threshold in percent")
	data := flag.String("data", "", "data folder to filter against the background")
	out := flag.String("out", "", "folder receiving the kept frames; none are copied if empty")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if flag.NArg() != 1 {
		return errors.New("supply the background folder")
	}
	ref, err := background.EstimateDir(flag.Args()[0], *ext)
	if err != nil {
		return err
	}
	fmt.Printf("Variance:      %.3f\n", ref.Variance)
	fmt.Printf("StdDev:        %.3f\n", ref.StdDev)
	fmt.Printf("Images used:   %d\n", ref.SampleCount)
	if ref.Degenerate() {
		return errors.New("null background variance")
	}
	if *data == "" {
		return nil
	}

	g := &gate.Gate{ThresholdPercent: *threshold}
	if *out != "" {
		if err := os.MkdirAll(*out, 0777); err != nil {
			return err
		}
		g.Saver = &store.Files{}
	}
	names, err := frames(*data)
	if err != nil {
		return err
	}
	kept := 0
	for _, name := range names {
		f, err := store.Load(filepath.Join(*data, name))
		if err != nil {
			log.Printf("%s: %v", name, err)
			continue
		}
		d, err := g.Process(ref, f, filepath.Join(*out, name))
		if err != nil {
			return err
		}
		mark := "discard"
		if d.Admitted {
			mark = "keep"
			kept++
		}
		fmt.Printf("%-24s %10.3f %8.2f%%  %s\n", name, d.Variance, d.Deviation, mark)
	}
	fmt.Printf("Kept %d of %d images\n", kept, len(names))
	return nil
}

// frames returns the frame file names of dir in sequence order.
func frames(dir string) ([]string, error) {
	all, err := store.ListFrames(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, ff := range all {
		if store.Supported(ff.Ext) {
			names = append(names, ff.Name)
		}
	}
	return names, nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nholocam-bkg: %s.\n", err)
		os.Exit(1)
	}
}
