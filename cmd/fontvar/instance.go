package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/tdewolff/varfont"
)

type Instance struct {
	Quiet       bool     `short:"q" desc:"Suppress output except for errors."`
	Force       bool     `short:"f" desc:"Force overwriting existing files."`
	Verbose     bool     `short:"v" desc:"Trace instancing, including skipped glyphs."`
	Debug       bool     `desc:"Trace instancing in detail."`
	Index       int      `short:"i" desc:"Index into font collection (used with TTC or OTC)."`
	Strategy    string   `short:"s" desc:"Resolution strategy: preserve, instance, or named. Defaults to named when -n is given, otherwise instance."`
	Coordinates []string `short:"c" name:"coord" desc:"User coordinate of an axis, eg. wght=700. Axes not given stay at their default."`
	Named       string   `short:"n" name:"named" desc:"Named instance by index or subfamily name, eg. 0 or Bold."`
	Avar        bool     `desc:"Map normalized coordinates through the avar table."`
	UpdateOS2   bool     `name:"os2" desc:"Set usWeightClass and usWidthClass from the wght and wdth coordinates."`
	Workers     int      `short:"w" desc:"Number of glyphs instanced concurrently."`
	Type        string   `short:"t" desc:"Explicitly set output mimetype, eg. font/woff2."`
	Encoding    string   `short:"e" desc:"Output encoding, either empty or base64."`
	Output      string   `short:"o" desc:"Output font file (only TTF/OTF/WOFF2 are supported)."`
	Input       string   `index:"0" desc:"Input font file."`
}

func (cmd *Instance) Run() error {
	if cmd.Quiet {
		Warning = log.New(io.Discard, "", 0)
	}
	if cmd.Verbose || cmd.Debug {
		tracer := gologadapter.New()
		tracer.SetTraceLevel(tracing.LevelInfo)
		if cmd.Debug {
			tracer.SetTraceLevel(tracing.LevelDebug)
		}
		tracing.SetTraceSelector(tracing.SelectorForAdapter(func() tracing.Trace { return tracer }))
	}

	if cmd.Output == "" {
		return fmt.Errorf("output file not set")
	} else if cmd.Encoding != "" && cmd.Encoding != "base64" {
		return fmt.Errorf("unsupported encoding: %v", cmd.Encoding)
	}

	coords, err := parseCoordinates(cmd.Coordinates)
	if err != nil {
		return err
	}

	// read from file and parse font
	sfnt, rMimetype, rLen, err := readFont(cmd.Input, cmd.Index)
	if err != nil {
		if cmd.Input == "-" {
			return err
		}
		return fmt.Errorf("%v: %v", cmd.Input, err)
	}

	opts := varfont.ResolveOptions{
		Strategy:    varfont.Instance,
		Coordinates: coords,
		Instance: varfont.InstanceOptions{
			ApplyAvar: cmd.Avar,
			UpdateOS2: cmd.UpdateOS2,
			Workers:   cmd.Workers,
		},
	}
	if cmd.Named != "" {
		opts.Strategy = varfont.Named
		index, err := strconv.Atoi(cmd.Named)
		if err != nil {
			if index, err = varfont.FindNamedInstance(sfnt, cmd.Named); err != nil {
				return err
			}
		}
		opts.InstanceIndex = &index
	}
	if cmd.Strategy != "" {
		if opts.Strategy, err = varfont.ParseStrategy(cmd.Strategy); err != nil {
			return err
		}
	}

	skipped := 0
	opts.Instance.Skipped = func(glyphID uint16, reason error) {
		Warning.Printf("glyph %d keeps its default outline: %v\n", glyphID, reason)
		skipped++
	}

	tables, err := varfont.Resolve(sfnt, opts)
	if err != nil {
		return err
	}

	mimetype := extMimetype[filepath.Ext(cmd.Output)]
	if cmd.Type != "" {
		mimetype = cmd.Type
	} else if mimetype == "" {
		mimetype = rMimetype
	}
	wLen, err := writeFont(cmd.Output, mimetype, cmd.Encoding, cmd.Force, sfnt.IsCFF, tables)
	if err != nil {
		return err
	}

	if !cmd.Quiet && cmd.Output != "-" {
		ratio := 1.0
		if 0 < rLen {
			ratio = float64(wLen) / float64(rLen)
		}
		fmt.Printf("%v:  %v,  %d glyphs skipped,  %v => %v (%.1f%%)\n", filepath.Base(cmd.Output), describe(opts), skipped, formatBytes(uint64(rLen)), formatBytes(uint64(wLen)), ratio*100.0)
	}
	return nil
}

func describe(opts varfont.ResolveOptions) string {
	switch opts.Strategy {
	case varfont.Named:
		if opts.InstanceIndex != nil {
			return fmt.Sprintf("named instance %d", *opts.InstanceIndex)
		}
	case varfont.Instance:
		return fmt.Sprintf("instance %v", formatCoordinates(opts.Coordinates))
	}
	return opts.Strategy.String()
}
