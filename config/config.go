// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config parses the itsinspect CLI surface and the
// checks TOML file.
package config // import "github.com/go-lpc/itsinspect/config"

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/go-lpc/itsinspect/cdp"
)

// Mode names the top-level command.
type Mode int

const (
	ModeCheck Mode = iota
	ModeView
)

// CheckTarget names the `check` subcommand's target argument.
type CheckTarget int

const (
	TargetSanity CheckTarget = iota
	TargetAll
)

// Routing names the `check` subcommand's optional routing-key target: it
// selects which field of a CDP groups records for the per-key validator
// pipeline.
type Routing int

const (
	RoutingLink     Routing = iota // default: one Validator per GBT link
	RoutingFee                     // "its": one Validator per FEE id
	RoutingITSStave                // "its-stave": one Validator per (layer, stave)
)

// ViewTarget names the `view` subcommand's target argument.
type ViewTarget int

const (
	ViewRDH ViewTarget = iota
	ViewITSReadoutFrames
	ViewITSReadoutFramesData
)

// Verbosity is captured once at startup and passed by reference to every
// pipeline stage ("global mutable state" is otherwise
// disallowed; this is the one configuration value every stage reads).
type Verbosity int

const (
	VerbositySilent Verbosity = iota
	VerbosityErrors
	VerbosityWarnings
	VerbosityInfo
	VerbosityTrace
)

// Filter selects which CDPs reach the validators, by routing key.
type Filter struct {
	Mode  cdp.KeyMode
	Key   cdp.Key
	Set   bool
}

// Config is the fully parsed, immutable CLI configuration for one run.
type Config struct {
	Mode Mode

	CheckTarget CheckTarget
	Routing     Routing
	ViewTarget  ViewTarget
	InputFile   string

	Filter Filter

	ChecksTOMLPath     string
	GenerateChecksTOML bool

	OutputStats    string
	StatsFormat    string
	InputStatsFile string
	RunNumber      uint64

	MuteErrors        bool
	TolerateMaxErrors uint32
	Verbosity         Verbosity
	AnyErrorsExitCode uint8

	GenerateCompletions string

	Output string // --output PATH for the pass-through writer
	PMon   bool
}

// Parse parses args (typically os.Args[1:]) into a Config.
func Parse(args []string) (*Config, error) {
	fset := flag.NewFlagSet("itsinspect", flag.ContinueOnError)
	fset.Usage = func() { fmt.Print(usage) }

	var (
		filterLink  = fset.Int("filter-link", -1, "keep only this GBT link id")
		filterFee   = fset.Int("filter-fee", -1, "keep only this FEE id")
		filterStave = fset.String("filter-its-stave", "", "keep only this ITS stave, e.g. L4_12")

		checksTOML  = fset.String("checks-toml", "", "path to a checks TOML file")
		genChecks   = fset.Bool("generate-checks-toml", false, "print a template checks TOML file and exit")

		outStats    = fset.String("output-stats", "stdout", "where to write run statistics (path, \"stdout\", or a mysql:// DSN)")
		statsFormat = fset.String("stats-format", "json", "statistics format: json or toml")
		inStats     = fset.String("input-stats-file", "", "reference statistics file (or mysql:// DSN) to compare against")
		runNumber   = fset.Uint64("run-number", 0, "run number to key the mysql:// reference lookup by")

		mute    = fset.Bool("mute-errors", false, "suppress per-error output, keep counters only")
		maxErrs = fset.Uint("tolerate-max-errors", 0, "abort once more than this many errors accumulate (0 = unlimited)")
		verb    = fset.Int("verbosity", int(VerbosityErrors), "verbosity level 0..4")
		exit    = fset.Uint("any-errors-exit-code", 0, "process exit code when validation errors were found")

		completions = fset.String("generate-completions", "", "print a shell completion script for {bash,zsh,fish} and exit")
		output      = fset.String("output", "", "re-emit accepted CDPs, byte for byte, to this path")
		pmon        = fset.Bool("pmon", false, "enable pmon process monitoring")
	)

	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	rest := fset.Args()
	if len(rest) == 0 {
		fset.Usage()
		return nil, xerrors.Errorf("config: missing command (check|view)")
	}

	cfg := &Config{
		ChecksTOMLPath:      *checksTOML,
		GenerateChecksTOML:  *genChecks,
		OutputStats:         *outStats,
		StatsFormat:         strings.ToLower(*statsFormat),
		InputStatsFile:      *inStats,
		RunNumber:           *runNumber,
		MuteErrors:          *mute,
		TolerateMaxErrors:   uint32(*maxErrs),
		Verbosity:           Verbosity(*verb),
		AnyErrorsExitCode:   uint8(*exit),
		GenerateCompletions: *completions,
		Output:              *output,
		PMon:                *pmon,
	}

	if err := cfg.parseFilters(*filterLink, *filterFee, *filterStave); err != nil {
		return nil, err
	}

	switch strings.ToLower(rest[0]) {
	case "check":
		cfg.Mode = ModeCheck
		rest = rest[1:]
		if len(rest) == 0 {
			return nil, xerrors.Errorf("config: check requires a target (sanity|all)")
		}
		switch strings.ToLower(rest[0]) {
		case "sanity":
			cfg.CheckTarget = TargetSanity
		case "all":
			cfg.CheckTarget = TargetAll
		default:
			return nil, xerrors.Errorf("config: unknown check target %q", rest[0])
		}
		rest = rest[1:]

		if len(rest) > 0 {
			switch strings.ToLower(rest[0]) {
			case "its":
				cfg.Routing = RoutingFee
				rest = rest[1:]
			case "its-stave":
				cfg.Routing = RoutingITSStave
				rest = rest[1:]
			}
		}

	case "view":
		cfg.Mode = ModeView
		rest = rest[1:]
		if len(rest) == 0 {
			return nil, xerrors.Errorf("config: view requires a target (rdh|its-readout-frames|its-readout-frames-data)")
		}
		switch strings.ToLower(rest[0]) {
		case "rdh":
			cfg.ViewTarget = ViewRDH
		case "its-readout-frames":
			cfg.ViewTarget = ViewITSReadoutFrames
		case "its-readout-frames-data":
			cfg.ViewTarget = ViewITSReadoutFramesData
		default:
			return nil, xerrors.Errorf("config: unknown view target %q", rest[0])
		}
		rest = rest[1:]

	default:
		return nil, xerrors.Errorf("config: unknown command %q", rest[0])
	}

	if len(rest) > 0 {
		cfg.InputFile = rest[0]
	}

	return cfg, nil
}

func (c *Config) parseFilters(link, fee int, stave string) error {
	switch {
	case link >= 0:
		if link > 0xff {
			return xerrors.Errorf("config: --filter-link out of range (got=%d)", link)
		}
		c.Filter = Filter{Mode: cdp.KeyByLink, Key: cdp.Key{Link: uint8(link)}, Set: true}
	case fee >= 0:
		if fee > 0xffff {
			return xerrors.Errorf("config: --filter-fee out of range (got=%d)", fee)
		}
		c.Filter = Filter{Mode: cdp.KeyByFee, Key: cdp.Key{Fee: uint16(fee)}, Set: true}
	case stave != "":
		layer, st, err := parseStave(stave)
		if err != nil {
			return err
		}
		c.Filter = Filter{Mode: cdp.KeyByLayerStave, Key: cdp.Key{LayerStave: [2]uint8{layer, st}}, Set: true}
	}
	return nil
}

// parseStave parses a stave name of the form "L<layer>_<stave>", e.g.
// "L4_12", case-insensitively.
func parseStave(s string) (layer, stave uint8, err error) {
	s = strings.ToUpper(s)
	if len(s) < 2 || s[0] != 'L' {
		return 0, 0, xerrors.Errorf("config: invalid stave name %q, want L<layer>_<stave>", s)
	}
	parts := strings.SplitN(s[1:], "_", 2)
	if len(parts) != 2 {
		return 0, 0, xerrors.Errorf("config: invalid stave name %q, want L<layer>_<stave>", s)
	}
	l, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, xerrors.Errorf("config: invalid layer in stave name %q: %w", s, err)
	}
	st, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, xerrors.Errorf("config: invalid stave number in stave name %q: %w", s, err)
	}
	return uint8(l), uint8(st), nil
}

const usage = `Usage: itsinspect [OPTIONS] check {sanity|all} [its|its-stave] [<file>]
       itsinspect [OPTIONS] view {rdh|its-readout-frames|its-readout-frames-data} [<file>]

options:
  -filter-link int            keep only this GBT link id
  -filter-fee int              keep only this FEE id
  -filter-its-stave string     keep only this ITS stave, e.g. L4_12
  -checks-toml path             path to a checks TOML file
  -generate-checks-toml         print a template checks TOML file and exit
  -output-stats path|stdout|dsn where to write run statistics (path, "stdout", or a mysql:// DSN)
  -stats-format json|toml       statistics format
  -input-stats-file path|dsn    reference statistics file or mysql:// DSN
  -run-number uint              run number to key a mysql:// reference lookup by
  -mute-errors                  suppress per-error output
  -tolerate-max-errors uint     abort once more than this many errors accumulate (0 = unlimited)
  -verbosity 0..4               verbosity level
  -any-errors-exit-code uint    exit code on validation errors
  -generate-completions shell   print a shell completion script
  -output path                  re-emit accepted CDPs to this path
  -pmon                         enable pmon process monitoring
`
