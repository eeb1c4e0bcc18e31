// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command itsinspect checks and displays ALICE ITS readout streams.
package main // import "github.com/go-lpc/itsinspect/cmd/itsinspect"

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sbinet/pmon"
	"golang.org/x/xerrors"

	"github.com/go-lpc/itsinspect/cdp"
	"github.com/go-lpc/itsinspect/config"
	"github.com/go-lpc/itsinspect/gbt"
	"github.com/go-lpc/itsinspect/pipeline"
	"github.com/go-lpc/itsinspect/rdh"
	"github.com/go-lpc/itsinspect/stats"
	"github.com/go-lpc/itsinspect/validator"
	"github.com/go-lpc/itsinspect/view"
	"github.com/go-lpc/itsinspect/writer"
)

var msg = log.New(os.Stderr, "itsinspect: ", 0)

func main() {
	os.Exit(xmain(os.Args[1:]))
}

func xmain(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		msg.Printf("%+v", err)
		return 1
	}

	if cfg.GenerateChecksTOML {
		if err := config.GenerateTemplate(os.Stdout); err != nil {
			msg.Printf("%+v", err)
			return 1
		}
		return 0
	}
	if cfg.GenerateCompletions != "" {
		if err := config.GenerateCompletions(os.Stdout, cfg.GenerateCompletions); err != nil {
			msg.Printf("%+v", err)
			return 1
		}
		return 0
	}

	if cfg.PMon {
		p, err := pmon.Monitor(os.Getpid())
		if err != nil {
			msg.Printf("could not start pmon: %+v", err)
		} else {
			p.W = os.Stderr
			p.Freq = time.Second
			go func() {
				if err := p.Run(); err != nil {
					msg.Printf("pmon stopped: %+v", err)
				}
			}()
			defer p.Kill()
		}
	}

	switch cfg.Mode {
	case config.ModeCheck:
		return runCheck(cfg)
	case config.ModeView:
		return runView(cfg)
	default:
		msg.Printf("unknown mode")
		return 1
	}
}

func runCheck(cfg *config.Config) int {
	f, closeFn, err := openInput(cfg.InputFile)
	if err != nil {
		msg.Printf("%+v", err)
		return 1
	}
	defer closeFn()

	vcfg := validator.Config{
		Custom:     loadChecksConfig(cfg),
		SanityOnly: cfg.CheckTarget == config.TargetSanity,
	}

	p := pipeline.New(routingKeyMode(cfg.Routing), vcfg, msg)
	p.Filter = pipeline.Filter{Mode: cfg.Filter.Mode, Key: cfg.Filter.Key, Set: cfg.Filter.Set}
	p.Verbosity = pipeline.Verbosity(cfg.Verbosity)
	p.MaxErrors = cfg.TolerateMaxErrors

	if cfg.Output != "" {
		out, err := os.Create(cfg.Output)
		if err != nil {
			msg.Printf("could not create --output file: %+v", err)
			return 1
		}
		defer out.Close()
		p.PassThrough = writer.NewPassThrough(out)
	}

	if err := p.Run(f); err != nil {
		msg.Printf("%+v", err)
		return 1
	}

	return report(cfg, p.Stats)
}

func runView(cfg *config.Config) int {
	f, closeFn, err := openInput(cfg.InputFile)
	if err != nil {
		msg.Printf("%+v", err)
		return 1
	}
	defer closeFn()

	if cfg.ViewTarget == config.ViewITSReadoutFramesData {
		frames, err := decodeForViewData(f)
		if err != nil {
			msg.Printf("%+v", err)
			return 1
		}
		for i, frame := range frames {
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}
			if err := view.ReadoutFrameData(os.Stdout, frame); err != nil {
				msg.Printf("%+v", err)
				return 1
			}
		}
		return 0
	}

	rdhs, frames, err := decodeForView(f)
	if err != nil {
		msg.Printf("%+v", err)
		return 1
	}

	switch cfg.ViewTarget {
	case config.ViewRDH:
		err = view.RDHTable(os.Stdout, rdhs)
	case config.ViewITSReadoutFrames:
		err = view.ReadoutFrames(os.Stdout, frames)
	}
	if err != nil {
		msg.Printf("%+v", err)
		return 1
	}
	return 0
}

// openInput opens cfg's input file, or reads from standard input when no
// path was given (pipes are expected: upstream may decompress before
// itsinspect sees the stream). The returned close func is always safe to
// call, even for stdin.
func openInput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, xerrors.Errorf("could not open input file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// routingKeyMode maps the `check` subcommand's parsed target token to the
// routing key the pipeline dispatches CDPs by.
func routingKeyMode(r config.Routing) cdp.KeyMode {
	switch r {
	case config.RoutingFee:
		return cdp.KeyByFee
	case config.RoutingITSStave:
		return cdp.KeyByLayerStave
	default:
		return cdp.KeyByLink
	}
}

// decodeForView walks f once, collecting every RDH and a coarse summary of
// each TDH..TDT span, for the view subcommands (which never run the full
// validator stack).
func decodeForView(f *os.File) ([]rdh.RDH, []view.ReadoutFrame, error) {
	var (
		rdhs   []rdh.RDH
		frames []view.ReadoutFrame
		dec    = rdh.NewReader(f)
	)

	for {
		head, payload, err := dec.NextCDP()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, xerrors.Errorf("could not decode CDP: %w", err)
		}
		rdhs = append(rdhs, head)
		frames = append(frames, readoutFramesIn(head, payload)...)
	}
	return rdhs, frames, nil
}

// readoutFramesIn extracts a coarse ReadoutFrame summary for every TDH
// found in payload, without running the full payload grammar.
func readoutFramesIn(head rdh.RDH, payload []byte) []view.ReadoutFrame {
	var (
		out  []view.ReadoutFrame
		cur  *view.ReadoutFrame
		seen map[uint8]bool
	)

	for off := 0; off+gbt.Size <= len(payload); off += gbt.Size {
		var w gbt.Word
		copy(w[:], payload[off:off+gbt.Size])

		switch w.ID() {
		case gbt.IDTdh:
			tdh := gbt.DecodeTDH(w)
			out = append(out, view.ReadoutFrame{
				Offset:    head.Offset + rdh.Size + int64(off),
				Orbit:     head.Orbit,
				TriggerBC: tdh.TriggerBC(),
			})
			cur = &out[len(out)-1]
			seen = make(map[uint8]bool)
		case gbt.IDTdt:
			if cur != nil {
				tdt := gbt.DecodeTDT(w)
				cur.PacketDone = tdt.PacketDone()
			}
		default:
			if cur != nil && gbt.DataWordClass(w.ID()) != gbt.ClassNone && !seen[w.ID()] {
				seen[w.ID()] = true
				cur.LaneCount++
			}
		}
	}
	return out
}

// decodeForViewData walks f once, grouping the raw bytes of every data
// word by lane within each TDH..TDT span, for the its-readout-frames-data
// view.
func decodeForViewData(f *os.File) ([][]view.LaneData, error) {
	var (
		frames [][]view.LaneData
		dec    = rdh.NewReader(f)
	)

	for {
		_, payload, err := dec.NextCDP()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("could not decode CDP: %w", err)
		}
		frames = append(frames, laneDataFramesIn(payload)...)
	}
	return frames, nil
}

// laneDataFramesIn splits payload into its TDH..TDT spans and groups each
// span's data words by lane, concatenating every data word's 9 payload
// bytes in arrival order.
func laneDataFramesIn(payload []byte) [][]view.LaneData {
	var (
		out   [][]view.LaneData
		lanes map[uint8]*view.LaneData
		order []uint8
	)

	flush := func() {
		if lanes == nil {
			return
		}
		frame := make([]view.LaneData, 0, len(order))
		for _, id := range order {
			frame = append(frame, *lanes[id])
		}
		out = append(out, frame)
		lanes, order = nil, nil
	}

	for off := 0; off+gbt.Size <= len(payload); off += gbt.Size {
		var w gbt.Word
		copy(w[:], payload[off:off+gbt.Size])
		id := w.ID()

		switch {
		case id == gbt.IDTdh:
			flush()
			lanes = make(map[uint8]*view.LaneData)
		case gbt.DataWordClass(id) != gbt.ClassNone:
			if lanes == nil {
				lanes = make(map[uint8]*view.LaneData)
			}
			lane, _ := validator.LaneIndex(id)
			lf, ok := lanes[lane]
			if !ok {
				lf = &view.LaneData{LaneID: lane}
				lanes[lane] = lf
				order = append(order, lane)
			}
			lf.Data = append(lf.Data, w[:9]...)
		}
	}
	flush()
	return out
}

func loadChecksConfig(cfg *config.Config) validator.CustomChecksConfig {
	if cfg.ChecksTOMLPath == "" {
		var empty config.Checks
		return empty.ToValidatorConfig()
	}
	checks, err := config.LoadChecks(cfg.ChecksTOMLPath)
	if err != nil {
		msg.Printf("could not load checks file, using defaults: %+v", err)
		var empty config.Checks
		return empty.ToValidatorConfig()
	}
	return checks.ToValidatorConfig()
}

func report(cfg *config.Config, s *stats.Set) int {
	counters := s.Snapshot()

	if !cfg.MuteErrors && cfg.Verbosity >= config.VerbosityErrors {
		for _, e := range s.Errors() {
			fmt.Fprintln(os.Stderr, e.Error())
		}
	}

	fmt.Printf("Total RDHs: %d\n", counters.RDHsSeen)
	fmt.Printf("Total CDPs: %d\n", counters.CDPsSeen)
	fmt.Printf("Total HBFs: %d\n", counters.HBFsSeen)
	fmt.Printf("Links: %d, FEEs: %d, trigger types: %d, system_id: 0x%x\n",
		counters.LinksSeen, counters.FeesSeen, counters.TriggerTypesSeen, counters.SystemID)
	fmt.Printf("error - %d\n", s.ErrorCount())

	if stats.IsMySQLDSN(cfg.OutputStats) {
		if err := stats.StoreMySQL(context.Background(), cfg.OutputStats, cfg.RunNumber, counters); err != nil {
			msg.Printf("%+v", err)
			return 1
		}
	} else {
		var out *os.File
		switch cfg.OutputStats {
		case "", "stdout":
			out = os.Stdout
		default:
			f, err := os.Create(cfg.OutputStats)
			if err != nil {
				msg.Printf("could not create stats output file: %+v", err)
				return 1
			}
			defer f.Close()
			out = f
		}

		var dumpErr error
		if cfg.StatsFormat == "toml" {
			dumpErr = stats.DumpTOML(out, counters)
		} else {
			dumpErr = stats.DumpJSON(out, counters)
		}
		if dumpErr != nil {
			msg.Printf("%+v", dumpErr)
			return 1
		}
	}

	mismatches := 0
	if cfg.InputStatsFile != "" {
		var (
			ref stats.Counters
			err error
		)
		if stats.IsMySQLDSN(cfg.InputStatsFile) {
			ref, err = stats.LoadReferenceMySQL(context.Background(), cfg.InputStatsFile, cfg.RunNumber)
		} else {
			ref, err = stats.LoadReference(cfg.InputStatsFile)
		}
		if err != nil {
			msg.Printf("%+v", err)
			return 1
		}
		for _, m := range stats.Compare(counters, ref) {
			fmt.Printf("mismatch: %s got=%d want=%d\n", m.Field, m.Got, m.Want)
			mismatches++
		}
	}

	if (s.ErrorCount() > 0 || mismatches > 0) && cfg.AnyErrorsExitCode != 0 {
		return int(cfg.AnyErrorsExitCode)
	}
	return 0
}
