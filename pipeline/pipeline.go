// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline wires the Reader, Dispatcher, per-key Validators, and
// Stats aggregator stages together with bounded channels,
// coordinated by golang.org/x/sync/errgroup and cancellable on SIGINT the
// way cmd/daq-boot.run wires its process supervision.
package pipeline // import "github.com/go-lpc/itsinspect/pipeline"

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/go-lpc/itsinspect/cdp"
	"github.com/go-lpc/itsinspect/rdh"
	"github.com/go-lpc/itsinspect/stats"
	"github.com/go-lpc/itsinspect/validator"
	"github.com/go-lpc/itsinspect/writer"
)

// cdpChanSize bounds the Reader->Dispatcher and per-key Dispatcher->
// Validator channels (the pipeline's bounded-channel resource policy).
const cdpChanSize = 64

// Filter narrows the CDP stream to a single routing key, mirroring
// config.Filter without importing package config (which itself depends on
// package cdp, not pipeline).
type Filter struct {
	Mode cdp.KeyMode
	Key  cdp.Key
	Set  bool
}

// Verbosity mirrors config.Verbosity's ordinals without importing package
// config, the way Filter already mirrors config.Filter: level 0 is silent,
// 1 logs errors (the default), and levels 2 (warnings), 3 (info) and 4
// (trace) each enable further diagnostic lines from the Reader and
// Dispatcher stages.
type Verbosity int

const (
	VerbositySilent Verbosity = iota
	VerbosityErrors
	VerbosityWarnings
	VerbosityInfo
	VerbosityTrace
)

// Pipeline owns everything needed to run one check pass over a CDP
// stream: the routing mode, the per-key validator configuration, the
// shared stats aggregator, and an optional pass-through writer.
type Pipeline struct {
	Log *log.Logger

	KeyMode      cdp.KeyMode
	ValidatorCfg validator.Config
	Filter       Filter
	PassThrough  *writer.PassThrough

	// Verbosity gates the diagnostic (non-error) log lines every stage
	// emits through Log.
	Verbosity Verbosity

	// MaxErrors, once exceeded, signals shutdown to the Reader and
	// Dispatcher the same way SIGINT does. 0 disables the limit.
	MaxErrors uint32

	Stats *stats.Set

	kill     chan struct{}
	killOnce sync.Once
}

// New returns a Pipeline logging through log (or a default "itsinspect: "
// logger if nil) and aggregating into a fresh stats.Set.
func New(keyMode cdp.KeyMode, vcfg validator.Config, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(os.Stderr, "itsinspect: ", 0)
	}
	return &Pipeline{
		Log:          logger,
		KeyMode:      keyMode,
		ValidatorCfg: vcfg,
		Stats:        stats.NewSet(),
		kill:         make(chan struct{}),
	}
}

// signalShutdown closes the kill channel at most once, stopping the Reader
// and Dispatcher loops as if SIGINT had arrived.
func (p *Pipeline) signalShutdown() {
	p.killOnce.Do(func() { close(p.kill) })
}

// Run reads CDPs from r until EOF or a fatal Reader error, dispatches them
// by routing key to one Validator goroutine per key, and aggregates the
// results into p.Stats. It returns on SIGINT, EOF, or the first fatal
// error, whichever comes first.
func (p *Pipeline) Run(r io.Reader) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	go func() {
		select {
		case <-stop:
			p.Log.Printf("received interrupt, shutting down...")
			p.signalShutdown()
		case <-p.kill:
		}
	}()

	cdps := make(chan cdp.CDP, cdpChanSize)

	var grp errgroup.Group
	grp.Go(func() error {
		defer close(cdps)
		return p.readLoop(r, cdps, p.kill)
	})
	grp.Go(func() error {
		return p.dispatchLoop(cdps, p.kill)
	})

	if err := grp.Wait(); err != nil {
		return xerrors.Errorf("pipeline: %w", err)
	}
	return nil
}

// readLoop decodes CDPs from r and sends them on out until EOF, a read
// error, or kill is closed.
func (p *Pipeline) readLoop(r io.Reader, out chan<- cdp.CDP, kill <-chan struct{}) error {
	dec := rdh.NewReader(r)
	for {
		select {
		case <-kill:
			return nil
		default:
		}

		head, payload, err := dec.NextCDP()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("pipeline: could not decode CDP: %w", err)
		}

		for _, m := range dec.TakeHeaderMismatches() {
			p.Stats.AddErrors([]validator.Error{{
				Offset:  m.Offset,
				Code:    "E15",
				Message: fmt.Sprintf("header_id mismatch (got=%d, want=%d)", m.Got, m.Want),
			}})
		}

		c := cdp.CDP{RDH: head, Payload: payload}
		p.Stats.AddRDH(head)
		p.Stats.AddCDP()
		if cdp.IsHBFEnd(c) {
			p.Stats.AddHBF()
		}
		if p.Verbosity >= VerbosityTrace {
			p.Log.Printf("trace: read CDP at offset 0x%x, link=%d fee=%d", head.Offset, head.LinkID, head.FeeID)
		}

		select {
		case out <- c:
		case <-kill:
			return nil
		}
	}
}

// dispatchLoop routes each CDP to a per-key worker, creating workers
// lazily on first sight of a key and tearing them all down once in is
// exhausted.
func (p *Pipeline) dispatchLoop(in <-chan cdp.CDP, kill <-chan struct{}) error {
	workers := make(map[cdp.Key]chan cdp.CDP)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	spawn := func(key cdp.Key) chan cdp.CDP {
		if p.Verbosity >= VerbosityInfo {
			p.Log.Printf("info: starting validator for key %+v", key)
		}
		ch := make(chan cdp.CDP, cdpChanSize)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.validateLoop(key, ch); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
		return ch
	}

loop:
	for {
		select {
		case c, ok := <-in:
			if !ok {
				break loop
			}
			if p.Filter.Set && cdp.RouteKey(c, p.Filter.Mode) != p.Filter.Key {
				continue
			}
			if p.PassThrough != nil {
				if err := p.PassThrough.Write(c); err != nil {
					return xerrors.Errorf("pipeline: could not write pass-through CDP: %w", err)
				}
			}

			key := cdp.RouteKey(c, p.KeyMode)
			ch, ok := workers[key]
			if !ok {
				ch = spawn(key)
				workers[key] = ch
			}
			select {
			case ch <- c:
			case <-kill:
				break loop
			}

		case <-kill:
			break loop
		}
	}

	for _, ch := range workers {
		close(ch)
	}
	wg.Wait()

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// validateLoop consumes every CDP of one routing key in order, running the
// full validator stack and feeding results into p.Stats.
func (p *Pipeline) validateLoop(key cdp.Key, in <-chan cdp.CDP) error {
	v := validator.New(key, p.ValidatorCfg)
	for c := range in {
		errs := v.ConsumeCDP(c)
		p.Stats.AddErrors(errs)
		if p.MaxErrors > 0 && p.Stats.ErrorCount() > int(p.MaxErrors) {
			p.Log.Printf("error count exceeded --tolerate-max-errors=%d, shutting down", p.MaxErrors)
			p.signalShutdown()
			return nil
		}
	}
	p.Stats.AddErrors(v.Finalize())
	return nil
}
