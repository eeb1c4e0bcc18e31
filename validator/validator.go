// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validator

import (
	"github.com/go-lpc/itsinspect/cdp"
	"github.com/go-lpc/itsinspect/gbt"
	"github.com/go-lpc/itsinspect/rdh"
)

// Config bundles the tunables of every check family a Validator runs.
type Config struct {
	Custom CustomChecksConfig

	// SanityOnly restricts ConsumeCDP to word-level ID and reserved-bit
	// sanity checks (a `check sanity` run): the RDH running-invariant
	// checks, the payload FSM's structural cross-word checks (E41, E42,
	// E61), the ALPIDE lane/chip checks, and the custom checks are all
	// skipped.
	SanityOnly bool
}

// Validator runs the full stack of checks (RDH running invariants, ITS
// payload grammar, ALPIDE lane/chip checks, custom checks) against the CDP
// stream of a single routing key, one Validator instance
// per active key" design.
//
// Validator is not safe for concurrent use; the pipeline package keeps one
// instance per goroutine.
type Validator struct {
	key cdp.Key
	cfg Config

	rdhState *rdhRunningState
	fsm      *PayloadFSM
	custom   customChecksState

	lanes       map[uint8]*laneFrame
	frameLayer  uint8
	frameOffset int64
}

// New returns a Validator for key, ready to consume its first CDP.
func New(key cdp.Key, cfg Config) *Validator {
	fsm := NewPayloadFSM()
	fsm.SetSanityOnly(cfg.SanityOnly)
	return &Validator{
		key:      key,
		cfg:      cfg,
		rdhState: newRDHRunningState(),
		fsm:      fsm,
		lanes:    make(map[uint8]*laneFrame),
	}
}

// Reset discards all running state, as if this Validator had never seen a
// CDP. Used when a key's stream restarts (e.g. a new run).
func (v *Validator) Reset() {
	v.rdhState = newRDHRunningState()
	v.fsm = NewPayloadFSM()
	v.fsm.SetSanityOnly(v.cfg.SanityOnly)
	v.custom = customChecksState{}
	v.lanes = make(map[uint8]*laneFrame)
}

// ConsumeCDP runs every check against one CDP and returns the violations
// found, in the order detected.
func (v *Validator) ConsumeCDP(c cdp.CDP) []Error {
	var errs []Error

	if !v.cfg.SanityOnly {
		errs = append(errs, v.rdhState.step(c.RDH)...)
		v.custom.observe(c.RDH, v.cfg.Custom)
	}

	v.fsm.EnterCDP(c.RDH)

	for off := 0; off+gbt.Size <= len(c.Payload); off += gbt.Size {
		var w gbt.Word
		copy(w[:], c.Payload[off:off+gbt.Size])
		offset := c.RDH.Offset + rdh.Size + int64(off)

		id := w.ID()
		if !v.cfg.SanityOnly {
			if id == gbt.IDTdh {
				v.lanes = make(map[uint8]*laneFrame)
				v.frameLayer = c.RDH.Layer()
				v.frameOffset = offset
			} else if class := gbt.DataWordClass(id); class != gbt.ClassNone {
				v.accumulateDataWord(w, id, c.RDH)
			}
		}

		errs = append(errs, v.fsm.Step(offset, w, c.RDH)...)

		if !v.cfg.SanityOnly && id == gbt.IDTdt {
			tdt := gbt.DecodeTDT(w)
			v.markFatalLanes(tdt.LaneStatus())
			if len(v.lanes) > 0 {
				errs = append(errs, v.flushFrame()...)
			}
		}
	}

	return errs
}

func (v *Validator) accumulateDataWord(w gbt.Word, id uint8, r rdh.RDH) {
	lane, _ := classifyDataWordLane(id)
	lf, ok := v.lanes[lane]
	if !ok {
		lf = &laneFrame{laneID: lane}
		v.lanes[lane] = lf
	}
	lf.raw = append(lf.raw, w[:9]...)
}

// markFatalLanes flags lanes whose 2-bit status field in the TDT's
// lane_status carries the fatal encoding (0b11), excluding them from the
// lane-count/grouping checks.
func (v *Validator) markFatalLanes(laneStatus uint64) {
	for lane, lf := range v.lanes {
		bits := (laneStatus >> (2 * uint(lane))) & 0x3
		lf.fatal = bits == 0x3
	}
}

func (v *Validator) flushFrame() []Error {
	lanes := make([]*laneFrame, 0, len(v.lanes))
	for _, lf := range v.lanes {
		lf.decodeChips()
		lanes = append(lanes, lf)
	}
	errs := checkLanes(v.frameOffset, v.frameLayer, lanes, v.cfg.Custom.Lanes)
	v.lanes = make(map[uint8]*laneFrame)
	return errs
}

// Finalize reports the checks that can only be evaluated once this key's
// whole stream has been consumed (cdps_expected, triggers_pht_expected,
// its_trigger_period, rdh_version_expected).
func (v *Validator) Finalize() []Error {
	if v.cfg.SanityOnly {
		return nil
	}
	return v.custom.finalize(v.cfg.Custom)
}
