// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validator

import (
	"github.com/go-lpc/itsinspect/gbt"
	"github.com/go-lpc/itsinspect/rdh"
)

// payloadState names the shape of what the FSM currently expects next, per
// the ITS payload grammar. It carries across CDPs of the same routing key in the
// continuation ("_cont") variant of the grammar.
type payloadState int

const (
	stateAwaitIHW        payloadState = iota // expect a plain IHW
	stateAwaitTDH                            // just saw IHW (or C_IHW): expect exactly one TDH
	stateAwaitDataOrTDT                      // ambiguous: more data words, or the closing TDT
	stateAwaitBranch3                        // ambiguous: TDH, DDW0, or IHW
	stateAwaitSoloDDW0                       // boundary-forced: exactly one DDW0, nothing else
	stateTerminal                            // DDW0 consumed; nothing more expected this CDP
)

// PayloadFSM is the ITS payload state machine, in
// continuous mode: its state persists across the CDPs of one routing key
// and is only reset at a genuine heartbeat-frame start.
type PayloadFSM struct {
	state payloadState
	cont  bool // inside the continuation sub-region

	haveLastTDT bool
	lastTDTDone bool

	// sanityOnly suppresses the cross-word structural checks (E41, E42,
	// E61) while leaving every per-word ID/reserved-bit sanity check in
	// place. Set via SetSanityOnly for a `check sanity` run.
	sanityOnly bool
}

// NewPayloadFSM returns a fresh FSM, positioned to expect an IHW.
func NewPayloadFSM() *PayloadFSM {
	return &PayloadFSM{state: stateAwaitIHW}
}

// SetSanityOnly restricts f to the word-level ID and reserved-bit sanity
// checks, suppressing the structural checks that cross-reference more than
// one word or the enclosing RDH (E41, E42, E61).
func (f *PayloadFSM) SetSanityOnly(sanityOnly bool) {
	f.sanityOnly = sanityOnly
}

// EnterCDP positions the FSM for the first word of a new CDP, following the
// cross-level guards: a heartbeat-start CDP resets to
// "expect IHW"; a lone closing page (stop_bit=1, pages_counter>0) forces
// "expect exactly one DDW0"; any other CDP (a continuation page) leaves the
// FSM state exactly as the previous CDP left it.
func (f *PayloadFSM) EnterCDP(r rdh.RDH) {
	switch {
	case r.PagesCounter == 0 && r.StopBit == 0:
		f.state = stateAwaitIHW
		f.cont = false
	case r.StopBit == 1 && r.PagesCounter > 0:
		f.state = stateAwaitSoloDDW0
	}
}

// Step consumes one GBT word at byte offset, returning any violations.
func (f *PayloadFSM) Step(offset int64, w gbt.Word, enclosing rdh.RDH) []Error {
	id := w.ID()

	switch f.state {
	case stateAwaitIHW:
		return f.stepAwaitIHW(offset, w, id)
	case stateAwaitTDH:
		return f.stepAwaitTDH(offset, w, id)
	case stateAwaitDataOrTDT:
		return f.stepAwaitDataOrTDT(offset, w, id)
	case stateAwaitBranch3:
		return f.stepAwaitBranch3(offset, w, id, enclosing)
	case stateAwaitSoloDDW0:
		return f.stepAwaitSoloDDW0(offset, w, id)
	default: // stateTerminal
		f.state = stateAwaitIHW
		f.cont = false
		return []Error{newErr(offset, "E13", "unexpected word after DDW0 terminated the CDP (id=0x%x)", id)}
	}
}

func (f *PayloadFSM) stepAwaitIHW(offset int64, w gbt.Word, id uint8) []Error {
	var errs []Error
	if id != gbt.IDIhw {
		errs = append(errs, newErr(offset, "E99", "unrecognized ID, expected IHW (id=0x%x)", id))
		errs = append(errs, newErr(offset, "E30", "invalid IHW ID (got=0x%x)", id))
	} else {
		ihw := gbt.DecodeIHW(w)
		if !ihw.IsReservedZero() {
			errs = append(errs, newErr(offset, "E30", "IHW reserved bits not zero"))
		}
	}
	f.state = stateAwaitTDH
	return errs
}

func (f *PayloadFSM) stepAwaitTDH(offset int64, w gbt.Word, id uint8) []Error {
	var errs []Error
	if id != gbt.IDTdh {
		errs = append(errs, newErr(offset, "E99", "unrecognized ID, expected TDH (id=0x%x)", id))
		errs = append(errs, newErr(offset, "E40", "invalid TDH ID (got=0x%x)", id))
		// best-effort resync: assume data follows, most common shape.
		f.state = stateAwaitDataOrTDT
		return errs
	}

	tdh := gbt.DecodeTDH(w)
	if !tdh.IsReservedZero() {
		errs = append(errs, newErr(offset, "E40", "TDH reserved bits not zero"))
	}
	if !f.sanityOnly && tdh.Continuation() != f.cont {
		errs = append(errs, newErr(offset, "E41", "TDH continuation flag = %v, want %v", tdh.Continuation(), f.cont))
	}

	if tdh.NoData() {
		f.state = stateAwaitBranch3
	} else {
		f.state = stateAwaitDataOrTDT
	}
	return errs
}

func (f *PayloadFSM) stepAwaitDataOrTDT(offset int64, w gbt.Word, id uint8) []Error {
	var errs []Error

	switch {
	case id == gbt.IDCdw, gbt.DataWordClass(id) != gbt.ClassNone:
		// CDW is tagged distinctly for stats purposes but follows the same
		// transition rule as a plain data word: stay in DATA.
	case id == gbt.IDTdt:
		tdt := gbt.DecodeTDT(w)
		if !tdt.IsReservedZero() {
			errs = append(errs, newErr(offset, "E50", "TDT reserved bits not zero"))
		}
		f.haveLastTDT = true
		f.lastTDTDone = tdt.PacketDone()
		if tdt.PacketDone() {
			f.state = stateAwaitBranch3
			f.cont = false
		} else {
			f.state = stateAwaitIHW
			f.cont = true
		}
		return errs
	default:
		errs = append(errs, newErr(offset, "E99", "unrecognized ID, expected data word or TDT (id=0x%x)", id))
		// an unrecognized ID in this position is parsed as a data word
		// regardless, so its own sanity check still runs and reports it.
		errs = append(errs, newErr(offset, "E70", "data word ID is invalid (id=0x%x)", id))
		// stay in DATA: the word was consumed as a (bad) data word.
	}
	return errs
}

func (f *PayloadFSM) stepAwaitBranch3(offset int64, w gbt.Word, id uint8, enclosing rdh.RDH) []Error {
	var errs []Error
	f.cont = false // the continuation sub-region, if any, always closes here.

	switch id {
	case gbt.IDTdh:
		if !f.sanityOnly && !(f.haveLastTDT && f.lastTDTDone) {
			errs = append(errs, newErr(offset, "E42", "TDH follows TDH/TDT without a preceding TDT with packet_done=1"))
		}
		tdh := gbt.DecodeTDH(w)
		if !tdh.IsReservedZero() {
			errs = append(errs, newErr(offset, "E40", "TDH reserved bits not zero"))
		}
		if !f.sanityOnly && (tdh.Continuation() || !tdh.InternalTrigger()) {
			errs = append(errs, newErr(offset, "E41", "TDH after TDT(packet_done=1) must have continuation=0 and internal_trigger=1"))
		}
		if tdh.NoData() {
			f.state = stateAwaitBranch3
		} else {
			f.state = stateAwaitDataOrTDT
		}

	case gbt.IDDdw0:
		ddw0 := gbt.DecodeDDW0(w)
		if ddw0.Index() < 1 {
			errs = append(errs, newErr(offset, "E60", "DDW0 index must be >= 1 (got=%d)", ddw0.Index()))
		}
		if !ddw0.IsReservedZero() {
			errs = append(errs, newErr(offset, "E60", "DDW0 reserved bits not zero"))
		}
		if !f.sanityOnly && !(enclosing.StopBit == 1 && enclosing.PagesCounter > 0) {
			errs = append(errs, newErr(offset, "E61", "RDH stop bit/pages_counter inconsistent with a DDW0 (stop_bit=%d, pages_counter=%d)", enclosing.StopBit, enclosing.PagesCounter))
		}
		f.state = stateAwaitIHW

	case gbt.IDIhw:
		ihw := gbt.DecodeIHW(w)
		if !ihw.IsReservedZero() {
			errs = append(errs, newErr(offset, "E30", "IHW reserved bits not zero"))
		}
		f.state = stateAwaitTDH

	default:
		errs = append(errs, newErr(offset, "E99", "unrecognized ID, expected TDH, DDW0 or IHW (id=0x%x)", id))
		// ambiguous 3-way branch: fall back to the safest resync target.
		f.state = stateAwaitIHW
	}

	return errs
}

func (f *PayloadFSM) stepAwaitSoloDDW0(offset int64, w gbt.Word, id uint8) []Error {
	var errs []Error
	if id != gbt.IDDdw0 {
		errs = append(errs, newErr(offset, "E99", "unrecognized ID, expected the sole DDW0 of a closing page (id=0x%x)", id))
		errs = append(errs, newErr(offset, "E60", "invalid DDW0 ID (got=0x%x)", id))
	} else {
		ddw0 := gbt.DecodeDDW0(w)
		if ddw0.Index() < 1 {
			errs = append(errs, newErr(offset, "E60", "DDW0 index must be >= 1 (got=%d)", ddw0.Index()))
		}
		if !ddw0.IsReservedZero() {
			errs = append(errs, newErr(offset, "E60", "DDW0 reserved bits not zero"))
		}
	}
	f.state = stateTerminal
	return errs
}
