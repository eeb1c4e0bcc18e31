// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validator_test

import (
	"testing"

	"github.com/go-lpc/itsinspect/gbt"
	"github.com/go-lpc/itsinspect/rdh"
	"github.com/go-lpc/itsinspect/validator"
)

func word(id uint8) gbt.Word {
	var w gbt.Word
	w[gbt.Size-1] = id
	return w
}

func tdhWord(noData, continuation, internalTrigger bool) gbt.Word {
	var w gbt.Word
	var flags uint16
	if internalTrigger {
		flags |= 1 << 12
	}
	if noData {
		flags |= 1 << 13
	}
	if continuation {
		flags |= 1 << 14
	}
	w[0] = byte(flags)
	w[1] = byte(flags >> 8)
	w[gbt.Size-1] = gbt.IDTdh
	return w
}

func tdtWord(packetDone bool) gbt.Word {
	var w gbt.Word
	if packetDone {
		w[8] = 0x01
	}
	w[gbt.Size-1] = gbt.IDTdt
	return w
}

func ddw0Word(index uint8) gbt.Word {
	var w gbt.Word
	w[8] = index << 4
	w[gbt.Size-1] = gbt.IDDdw0
	return w
}

func dataWord(id uint8) gbt.Word {
	var w gbt.Word
	w[gbt.Size-1] = id
	return w
}

func hbfStartRDH() rdh.RDH {
	return rdh.RDH{PagesCounter: 0, StopBit: 0}
}

func closingPageRDH() rdh.RDH {
	return rdh.RDH{PagesCounter: 1, StopBit: 1}
}

// scenario 10_rdh: a clean, minimal two-page HBF: IHW, TDH, TDT(done) on
// the opening page; a lone DDW0 on the closing page.
func TestPayloadFSMCleanMinimalCDP(t *testing.T) {
	f := validator.NewPayloadFSM()
	r0 := hbfStartRDH()
	f.EnterCDP(r0)

	var errs []validator.Error
	errs = append(errs, f.Step(0, word(gbt.IDIhw), r0)...)
	errs = append(errs, f.Step(10, tdhWord(false, false, true), r0)...)
	errs = append(errs, f.Step(20, tdtWord(true), r0)...)

	r1 := closingPageRDH()
	f.EnterCDP(r1)
	errs = append(errs, f.Step(30, ddw0Word(1), r1)...)

	if len(errs) != 0 {
		t.Fatalf("clean CDP produced errors: %v", errs)
	}
}

// scenario 1_hbf_bad_ihw_tdh: a bad IHW id at a deterministic position
// must raise both E99 and the category's own sanity code.
func TestPayloadFSMBadIHW(t *testing.T) {
	f := validator.NewPayloadFSM()
	r := hbfStartRDH()
	f.EnterCDP(r)

	errs := f.Step(0, word(0x01), r)
	codes := codesOf(errs)
	if !contains(codes, "E99") || !contains(codes, "E30") {
		t.Fatalf("codes = %v, want E99 and E30", codes)
	}
}

// scenario 1_hbf_bad_ihw_tdh (TDH half): a bad TDH id likewise raises both
// E99 and E40.
func TestPayloadFSMBadTDH(t *testing.T) {
	f := validator.NewPayloadFSM()
	r := hbfStartRDH()
	f.EnterCDP(r)

	_ = f.Step(0, word(gbt.IDIhw), r)
	errs := f.Step(10, word(0x01), r)
	codes := codesOf(errs)
	if !contains(codes, "E99") || !contains(codes, "E40") {
		t.Fatalf("codes = %v, want E99 and E40", codes)
	}
}

// scenario 1_hbf_bad_dw_ddw0: inside the data-or-TDT region, an
// unrecognised id is parsed as a data word and raises both E99 and the
// data word's own sanity code, E70.
func TestPayloadFSMBadDataOrTDT(t *testing.T) {
	f := validator.NewPayloadFSM()
	r := hbfStartRDH()
	f.EnterCDP(r)

	_ = f.Step(0, word(gbt.IDIhw), r)
	_ = f.Step(10, tdhWord(false, false, true), r)
	errs := f.Step(20, word(0x01), r)
	codes := codesOf(errs)
	if !contains(codes, "E99") || !contains(codes, "E70") {
		t.Fatalf("codes = %v, want E99 and E70", codes)
	}
}

// scenario 1_hbf_bad_dw_ddw0: unlike the data-or-TDT position, a bad id at
// the 3-way branch (TDH/DDW0/IHW) raises only E99, since there is no
// fallback word class to parse it as.
func TestPayloadFSMBadBranch3Ambiguous(t *testing.T) {
	f := validator.NewPayloadFSM()
	r := closingPageRDH()
	f.EnterCDP(hbfStartRDH()) // establish a non-solo-DDW0 state first
	_ = f.Step(0, word(gbt.IDIhw), r)
	_ = f.Step(10, tdhWord(false, false, true), r)
	_ = f.Step(20, tdtWord(true), r) // packet_done -> branch3

	errs := f.Step(30, word(0x01), r)
	codes := codesOf(errs)
	if len(codes) != 1 || codes[0] != "E99" {
		t.Fatalf("codes = %v, want exactly [E99]", codes)
	}
}

// a lone closing page (stop_bit=1,
// pages_counter>0) forces the solo-DDW0 state; anything else raises E99 +
// E60.
func TestPayloadFSMBadSoloDDW0(t *testing.T) {
	f := validator.NewPayloadFSM()
	r := closingPageRDH()
	f.EnterCDP(r)

	errs := f.Step(0, word(0x01), r)
	codes := codesOf(errs)
	if !contains(codes, "E99") || !contains(codes, "E60") {
		t.Fatalf("codes = %v, want E99 and E60", codes)
	}
}

// tdh_after_tdh_requires_prior_tdt_done: a TDH appearing right after
// another TDH's no_data branch, without an intervening TDT(packet_done=1),
// must be flagged (E42), even though the id itself is legal at that
// position.
func TestPayloadFSMTDHAfterTDHRequiresPriorTDTDone(t *testing.T) {
	f := validator.NewPayloadFSM()
	r := hbfStartRDH()
	f.EnterCDP(r)

	_ = f.Step(0, word(gbt.IDIhw), r)
	_ = f.Step(10, tdhWord(true, false, true), r) // no_data -> branch3 directly, no TDT seen yet

	errs := f.Step(20, tdhWord(true, false, true), r)
	codes := codesOf(errs)
	if !contains(codes, "E42") {
		t.Fatalf("codes = %v, want E42 (missing prior TDT packet_done)", codes)
	}
}

func TestPayloadFSMDataWordsStayInDataState(t *testing.T) {
	f := validator.NewPayloadFSM()
	r := hbfStartRDH()
	f.EnterCDP(r)

	_ = f.Step(0, word(gbt.IDIhw), r)
	_ = f.Step(10, tdhWord(false, false, true), r)
	errs := f.Step(20, dataWord(0x20), r) // IB data word
	if len(errs) != 0 {
		t.Fatalf("data word rejected: %v", errs)
	}
}

func codesOf(errs []validator.Error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func contains(haystack []string, want string) bool {
	for _, s := range haystack {
		if s == want {
			return true
		}
	}
	return false
}
