// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gbt_test

import (
	"testing"

	"github.com/go-lpc/itsinspect/gbt"
)

func TestDataWordClass(t *testing.T) {
	tests := []struct {
		id   uint8
		want gbt.LaneClass
	}{
		{0x20, gbt.ClassIB},
		{0x28, gbt.ClassIB},
		{0x29, gbt.ClassNone},
		{0x43, gbt.ClassML},
		{0x4a, gbt.ClassML},
		{0x4c, gbt.ClassOL}, // outside every ML range, but inside OL's 0x48-0x4e
		{0x40, gbt.ClassOL},
		{0x4e, gbt.ClassOL},
		{0x5e, gbt.ClassOL},
		{0x5f, gbt.ClassNone},
		{0xe0, gbt.ClassNone}, // a status-word ID, never a data-word class
	}
	for _, tt := range tests {
		if got := gbt.DataWordClass(tt.id); got != tt.want {
			t.Errorf("DataWordClass(0x%02x) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestIsStatusWord(t *testing.T) {
	var w gbt.Word
	for _, id := range []uint8{gbt.IDIhw, gbt.IDTdh, gbt.IDTdt, gbt.IDDdw0, gbt.IDCdw} {
		w[gbt.Size-1] = id
		if !w.IsStatusWord() {
			t.Errorf("IsStatusWord(id=0x%02x) = false, want true", id)
		}
	}
	w[gbt.Size-1] = 0x20
	if w.IsStatusWord() {
		t.Errorf("IsStatusWord(id=0x20) = true, want false")
	}
}

func TestTDHFlags(t *testing.T) {
	var w gbt.Word
	// bit13 (no_data) and bit14 (continuation) set, trigger_type = 0x123
	w[0] = 0x23
	w[1] = 0b0110_0001 // bits: trigger_type high nibble=1, internal_trigger(bit12)=0, no_data(bit13)=1, continuation(bit14)=1
	w[9] = gbt.IDTdh

	h := gbt.DecodeTDH(w)
	if !h.NoData() {
		t.Errorf("NoData() = false, want true")
	}
	if !h.Continuation() {
		t.Errorf("Continuation() = false, want true")
	}
	if got, want := h.TriggerType(), uint16(0x123); got != want {
		t.Errorf("TriggerType() = 0x%x, want 0x%x", got, want)
	}
}

func TestTDTPacketDone(t *testing.T) {
	var w gbt.Word
	w[8] = 0x01 // packet_done set
	w[9] = gbt.IDTdt
	tdt := gbt.DecodeTDT(w)
	if !tdt.PacketDone() {
		t.Errorf("PacketDone() = false, want true")
	}

	w[8] = 0x00
	tdt = gbt.DecodeTDT(w)
	if tdt.PacketDone() {
		t.Errorf("PacketDone() = true, want false")
	}
}

func TestDDW0Index(t *testing.T) {
	var w gbt.Word
	w[8] = 0x10 // index = 1
	w[9] = gbt.IDDdw0
	d := gbt.DecodeDDW0(w)
	if got, want := d.Index(), uint8(1); got != want {
		t.Errorf("Index() = %d, want %d", got, want)
	}
}
