// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rdh_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/go-lpc/itsinspect/rdh"
)

func validRDH() rdh.RDH {
	return rdh.RDH{
		HeaderID:     7,
		HeaderSize:   rdh.Size,
		FeeID:        0b0100_0000_0000_1100, // L4_12
		SystemID:     rdh.SystemITS,
		OffsetToNext: 64, // zero-length payload
		MemorySize:   64,
		LinkID:       3,
		CruIDDw:      0x0042,
		BCReserved:   100,
		Orbit:        7,
		TriggerType:  1,
		PagesCounter: 0,
		StopBit:      0,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := validRDH()
	buf := rdh.Encode(want, nil)
	if len(buf) != rdh.Size {
		t.Fatalf("encoded size = %d, want %d", len(buf), rdh.Size)
	}

	var got rdh.RDH
	if err := rdh.Decode(bytes.NewReader(buf), make([]byte, rdh.Size), &got); err != nil {
		t.Fatalf("Decode: %+v", err)
	}
	got.Offset = 0 // Offset is not part of the wire form

	if got != want {
		t.Fatalf("round-trip mismatch:\ngot=  %+v\nwant= %+v", got, want)
	}
}

func TestLayerStave(t *testing.T) {
	r := validRDH()
	if got, want := r.Layer(), uint8(4); got != want {
		t.Errorf("Layer() = %d, want %d", got, want)
	}
	if got, want := r.Stave(), uint8(12); got != want {
		t.Errorf("Stave() = %d, want %d", got, want)
	}
}

func TestPayloadLen(t *testing.T) {
	r := validRDH()
	r.OffsetToNext = 64 + 100
	if got, want := r.PayloadLen(), 100; got != want {
		t.Errorf("PayloadLen() = %d, want %d", got, want)
	}
}

func TestSanityErrorsCleanRDH(t *testing.T) {
	r := validRDH()
	if errs := rdh.SanityErrors(r); len(errs) != 0 {
		t.Errorf("SanityErrors(valid rdh) = %v, want none", errs)
	}
}

func TestSanityErrorsCatchesEachField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*rdh.RDH)
	}{
		{"header size", func(r *rdh.RDH) { r.HeaderSize = 32 }},
		{"reserved0", func(r *rdh.RDH) { r.Reserved0 = 1 }},
		{"trigger type zero", func(r *rdh.RDH) { r.TriggerType = 0 }},
		{"bc too large", func(r *rdh.RDH) { r.BCReserved = rdh.MaxBC }},
		{"stop bit", func(r *rdh.RDH) { r.StopBit = 2 }},
		{"data format", func(r *rdh.RDH) { r.DataFormatReserved = 3 }},
		{"offset too small", func(r *rdh.RDH) { r.OffsetToNext = 10 }},
		{"offset too large", func(r *rdh.RDH) { r.OffsetToNext = 64 + 20481 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRDH()
			tt.mutate(&r)
			if errs := rdh.SanityErrors(r); len(errs) == 0 {
				t.Errorf("SanityErrors did not flag mutation %q", tt.name)
			}
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	var out rdh.RDH
	err := rdh.Decode(bytes.NewReader(make([]byte, 10)), make([]byte, rdh.Size), &out)
	if err == nil {
		t.Fatalf("Decode of truncated input: got nil error")
	}
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("Decode of truncated input: err = %v, want io.ErrUnexpectedEOF", err)
	}
}
