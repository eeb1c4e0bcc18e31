// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package view_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-lpc/itsinspect/rdh"
	"github.com/go-lpc/itsinspect/view"
)

func TestRDHTableHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := view.RDHTable(&buf, nil); err != nil {
		t.Fatalf("RDHTable: %+v", err)
	}
	if !strings.Contains(buf.String(), "FEE") {
		t.Errorf("header missing, got: %q", buf.String())
	}
}

func TestRDHTableRow(t *testing.T) {
	var buf bytes.Buffer
	r := rdh.RDH{HeaderID: 7, HeaderSize: 64, FeeID: 0x400c, OffsetToNext: 64, LinkID: 3}
	if err := view.RDHTable(&buf, []rdh.RDH{r}); err != nil {
		t.Fatalf("RDHTable: %+v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 { // two header lines + one data row
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
}

func TestReadoutFrames(t *testing.T) {
	var buf bytes.Buffer
	frames := []view.ReadoutFrame{{Offset: 0x40, Orbit: 1, TriggerBC: 10, LaneCount: 3, PacketDone: true}}
	if err := view.ReadoutFrames(&buf, frames); err != nil {
		t.Fatalf("ReadoutFrames: %+v", err)
	}
	if !strings.Contains(buf.String(), "0x40") {
		t.Errorf("offset missing from output: %q", buf.String())
	}
}

func TestReadoutFrameData(t *testing.T) {
	var buf bytes.Buffer
	lane := []view.LaneData{{LaneID: 2, Data: []byte{0x01, 0x02}}}
	if err := view.ReadoutFrameData(&buf, lane); err != nil {
		t.Fatalf("ReadoutFrameData: %+v", err)
	}
	if !strings.Contains(buf.String(), "lane 2") {
		t.Errorf("lane id missing from output: %q", buf.String())
	}
}
