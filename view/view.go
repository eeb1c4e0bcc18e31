// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package view renders human-readable tables for the itsinspect `view`
// subcommands.
package view // import "github.com/go-lpc/itsinspect/view"

import (
	"fmt"
	"io"

	"github.com/go-lpc/itsinspect/rdh"
)

// rdhHeader is reused verbatim from RdhCRU::rdh_header_text_with_indent_to_string.
const rdhHeader = "RDH   Header  FEE   Sys   Offset  Link  Packet    BC   Orbit       Data       Trigger   Pages    Stop\n" +
	"ver   size    ID    ID    next    ID    counter        counter     format     type      counter  bit"

// RDHTable writes one line per RDH in rdhs to w, preceded by the header.
func RDHTable(w io.Writer, rdhs []rdh.RDH) error {
	if _, err := fmt.Fprintln(w, rdhHeader); err != nil {
		return err
	}
	for _, r := range rdhs {
		_, err := fmt.Fprintf(w, "%-5d %-7d 0x%-4x 0x%-3x %-7d %-5d %-9d %-4d %-11d 0x%-8x 0x%-7x %-8d %-4d\n",
			r.HeaderID, r.HeaderSize, r.FeeID, r.SystemID, r.OffsetToNext, r.LinkID,
			r.PacketCounter, r.BC(), r.Orbit, r.DataFormat(), r.TriggerType, r.PagesCounter, r.StopBit)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadoutFrame is one TDH..TDT span rendered by the its-readout-frames view:
// just the boundary, lane count, and trigger info, no payload bytes.
type ReadoutFrame struct {
	Offset      int64
	Orbit       uint32
	TriggerBC   uint16
	LaneCount   int
	PacketDone  bool
}

// ReadoutFrames writes one line per frame to w.
func ReadoutFrames(w io.Writer, frames []ReadoutFrame) error {
	if _, err := fmt.Fprintln(w, "Offset      Orbit       TriggerBC  Lanes  Done"); err != nil {
		return err
	}
	for _, f := range frames {
		_, err := fmt.Fprintf(w, "0x%-9x %-11d %-10d %-6d %v\n", f.Offset, f.Orbit, f.TriggerBC, f.LaneCount, f.PacketDone)
		if err != nil {
			return err
		}
	}
	return nil
}

// LaneData is one lane's raw payload bytes within a readout frame, for the
// its-readout-frames-data view.
type LaneData struct {
	LaneID uint8
	Data   []byte
}

// ReadoutFrameData writes the lane id and hex-dumped payload of every lane
// in frame to w.
func ReadoutFrameData(w io.Writer, frame []LaneData) error {
	for _, l := range frame {
		if _, err := fmt.Fprintf(w, "lane %-3d  % x\n", l.LaneID, l.Data); err != nil {
			return err
		}
	}
	return nil
}
