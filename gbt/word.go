// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gbt decodes the 80-bit ("10-byte") GBT words carried in an ITS
// CDP payload: status words (IHW, TDH, TDT, DDW0, CDW) and data words.
package gbt // import "github.com/go-lpc/itsinspect/gbt"

import "encoding/binary"

// Size is the fixed size, in bytes, of a GBT word.
const Size = 10

// ID values of the recognised status words. The ID is always the last
// (10th) byte of the word.
const (
	IDIhw = 0xe0
	IDTdh = 0xe8
	IDTdt = 0xf0
	IDDdw0 = 0xe4
	IDCdw  = 0xf8
)

// Word is a single 10-byte GBT word.
type Word [Size]byte

// ID returns the trailing ID byte that identifies the word's class.
func (w Word) ID() uint8 { return w[Size-1] }

// IsStatusWord reports whether the word's ID matches one of the fixed
// status-word markers (IHW, TDH, TDT, DDW0, CDW).
func (w Word) IsStatusWord() bool {
	switch w.ID() {
	case IDIhw, IDTdh, IDTdt, IDDdw0, IDCdw:
		return true
	default:
		return false
	}
}

// LaneClass identifies which detector barrel a data-word ID range belongs
// to.
type LaneClass int

const (
	// ClassNone marks an ID that is not a recognised data-word ID.
	ClassNone LaneClass = iota
	ClassIB
	ClassML
	ClassOL
)

func inRange(v uint8, lo, hi uint8) bool { return v >= lo && v <= hi }

// DataWordClass classifies a non-status-word ID according to the ranges in
// the data-word ID ranges used by the ALPIDE lane/chip checks.
func DataWordClass(id uint8) LaneClass {
	switch {
	case inRange(id, 0x20, 0x28):
		return ClassIB
	case inRange(id, 0x43, 0x46), inRange(id, 0x48, 0x4b), inRange(id, 0x53, 0x56), inRange(id, 0x58, 0x5b):
		return ClassML
	case inRange(id, 0x40, 0x46), inRange(id, 0x48, 0x4e), inRange(id, 0x50, 0x56), inRange(id, 0x58, 0x5e):
		return ClassOL
	default:
		return ClassNone
	}
}

// IHW is the decoded ITS Header Word (ID 0xe0).
type IHW struct {
	activeLanes uint32 // low 28 bits used
	reserved32  uint32
	idWord      uint16
}

// DecodeIHW decodes w as an IHW.
func DecodeIHW(w Word) IHW {
	le := binary.LittleEndian
	return IHW{
		activeLanes: le.Uint32(w[0:4]),
		reserved32:  le.Uint32(w[4:8]),
		idWord:      le.Uint16(w[8:10]),
	}
}

// ActiveLanes returns the 28-bit active-lane bitfield.
func (h IHW) ActiveLanes() uint32 { return h.activeLanes & 0x0fff_ffff }

// IsReservedZero reports whether every reserved bit of the IHW is zero.
func (h IHW) IsReservedZero() bool {
	fourLSB := (h.activeLanes >> 28) & 0xf
	eightMSB := h.idWord & 0xff
	return fourLSB == 0 && h.reserved32 == 0 && eightMSB == 0
}

// TDH is the decoded Trigger Data Header (ID 0xe8).
type TDH struct {
	flags         uint16
	triggerBCWord uint16
	TriggerOrbit  uint32
	reserved0ID   uint16
}

// DecodeTDH decodes w as a TDH.
func DecodeTDH(w Word) TDH {
	le := binary.LittleEndian
	return TDH{
		flags:         le.Uint16(w[0:2]),
		triggerBCWord: le.Uint16(w[2:4]),
		TriggerOrbit:  le.Uint32(w[4:8]),
		reserved0ID:   le.Uint16(w[8:10]),
	}
}

// TriggerType returns the 12-bit trigger type bitfield.
func (h TDH) TriggerType() uint16 { return h.flags & 0x0fff }

// InternalTrigger reports the internal_trigger flag (bit 12).
func (h TDH) InternalTrigger() bool { return (h.flags>>12)&0x1 == 1 }

// NoData reports the no_data flag (bit 13).
func (h TDH) NoData() bool { return (h.flags>>13)&0x1 == 1 }

// Continuation reports the continuation flag (bit 14).
func (h TDH) Continuation() bool { return (h.flags>>14)&0x1 == 1 }

// TriggerBC returns the 12-bit trigger bunch-crossing counter.
func (h TDH) TriggerBC() uint16 { return h.triggerBCWord & 0x0fff }

// IsReservedZero reports whether every reserved bit of the TDH is zero.
func (h TDH) IsReservedZero() bool {
	reserved2 := h.flags & 0x8000
	reserved1 := h.triggerBCWord & 0xf000
	reserved0 := h.reserved0ID & 0xff
	return reserved2 == 0 && reserved1 == 0 && reserved0 == 0
}

// TDT is the decoded Trigger Data Trailer (ID 0xf0).
type TDT struct {
	laneStatusLo  uint32
	laneStatusMid uint16
	laneStatusHi  uint8
	timeoutFlags  uint8
	doneFlags     uint8
}

// DecodeTDT decodes w as a TDT.
func DecodeTDT(w Word) TDT {
	le := binary.LittleEndian
	return TDT{
		laneStatusLo:  le.Uint32(w[0:4]),
		laneStatusMid: le.Uint16(w[4:6]),
		laneStatusHi:  w[6],
		timeoutFlags:  w[7],
		doneFlags:     w[8],
	}
}

// LaneStatus returns the packed per-lane fault-flag field (56 bits used).
func (t TDT) LaneStatus() uint64 {
	return uint64(t.laneStatusLo) | uint64(t.laneStatusMid)<<32 | uint64(t.laneStatusHi)<<48
}

// PacketDone reports the packet_done flag.
func (t TDT) PacketDone() bool { return t.doneFlags&0x01 != 0 }

// TransmissionTimeout reports the transmission_timeout flag.
func (t TDT) TransmissionTimeout() bool { return t.doneFlags&0x02 != 0 }

// LaneStartsViolation reports the lane_starts_violation flag.
func (t TDT) LaneStartsViolation() bool { return t.doneFlags&0x08 != 0 }

// TimeoutToStart reports the timeout_to_start flag.
func (t TDT) TimeoutToStart() bool { return t.timeoutFlags&0x80 != 0 }

// TimeoutStartStop reports the timeout_start_stop flag.
func (t TDT) TimeoutStartStop() bool { return t.timeoutFlags&0x40 != 0 }

// TimeoutInIdle reports the timeout_in_idle flag.
func (t TDT) TimeoutInIdle() bool { return t.timeoutFlags&0x20 != 0 }

// IsReservedZero reports whether every reserved bit of the TDT is zero.
func (t TDT) IsReservedZero() bool {
	return t.doneFlags&0xf0 == 0 && (t.doneFlags&0x04) == 0 && (t.timeoutFlags&0x1f) == 0
}

// DDW0 is the decoded Diagnostic Data Word (ID 0xe4).
type DDW0 struct {
	reservedLaneStatus uint64
	indexFlags         uint8
}

// DecodeDDW0 decodes w as a DDW0.
func DecodeDDW0(w Word) DDW0 {
	le := binary.LittleEndian
	return DDW0{
		reservedLaneStatus: le.Uint64(w[0:8]),
		indexFlags:         w[8],
	}
}

// Index returns the 4-bit index field; a well-formed DDW0 has Index() >= 1.
func (d DDW0) Index() uint8 { return (d.indexFlags & 0xf0) >> 4 }

// LaneStatus returns the packed per-lane status field (56 bits used).
func (d DDW0) LaneStatus() uint64 { return d.reservedLaneStatus & 0x00ff_ffff_ffff_ffff }

// LaneStartsViolation reports the lane_starts_violation flag.
func (d DDW0) LaneStartsViolation() bool { return d.indexFlags&0b1000 != 0 }

// TransmissionTimeout reports the transmission_timeout flag.
func (d DDW0) TransmissionTimeout() bool { return d.indexFlags&0b10 != 0 }

// IsReservedZero reports whether every reserved bit of the DDW0 is zero.
func (d DDW0) IsReservedZero() bool {
	return (d.indexFlags&0b0000_0101) == 0 && (d.reservedLaneStatus&0xff00_0000_0000_0000) == 0
}
