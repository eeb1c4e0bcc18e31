// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rdh decodes and validates ALICE Readout Data Headers (RDH).
//
// An RDH is a fixed 64-byte record, organised as four 16-byte sub-headers
// (RDH0..RDH3), that frames every CRU Data Packet in an ITS readout stream.
// Field offsets and bit layouts are reproduced from the upstream ALICE
// readout system documentation; see RDH0..RDH3 below for the exact packing.
package rdh // import "github.com/go-lpc/itsinspect/rdh"

import (
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// Size is the fixed size, in bytes, of an RDH.
const Size = 64

// MaxBC is the exclusive upper bound of a legal bunch-crossing counter.
const MaxBC = 0xdeb

// SystemID values recognised by the inspector.
const (
	SystemITS = 0x20
)

// RDH is a decoded Readout Data Header.
//
// The two known header versions (6 and 7) share this exact 64-byte layout;
// nothing in the currently defined fields differs between them, so rather
// than carrying two concrete struct types (as the source material does via
// a phantom type parameter) a single struct is used and HeaderID records
// which version produced it.
type RDH struct {
	// RDH0
	HeaderID    uint8
	HeaderSize  uint8
	FeeID       uint16
	PriorityBit uint8
	SystemID    uint8
	Reserved0   uint16

	// RDH0 tail
	OffsetToNext  uint16
	MemorySize    uint16
	LinkID        uint8
	PacketCounter uint8
	CruIDDw       uint16 // 12 bit cru_id, 4 bit dw

	// RDH1
	BCReserved uint32 // 12 bit bc, 20 bit reserved
	Orbit      uint32

	// RDH1 tail
	DataFormatReserved uint64 // 8 bit data_format, 56 bit reserved0

	// RDH2
	TriggerType   uint32
	PagesCounter  uint16
	StopBit       uint8
	Rdh2Reserved0 uint8
	Reserved1     uint64

	// RDH3
	DetectorField uint32 // bits [23:4] reserved
	ParBit        uint16
	Rdh3Reserved0 uint16
	Reserved2     uint64

	// Offset is the byte offset, in the source stream, at which this RDH
	// starts. Populated by the Reader, not read from the wire.
	Offset int64
}

// CruID returns the 12 least-significant bits of CruIDDw.
func (r RDH) CruID() uint16 { return r.CruIDDw & 0x0fff }

// Dw returns the 4 most-significant bits of CruIDDw.
func (r RDH) Dw() uint8 { return uint8(r.CruIDDw >> 12) }

// DataFormat returns the 8 least-significant bits of DataFormatReserved.
func (r RDH) DataFormat() uint8 { return uint8(r.DataFormatReserved & 0xff) }

// DataFormatReservedBits returns the 56 reserved bits of DataFormatReserved.
func (r RDH) DataFormatReservedBits() uint64 { return r.DataFormatReserved >> 8 }

// BC returns the 12-bit bunch crossing counter.
func (r RDH) BC() uint16 { return uint16(r.BCReserved & 0x0fff) }

// Rdh1Reserved returns the 20 reserved bits alongside BC.
func (r RDH) Rdh1Reserved() uint32 { return r.BCReserved >> 12 }

// Layer returns the 3-bit detector layer (0..6) encoded in FeeID.
func (r RDH) Layer() uint8 { return uint8((r.FeeID >> 12) & 0x7) }

// FiberUplink returns the 2-bit fiber/uplink field encoded in FeeID.
func (r RDH) FiberUplink() uint8 { return uint8((r.FeeID >> 8) & 0x3) }

// Stave returns the 6-bit stave number (0..47) encoded in FeeID.
func (r RDH) Stave() uint8 { return uint8(r.FeeID & 0x3f) }

// DetectorFieldReserved returns bits [23:4] of DetectorField, which must be
// zero in a well-formed stream.
func (r RDH) DetectorFieldReserved() uint32 { return (r.DetectorField >> 4) & 0xfffff }

// PayloadLen returns the number of payload bytes that follow this RDH, i.e.
// OffsetToNext - Size.
func (r RDH) PayloadLen() int { return int(r.OffsetToNext) - Size }

// IsPhtTrigger reports whether bit 4 of TriggerType (the physics trigger
// flag) is set.
func (r RDH) IsPhtTrigger() bool { return r.TriggerType>>4&0x1 == 1 }

// Decode reads exactly Size bytes from r and populates rdh. buf must be at
// least Size bytes long and is used as scratch space; callers that decode
// many RDHs in a loop should reuse one buffer to avoid repeated allocation.
func Decode(r io.Reader, buf []byte, out *RDH) error {
	if len(buf) < Size {
		return xerrors.Errorf("rdh: scratch buffer too small (got=%d, want>=%d)", len(buf), Size)
	}
	buf = buf[:Size]
	if _, err := io.ReadFull(r, buf); err != nil {
		return err // deliberately unwrapped: callers distinguish io.EOF/io.ErrUnexpectedEOF
	}

	le := binary.LittleEndian

	out.HeaderID = buf[0]
	out.HeaderSize = buf[1]
	out.FeeID = le.Uint16(buf[2:4])
	out.PriorityBit = buf[4]
	out.SystemID = buf[5]
	out.Reserved0 = le.Uint16(buf[6:8])

	out.OffsetToNext = le.Uint16(buf[8:10])
	out.MemorySize = le.Uint16(buf[10:12])
	out.LinkID = buf[12]
	out.PacketCounter = buf[13]
	out.CruIDDw = le.Uint16(buf[14:16])

	out.BCReserved = le.Uint32(buf[16:20])
	out.Orbit = le.Uint32(buf[20:24])
	out.DataFormatReserved = le.Uint64(buf[24:32])

	out.TriggerType = le.Uint32(buf[32:36])
	out.PagesCounter = le.Uint16(buf[36:38])
	out.StopBit = buf[38]
	out.Rdh2Reserved0 = buf[39]
	out.Reserved1 = le.Uint64(buf[40:48])

	out.DetectorField = le.Uint32(buf[48:52])
	out.ParBit = le.Uint16(buf[52:54])
	out.Rdh3Reserved0 = le.Uint16(buf[54:56])
	out.Reserved2 = le.Uint64(buf[56:64])

	return nil
}

// Encode serialises rdh back into its 64-byte wire form, writing into buf
// when it holds at least Size bytes and into a freshly allocated slice
// otherwise. It exists chiefly to exercise the
// round-trip law `Decode(Encode(x)) == x` in tests.
func Encode(r RDH, buf []byte) []byte {
	if len(buf) < Size {
		buf = make([]byte, Size)
	}
	buf = buf[:Size]
	le := binary.LittleEndian

	buf[0] = r.HeaderID
	buf[1] = r.HeaderSize
	le.PutUint16(buf[2:4], r.FeeID)
	buf[4] = r.PriorityBit
	buf[5] = r.SystemID
	le.PutUint16(buf[6:8], r.Reserved0)

	le.PutUint16(buf[8:10], r.OffsetToNext)
	le.PutUint16(buf[10:12], r.MemorySize)
	buf[12] = r.LinkID
	buf[13] = r.PacketCounter
	le.PutUint16(buf[14:16], r.CruIDDw)

	le.PutUint32(buf[16:20], r.BCReserved)
	le.PutUint32(buf[20:24], r.Orbit)
	le.PutUint64(buf[24:32], r.DataFormatReserved)

	le.PutUint32(buf[32:36], r.TriggerType)
	le.PutUint16(buf[36:38], r.PagesCounter)
	buf[38] = r.StopBit
	buf[39] = r.Rdh2Reserved0
	le.PutUint64(buf[40:48], r.Reserved1)

	le.PutUint32(buf[48:52], r.DetectorField)
	le.PutUint16(buf[52:54], r.ParBit)
	le.PutUint16(buf[54:56], r.Rdh3Reserved0)
	le.PutUint64(buf[56:64], r.Reserved2)

	return buf
}

// SanityErrors returns every self-contained sanity violation of r: fields
// that must equal fixed constants or be zero, independent of any other RDH
// in the stream. Running invariants (page counters, orbit continuity, ...)
// live in package validator, since they need cross-RDH state.
func SanityErrors(r RDH) []string {
	var errs []string
	if r.HeaderSize != Size {
		errs = append(errs, "header size")
	}
	if r.Reserved0 != 0 {
		errs = append(errs, "RDH0 reserved0")
	}
	if r.Rdh1Reserved() != 0 {
		errs = append(errs, "RDH1 reserved0")
	}
	if r.DataFormatReservedBits() != 0 {
		errs = append(errs, "data format reserved")
	}
	if r.Reserved1 != 0 {
		errs = append(errs, "RDH2 reserved1")
	}
	if r.Rdh3Reserved0 != 0 {
		errs = append(errs, "RDH3 reserved0")
	}
	if r.Reserved2 != 0 {
		errs = append(errs, "RDH3 reserved2")
	}
	if r.DetectorFieldReserved() != 0 {
		errs = append(errs, "detector field reserved")
	}
	if r.TriggerType == 0 {
		errs = append(errs, "trigger type")
	}
	if r.BC() >= MaxBC {
		errs = append(errs, "bc")
	}
	if r.StopBit > 1 {
		errs = append(errs, "stop bit")
	}
	if r.DataFormat() > 2 {
		errs = append(errs, "data format")
	}
	if r.PayloadLen() < 0 || r.PayloadLen() > 20480 {
		errs = append(errs, "offset to next")
	}
	return errs
}
