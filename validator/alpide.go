// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validator

import (
	"fmt"
	"sort"

	"github.com/go-lpc/itsinspect/gbt"
)

// ALPIDE chip-stream marker bytes (ALPIDE Chip data; bit layouts
// reproduced from the upstream ALPIDE chip readout protocol).
const (
	alpideChipHeader     = 0xa0 // 1010_<chip_id[3:0]>, followed by a bunch-counter byte
	alpideChipEmptyFrame = 0xe0 // 1110_<chip_id[3:0]>, followed by a bunch-counter byte
	alpideChipTrailer    = 0xb0 // 1011_<readout_flags[3:0]>
	alpideRegionHeader   = 0xc0 // 110<region_id[4:0]>
	alpideDataShort      = 0x40 // 01<encoder_id[3:0]>, 1 more byte follows
	alpideDataLong       = 0x00 // 00<encoder_id[3:0]>, 2 more bytes follow
	alpideBusyOn         = 0xf0
	alpideBusyOff        = 0xf1
)

// chipFrame holds what was observed for a single ALPIDE chip within one
// readout frame.
type chipFrame struct {
	chipID        uint8
	bunchCounter  uint8
	haveBC        bool
	readoutFlags  uint8
}

// laneFrame accumulates the raw data-word payload bytes of one lane across
// a readout frame, in arrival order, and the chip frames decoded from them.
type laneFrame struct {
	laneID uint8
	raw    []byte
	chips  []chipFrame
	fatal  bool // lane self-reported a fatal status in its TDT/DDW lane-status bits
}

// decodeChips walks l.raw the way AlpideFrameDecoder.process does: a chip
// header/empty-frame byte carries the chip id in its low nibble and is
// always followed by one bunch-counter byte; other ALPIDE words are
// skipped by their fixed additional-byte count.
func (l *laneFrame) decodeChips() {
	skip := 0
	headerSeen := false
	var lastChipID uint8
	nextIsBC := false

	find := func(id uint8) *chipFrame {
		for i := range l.chips {
			if l.chips[i].chipID == id {
				return &l.chips[i]
			}
		}
		l.chips = append(l.chips, chipFrame{chipID: id})
		return &l.chips[len(l.chips)-1]
	}

	for _, b := range l.raw {
		if skip > 0 {
			skip--
			continue
		}
		if nextIsBC {
			cf := find(lastChipID)
			cf.bunchCounter = b
			cf.haveBC = true
			nextIsBC = false
			continue
		}
		if !headerSeen && b == 0 {
			continue // IDLE
		}

		switch {
		case b == alpideBusyOn, b == alpideBusyOff:
			// informational only.
		case b&0xf0 == alpideChipHeader:
			headerSeen = true
			lastChipID = b & 0x0f
			nextIsBC = true
		case b&0xf0 == alpideChipEmptyFrame:
			headerSeen = false
			lastChipID = b & 0x0f
			nextIsBC = true
		case b&0xf0 == alpideChipTrailer:
			if headerSeen {
				cf := find(lastChipID)
				cf.readoutFlags = b & 0x0f
			}
			headerSeen = false
		case b&0xe0 == alpideRegionHeader:
			// no further action needed.
		case b&0xc0 == alpideDataShort:
			skip = 1
		case b&0xc0 == alpideDataLong:
			skip = 2
		}
	}
}

// ibLaneGroups are the three legal inner-barrel lane triplets.
var ibLaneGroups = [][3]uint8{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}}

// LaneChecksConfig carries the overridable parts of the ALPIDE lane/chip
// checks (chip_orders_ob / chip_count_ob).
type LaneChecksConfig struct {
	ChipOrdersOB [][]uint8
	ChipCountOB  uint8
}

// DefaultLaneChecksConfig is the grammar's built-in default: OB lanes carry
// 7 chips, in ascending order [0..6] or [9..14].
func DefaultLaneChecksConfig() LaneChecksConfig {
	return LaneChecksConfig{
		ChipOrdersOB: [][]uint8{
			{0, 1, 2, 3, 4, 5, 6},
			{9, 10, 11, 12, 13, 14},
		},
		ChipCountOB: 7,
	}
}

// checkLanes validates lane grouping, chip ids, and bunch-counter agreement
// for one completed readout frame. layer selects the
// expected lane count/grouping: IB (layer<3), ML (layer==3||layer==4), OL
// (layer>=5).
func checkLanes(offset int64, layer uint8, lanes []*laneFrame, cfg LaneChecksConfig) []Error {
	var errs []Error

	active := lanes[:0:0]
	for _, l := range lanes {
		if !l.fatal {
			active = append(active, l)
		}
	}

	switch {
	case layer < 3: // IB
		errs = append(errs, checkIBLanes(offset, active)...)
	case layer == 3 || layer == 4: // ML
		errs = append(errs, checkLaneCount(offset, active, 8, "ML")...)
		errs = append(errs, checkOBChips(offset, active, cfg)...)
	default: // OL
		errs = append(errs, checkLaneCount(offset, active, 14, "OL")...)
		errs = append(errs, checkOBChips(offset, active, cfg)...)
	}

	errs = append(errs, checkBunchCounters(offset, active)...)
	return errs
}

func checkIBLanes(offset int64, lanes []*laneFrame) []Error {
	var errs []Error
	if len(lanes) != 3 {
		errs = append(errs, newErr(offset, "E9001", "IB readout frame has %d active lanes, want 3", len(lanes)))
		return errs
	}
	ids := make([]uint8, 0, 3)
	for _, l := range lanes {
		ids = append(ids, l.laneID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ok := false
	for _, grp := range ibLaneGroups {
		if ids[0] == grp[0] && ids[1] == grp[1] && ids[2] == grp[2] {
			ok = true
			break
		}
	}
	if !ok {
		errs = append(errs, newErr(offset, "E9002", "IB lanes %v do not match any legal triplet", ids))
	}

	for _, l := range lanes {
		for _, c := range l.chips {
			if c.chipID != l.laneID {
				errs = append(errs, newErr(offset, "E9003", "IB lane %d carries chip id %d, want %d", l.laneID, c.chipID, l.laneID))
			}
		}
	}
	return errs
}

func checkLaneCount(offset int64, lanes []*laneFrame, want int, label string) []Error {
	if len(lanes) != want {
		return []Error{newErr(offset, "E9001", "%s readout frame has %d active lanes, want %d", label, len(lanes), want)}
	}
	return nil
}

func checkOBChips(offset int64, lanes []*laneFrame, cfg LaneChecksConfig) []Error {
	var errs []Error
	for _, l := range lanes {
		if cfg.ChipCountOB != 0 && uint8(len(l.chips)) != cfg.ChipCountOB {
			errs = append(errs, newErr(offset, "E9004", "OB lane %d carries %d chips, want %d", l.laneID, len(l.chips), cfg.ChipCountOB))
			continue
		}
		ids := make([]uint8, 0, len(l.chips))
		for _, c := range l.chips {
			ids = append(ids, c.chipID)
		}

		matched := false
		for _, order := range cfg.ChipOrdersOB {
			if equalChipOrder(ids, order) {
				matched = true
				break
			}
		}
		if !matched {
			errs = append(errs, newErr(offset, "E9005", "OB lane %d chip order %v matches no configured legal ordering", l.laneID, ids))
		}
	}
	return errs
}

func equalChipOrder(got, want []uint8) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func checkBunchCounters(offset int64, lanes []*laneFrame) []Error {
	seen := map[uint8][]uint8{} // bc -> chip ids
	for _, l := range lanes {
		for _, c := range l.chips {
			if !c.haveBC {
				continue
			}
			seen[c.bunchCounter] = append(seen[c.bunchCounter], c.chipID)
		}
	}
	if len(seen) <= 1 {
		return nil
	}
	return []Error{newErr(offset, "E9006", "bunch counter mismatch across chips: %s", formatBCMismatch(seen))}
}

func formatBCMismatch(seen map[uint8][]uint8) string {
	bcs := make([]uint8, 0, len(seen))
	for bc := range seen {
		bcs = append(bcs, bc)
	}
	sort.Slice(bcs, func(i, j int) bool { return bcs[i] < bcs[j] })

	s := ""
	for _, bc := range bcs {
		s += fmt.Sprintf("bc=%d chips=%v; ", bc, seen[bc])
	}
	return s
}

// classifyDataWordLane derives a lane index from a data word's trailing ID
// byte. For the inner barrel the ID range [0x20,0x28] is itself the lane
// id. For the middle/outer layers the byte ranges are
// fragmented across cable groups; this inspector folds each word's class
// range into a dense 0-based lane index within that class, which is
// sufficient to group words by lane and check counts/order, though it does
// not reconstruct the detector's own physical lane numbering for ML/OL.
// LaneIndex exposes classifyDataWordLane's id-to-lane mapping for callers
// outside this package (the its-readout-frames-data view groups raw data
// words by lane without running the full validator stack).
func LaneIndex(id uint8) (lane uint8, class gbt.LaneClass) {
	return classifyDataWordLane(id)
}

func classifyDataWordLane(id uint8) (lane uint8, class gbt.LaneClass) {
	class = gbt.DataWordClass(id)
	switch class {
	case gbt.ClassIB:
		return id - 0x20, class
	case gbt.ClassML:
		return obLaneIndex(id, []uint8{0x43, 0x48, 0x53, 0x58}, []uint8{4, 4, 4, 4}), class
	case gbt.ClassOL:
		return obLaneIndex(id, []uint8{0x40, 0x48, 0x50, 0x58}, []uint8{7, 7, 7, 7}), class
	default:
		return 0, class
	}
}

func obLaneIndex(id uint8, bases []uint8, widths []uint8) uint8 {
	var acc uint8
	for i, base := range bases {
		if id >= base && id < base+widths[i] {
			return acc + (id - base)
		}
		acc += widths[i]
	}
	return acc
}
