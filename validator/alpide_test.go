// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validator

import "testing"

func chipStream(chipID, bunchCounter uint8) []byte {
	return []byte{alpideChipHeader | chipID, bunchCounter, alpideChipTrailer}
}

func TestDecodeChipsHeaderAndBC(t *testing.T) {
	l := &laneFrame{laneID: 0}
	l.raw = append(l.raw, chipStream(0, 42)...)
	l.decodeChips()

	if len(l.chips) != 1 {
		t.Fatalf("got %d chips, want 1", len(l.chips))
	}
	if l.chips[0].chipID != 0 || l.chips[0].bunchCounter != 42 || !l.chips[0].haveBC {
		t.Errorf("chip = %+v, want {chipID:0 bunchCounter:42 haveBC:true}", l.chips[0])
	}
}

func TestCheckIBLanesValidTriplet(t *testing.T) {
	lanes := make([]*laneFrame, 0, 3)
	for _, id := range []uint8{0, 1, 2} {
		l := &laneFrame{laneID: id}
		l.raw = append(l.raw, chipStream(id, 7)...)
		l.decodeChips()
		lanes = append(lanes, l)
	}
	if errs := checkLanes(0, 0, lanes, DefaultLaneChecksConfig()); len(errs) != 0 {
		t.Errorf("valid IB triplet flagged: %v", errs)
	}
}

func TestCheckIBLanesBadTriplet(t *testing.T) {
	lanes := make([]*laneFrame, 0, 3)
	for _, id := range []uint8{0, 1, 3} { // not one of the legal triplets
		l := &laneFrame{laneID: id}
		l.raw = append(l.raw, chipStream(id, 7)...)
		l.decodeChips()
		lanes = append(lanes, l)
	}
	errs := checkLanes(0, 0, lanes, DefaultLaneChecksConfig())
	if !hasCode(errs, "E9002") {
		t.Errorf("errs = %v, want E9002", errs)
	}
}

func TestCheckIBChipIDMustMatchLane(t *testing.T) {
	lanes := make([]*laneFrame, 0, 3)
	for _, id := range []uint8{0, 1, 2} {
		l := &laneFrame{laneID: id}
		chip := id
		if id == 1 {
			chip = 5 // wrong: chip id must equal lane id on IB
		}
		l.raw = append(l.raw, chipStream(chip, 7)...)
		l.decodeChips()
		lanes = append(lanes, l)
	}
	errs := checkLanes(0, 0, lanes, DefaultLaneChecksConfig())
	if !hasCode(errs, "E9003") {
		t.Errorf("errs = %v, want E9003", errs)
	}
}

func TestCheckBunchCounterMismatch(t *testing.T) {
	lanes := make([]*laneFrame, 0, 3)
	for i, id := range []uint8{0, 1, 2} {
		l := &laneFrame{laneID: id}
		bc := uint8(7)
		if i == 2 {
			bc = 8 // disagrees with the other two
		}
		l.raw = append(l.raw, chipStream(id, bc)...)
		l.decodeChips()
		lanes = append(lanes, l)
	}
	errs := checkLanes(0, 0, lanes, DefaultLaneChecksConfig())
	if !hasCode(errs, "E9006") {
		t.Errorf("errs = %v, want E9006", errs)
	}
}

func TestCheckOBChipOrder(t *testing.T) {
	l := &laneFrame{laneID: 0}
	for chip := uint8(0); chip <= 6; chip++ {
		l.raw = append(l.raw, chipStream(chip, 3)...)
	}
	l.decodeChips()
	errs := checkOBChips(0, []*laneFrame{l}, DefaultLaneChecksConfig())
	if len(errs) != 0 {
		t.Errorf("valid OB chip order flagged: %v", errs)
	}
}

func TestCheckOBChipOrderWrongCount(t *testing.T) {
	l := &laneFrame{laneID: 0}
	for chip := uint8(0); chip <= 3; chip++ { // only 4 chips instead of 7
		l.raw = append(l.raw, chipStream(chip, 3)...)
	}
	l.decodeChips()
	errs := checkOBChips(0, []*laneFrame{l}, DefaultLaneChecksConfig())
	if !hasCode(errs, "E9004") {
		t.Errorf("errs = %v, want E9004", errs)
	}
}

func hasCode(errs []Error, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}
