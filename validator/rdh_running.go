// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validator

import "github.com/go-lpc/itsinspect/rdh"

// rdhRunningState tracks the RDH-level running invariants across
// the CDPs of a single routing key.
type rdhRunningState struct {
	started bool

	expectedPage uint16
	lastOrbit    uint32
	lastPacketCounter uint8
	havePacketCounter bool

	// baselinePageIncrement is learned from the first two pages of an HBF.
	// With fewer than two RDHs observed before a terminal (stop_bit=1) page,
	// the increment defaults to 1 until a second RDH is observed.
	baselinePageIncrement uint16
	pagesSeenInHBF        int
	firstPageOfHBF        uint16

	firstTriggerType  uint32
	lastDetectorField uint32
	lastTriggerType   uint32
	lastFeeID         uint16

	pendingOrbitCheck bool // set after a stop_bit=1 page; next orbit must differ
}

func newRDHRunningState() *rdhRunningState {
	return &rdhRunningState{baselinePageIncrement: 1}
}

// step applies the running checks to the next RDH in this key's sequence
// and returns any violations found. It never panics and always advances
// state, so a caller can keep feeding it RDHs after an error.
func (s *rdhRunningState) step(r rdh.RDH) []Error {
	var errs []Error
	offset := r.Offset

	if !s.started {
		s.started = true
		s.expectedPage = 0
		s.pagesSeenInHBF = 0
		s.firstTriggerType = r.TriggerType
		s.firstPageOfHBF = r.PagesCounter
	}

	if r.PagesCounter != 0 {
		if r.Orbit != s.lastOrbit {
			errs = append(errs, newErr(offset, "E10", "pages_counter != 0 but orbit changed (got=%d, want=%d)", r.Orbit, s.lastOrbit))
		}
		if r.TriggerType != s.lastTriggerType {
			errs = append(errs, newErr(offset, "E10", "pages_counter != 0 but trigger_type changed (got=0x%x, want=0x%x)", r.TriggerType, s.lastTriggerType))
		}
		if r.DetectorField != s.lastDetectorField {
			errs = append(errs, newErr(offset, "E10", "pages_counter != 0 but detector_field changed (got=0x%x, want=0x%x)", r.DetectorField, s.lastDetectorField))
		}
		if r.FeeID != s.lastFeeID {
			errs = append(errs, newErr(offset, "E10", "pages_counter != 0 but fee_id changed (got=0x%x, want=0x%x)", r.FeeID, s.lastFeeID))
		}
	}

	if s.pendingOrbitCheck {
		if r.Orbit == s.lastOrbit {
			errs = append(errs, newErr(offset, "E11", "orbit did not change across HBF boundary (orbit=%d)", r.Orbit))
		}
		s.pendingOrbitCheck = false
	}

	switch r.StopBit {
	case 0:
		s.pagesSeenInHBF++
		switch {
		case s.pagesSeenInHBF == 1:
			s.firstPageOfHBF = r.PagesCounter
		case s.pagesSeenInHBF == 2 && r.PagesCounter > s.firstPageOfHBF:
			// learn the increment from the first two observed pages.
			s.baselinePageIncrement = r.PagesCounter - s.firstPageOfHBF
			s.expectedPage = r.PagesCounter
		}
		if r.PagesCounter != s.expectedPage {
			errs = append(errs, newErr(offset, "E12", "pages counter jump (got=%d, want=%d)", r.PagesCounter, s.expectedPage))
		}
		s.expectedPage += s.baselinePageIncrement

	case 1:
		if r.PagesCounter != s.expectedPage {
			errs = append(errs, newErr(offset, "E12", "pages counter jump at stop (got=%d, want=%d)", r.PagesCounter, s.expectedPage))
		}
		s.expectedPage = 0
		s.pagesSeenInHBF = 0
		s.pendingOrbitCheck = true

	default:
		errs = append(errs, newErr(offset, "E13", "stop bit not 0/1 (got=%d)", r.StopBit))
	}

	if s.havePacketCounter {
		next := s.lastPacketCounter + 1
		wrapped := next < s.lastPacketCounter
		if r.PacketCounter != next && !(wrapped && r.PacketCounter < 3) {
			errs = append(errs, newErr(offset, "E14", "packet_counter did not increase monotonically (got=%d, want=%d)", r.PacketCounter, next))
		}
	}
	s.lastPacketCounter = r.PacketCounter
	s.havePacketCounter = true

	s.lastOrbit = r.Orbit
	s.lastTriggerType = r.TriggerType
	s.lastDetectorField = r.DetectorField
	s.lastFeeID = r.FeeID

	return errs
}
