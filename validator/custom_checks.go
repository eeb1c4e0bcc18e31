// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validator

import "github.com/go-lpc/itsinspect/rdh"

// CustomChecksConfig holds the user-overridable run expectations (expected
// CDP/trigger counts, trigger period, RDH version). A zero value disables
// every check in it (Enabled fields default false), matching the checks
// TOML's "opt in explicitly" behaviour.
type CustomChecksConfig struct {
	CDPsExpected struct {
		Enabled bool
		Count   uint64
	}
	TriggersPHTExpected struct {
		Enabled bool
		Count   uint64
	}
	RDHVersionExpected struct {
		Enabled bool
		Version uint8
	}
	ITSTriggerPeriod struct {
		Enabled bool
		Period  uint32 // expected delta, in bunch crossings, between consecutive PhT triggers
	}
	Lanes LaneChecksConfig
}

// customChecksState accumulates what the per-CDP custom checks need to see
// across a key's whole stream; results are only reported at Finalize.
type customChecksState struct {
	cdps           uint64
	phtTriggers    uint64
	versionMismatch bool
	badVersion     uint8
	lastPHTBC      uint32
	havePHTBC      bool
	periodErrs     []Error
}

func (s *customChecksState) observe(r rdh.RDH, cfg CustomChecksConfig) {
	s.cdps++

	if cfg.RDHVersionExpected.Enabled && r.HeaderID != cfg.RDHVersionExpected.Version && !s.versionMismatch {
		s.versionMismatch = true
		s.badVersion = r.HeaderID
	}

	if r.IsPhtTrigger() {
		s.phtTrigger(r, cfg)
	}
}

func (s *customChecksState) phtTrigger(r rdh.RDH, cfg CustomChecksConfig) {
	s.phtTriggers++

	if cfg.ITSTriggerPeriod.Enabled {
		bc := r.Orbit*3564 + uint32(r.BC())
		if s.havePHTBC {
			got := bc - s.lastPHTBC
			if got != cfg.ITSTriggerPeriod.Period {
				s.periodErrs = append(s.periodErrs, newErr(r.Offset, "E9101",
					"its_trigger_period mismatch: got=%d want=%d", got, cfg.ITSTriggerPeriod.Period))
			}
		}
		s.lastPHTBC = bc
		s.havePHTBC = true
	}
}

// finalize reports the checks whose verdict can only be known once the
// stream for this key is exhausted.
func (s *customChecksState) finalize(cfg CustomChecksConfig) []Error {
	var errs []Error
	errs = append(errs, s.periodErrs...)

	if s.versionMismatch {
		errs = append(errs, newErr(0, "E9102", "rdh_version_expected violated: saw version=0x%x, want=0x%x", s.badVersion, cfg.RDHVersionExpected.Version))
	}
	if cfg.CDPsExpected.Enabled && s.cdps != cfg.CDPsExpected.Count {
		errs = append(errs, newErr(0, "E9103", "cdps_expected violated: got=%d want=%d", s.cdps, cfg.CDPsExpected.Count))
	}
	if cfg.TriggersPHTExpected.Enabled && s.phtTriggers != cfg.TriggersPHTExpected.Count {
		errs = append(errs, newErr(0, "E9104", "triggers_pht_expected violated: got=%d want=%d", s.phtTriggers, cfg.TriggersPHTExpected.Count))
	}
	return errs
}
