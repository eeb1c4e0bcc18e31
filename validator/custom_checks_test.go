// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validator

import (
	"testing"

	"github.com/go-lpc/itsinspect/rdh"
)

func TestCustomChecksCDPsExpected(t *testing.T) {
	var cfg CustomChecksConfig
	cfg.CDPsExpected.Enabled = true
	cfg.CDPsExpected.Count = 3

	var s customChecksState
	for i := 0; i < 2; i++ {
		s.observe(rdh.RDH{}, cfg)
	}
	errs := s.finalize(cfg)
	if !hasCode(errs, "E9103") {
		t.Errorf("errs = %v, want E9103", errs)
	}
}

func TestCustomChecksRDHVersionExpected(t *testing.T) {
	var cfg CustomChecksConfig
	cfg.RDHVersionExpected.Enabled = true
	cfg.RDHVersionExpected.Version = 7

	var s customChecksState
	s.observe(rdh.RDH{HeaderID: 7}, cfg)
	s.observe(rdh.RDH{HeaderID: 6}, cfg)

	errs := s.finalize(cfg)
	if !hasCode(errs, "E9102") {
		t.Errorf("errs = %v, want E9102", errs)
	}
}

func TestCustomChecksITSTriggerPeriod(t *testing.T) {
	var cfg CustomChecksConfig
	cfg.ITSTriggerPeriod.Enabled = true
	cfg.ITSTriggerPeriod.Period = 100

	var s customChecksState
	s.observe(rdh.RDH{TriggerType: 1 << 4, Orbit: 0, BCReserved: 0}, cfg)
	s.observe(rdh.RDH{TriggerType: 1 << 4, Orbit: 0, BCReserved: 50}, cfg) // wrong delta

	errs := s.finalize(cfg)
	if !hasCode(errs, "E9101") {
		t.Errorf("errs = %v, want E9101", errs)
	}
}

func TestCustomChecksDisabledProduceNothing(t *testing.T) {
	var cfg CustomChecksConfig
	var s customChecksState
	s.observe(rdh.RDH{HeaderID: 99}, cfg)
	if errs := s.finalize(cfg); len(errs) != 0 {
		t.Errorf("disabled checks produced errors: %v", errs)
	}
}
