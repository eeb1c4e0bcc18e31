// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validator_test

import (
	"testing"

	"github.com/go-lpc/itsinspect/cdp"
	"github.com/go-lpc/itsinspect/gbt"
	"github.com/go-lpc/itsinspect/rdh"
	"github.com/go-lpc/itsinspect/validator"
)

// scenario bad_cdp_structure: a DDW0 closes a page whose RDH never set
// stop_bit=1. Under `check sanity`, that cross-word inconsistency is out of
// scope (0 errors); under `check all` it raises exactly one E61.
func badStructureCDP() cdp.CDP {
	r := rdh.RDH{PagesCounter: 0, StopBit: 0}

	var payload []byte
	ihw := word(gbt.IDIhw)
	payload = append(payload, ihw[:]...)
	tdh := tdhWord(true, false, true) // no_data -> branch3 directly
	payload = append(payload, tdh[:]...)
	ddw0 := ddw0Word(1)
	payload = append(payload, ddw0[:]...)

	return cdp.CDP{RDH: r, Payload: payload}
}

func TestConsumeCDPSanityOnlySuppressesStructuralChecks(t *testing.T) {
	v := validator.New(cdp.Key{}, validator.Config{SanityOnly: true})
	errs := v.ConsumeCDP(badStructureCDP())
	if len(errs) != 0 {
		t.Fatalf("sanity-only errors = %v, want none", errs)
	}
}

func TestConsumeCDPAllReportsStructuralFault(t *testing.T) {
	v := validator.New(cdp.Key{}, validator.Config{})
	errs := v.ConsumeCDP(badStructureCDP())

	var e61 int
	for _, e := range errs {
		if e.Code == "E61" {
			e61++
		}
	}
	if e61 != 1 {
		t.Fatalf("E61 count = %d, want 1 (errs=%v)", e61, errs)
	}
}
