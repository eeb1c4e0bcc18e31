// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats accumulates per-run counters and protocol errors, and
// compares them against a reference run.
package stats // import "github.com/go-lpc/itsinspect/stats"

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-lpc/itsinspect/rdh"
	"github.com/go-lpc/itsinspect/validator"
)

// Counters is the flat set of per-run counts tracked during a check run.
type Counters struct {
	RDHsSeen     uint64            `json:"rdhs_seen" toml:"rdhs_seen"`
	CDPsSeen     uint64            `json:"cdps_seen" toml:"cdps_seen"`
	HBFsSeen     uint64            `json:"hbfs_seen" toml:"hbfs_seen"`
	ErrorsByCode map[string]uint64 `json:"errors_by_code" toml:"errors_by_code"`
	LayerCounts  map[string]uint64 `json:"layer_counts" toml:"layer_counts"`

	// LinksSeen, FeesSeen and TriggerTypesSeen count the distinct GBT
	// link ids, FEE ids, and trigger_type values observed across the run.
	LinksSeen        uint64            `json:"links_seen" toml:"links_seen"`
	FeesSeen         uint64            `json:"fees_seen" toml:"fees_seen"`
	TriggerTypesSeen uint64            `json:"trigger_types_seen" toml:"trigger_types_seen"`
	TriggerTypes     map[string]uint64 `json:"trigger_types" toml:"trigger_types"`
	// SystemID is inferred from the first RDH seen this run (0 if none).
	SystemID uint8 `json:"system_id" toml:"system_id"`
}

func newCounters() Counters {
	return Counters{
		ErrorsByCode: make(map[string]uint64),
		LayerCounts:  make(map[string]uint64),
		TriggerTypes: make(map[string]uint64),
	}
}

// Set is the live, concurrency-safe aggregator fed by every Validator
// goroutine and consumed at the end of a run.
//
// Its internal locking follows the surrounding codebase's preference for explicit
// synchronisation primitives over ad-hoc channel fan-in when the shared
// state is a simple accumulator (compare `conddb.DB`'s single *sql.DB
// guarded implicitly by the driver).
type Set struct {
	mu       sync.Mutex
	counters Counters
	errs     []validator.Error // kept sorted by Offset

	links       map[uint8]bool
	fees        map[uint16]bool
	sawSystemID bool
}

// NewSet returns an empty, ready-to-use Set.
func NewSet() *Set {
	return &Set{
		counters: newCounters(),
		links:    make(map[uint8]bool),
		fees:     make(map[uint16]bool),
	}
}

// AddRDH records one decoded RDH: its layer, GBT link, FEE id and trigger
// type, plus the run's system_id, inferred from the first RDH seen.
func (s *Set) AddRDH(r rdh.RDH) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.RDHsSeen++
	s.counters.LayerCounts[layerKey(r.Layer())]++

	if !s.links[r.LinkID] {
		s.links[r.LinkID] = true
		s.counters.LinksSeen++
	}
	if !s.fees[r.FeeID] {
		s.fees[r.FeeID] = true
		s.counters.FeesSeen++
	}
	key := fmt.Sprintf("0x%x", r.TriggerType)
	if _, ok := s.counters.TriggerTypes[key]; !ok {
		s.counters.TriggerTypesSeen++
	}
	s.counters.TriggerTypes[key]++

	if !s.sawSystemID {
		s.sawSystemID = true
		s.counters.SystemID = r.SystemID
	}
}

func layerKey(layer uint8) string { return fmt.Sprintf("layer%d", layer) }

// AddCDP records one consumed CDP.
func (s *Set) AddCDP() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.CDPsSeen++
}

// AddHBF records one completed heartbeat frame.
func (s *Set) AddHBF() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.HBFsSeen++
}

// AddErrors inserts errs into the ordered error buffer and tallies their
// codes. Insertion keeps the buffer sorted by Offset, the way a merge of
// per-shard error streams needs to be before it's printed.
func (s *Set) AddErrors(errs []validator.Error) {
	if len(errs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range errs {
		s.counters.ErrorsByCode[e.Code]++
		i := sort.Search(len(s.errs), func(i int) bool { return s.errs[i].Offset >= e.Offset })
		s.errs = append(s.errs, validator.Error{})
		copy(s.errs[i+1:], s.errs[i:])
		s.errs[i] = e
	}
}

// Snapshot returns a copy of the counters accumulated so far, safe to read
// concurrently with further Add* calls.
func (s *Set) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := newCounters()
	out.RDHsSeen = s.counters.RDHsSeen
	out.CDPsSeen = s.counters.CDPsSeen
	out.HBFsSeen = s.counters.HBFsSeen
	out.LinksSeen = s.counters.LinksSeen
	out.FeesSeen = s.counters.FeesSeen
	out.TriggerTypesSeen = s.counters.TriggerTypesSeen
	out.SystemID = s.counters.SystemID
	for k, v := range s.counters.ErrorsByCode {
		out.ErrorsByCode[k] = v
	}
	for k, v := range s.counters.LayerCounts {
		out.LayerCounts[k] = v
	}
	for k, v := range s.counters.TriggerTypes {
		out.TriggerTypes[k] = v
	}
	return out
}

// Errors returns the errors accumulated so far, in ascending offset order.
// The returned slice is owned by the caller.
func (s *Set) Errors() []validator.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]validator.Error, len(s.errs))
	copy(out, s.errs)
	return out
}

// ErrorCount reports the total number of errors accumulated so far.
func (s *Set) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

// Mismatch describes one counter that disagrees with a reference run.
type Mismatch struct {
	Field string
	Got   uint64
	Want  uint64
}

// Compare reports every counter in got that disagrees with want
// (the --input-stats-file reference comparison). Map-valued counters are compared
// key-by-key; a key present on one side only counts as a mismatch against
// an implicit zero on the other.
func Compare(got, want Counters) []Mismatch {
	var out []Mismatch
	add := func(field string, g, w uint64) {
		if g != w {
			out = append(out, Mismatch{Field: field, Got: g, Want: w})
		}
	}
	add("rdhs_seen", got.RDHsSeen, want.RDHsSeen)
	add("cdps_seen", got.CDPsSeen, want.CDPsSeen)
	add("hbfs_seen", got.HBFsSeen, want.HBFsSeen)
	add("links_seen", got.LinksSeen, want.LinksSeen)
	add("fees_seen", got.FeesSeen, want.FeesSeen)
	add("trigger_types_seen", got.TriggerTypesSeen, want.TriggerTypesSeen)
	add("system_id", uint64(got.SystemID), uint64(want.SystemID))

	addMap := func(field string, g, w map[string]uint64) {
		codes := map[string]bool{}
		for c := range g {
			codes[c] = true
		}
		for c := range w {
			codes[c] = true
		}
		sorted := make([]string, 0, len(codes))
		for c := range codes {
			sorted = append(sorted, c)
		}
		sort.Strings(sorted)
		for _, c := range sorted {
			add(field+"["+c+"]", g[c], w[c])
		}
	}
	addMap("errors_by_code", got.ErrorsByCode, want.ErrorsByCode)
	addMap("layer_counts", got.LayerCounts, want.LayerCounts)
	addMap("trigger_types", got.TriggerTypes, want.TriggerTypes)
	return out
}
