// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cdp defines the CRU Data Packet: one RDH paired with its payload.
package cdp // import "github.com/go-lpc/itsinspect/cdp"

import "github.com/go-lpc/itsinspect/rdh"

// CDP is one RDH plus its payload bytes (length RDH.PayloadLen()).
//
// Payload is borrowed: it is valid only until the owning validator releases
// it (by returning it to a free-list or letting it be garbage-collected).
// Readers that only need RDH-level fields (cheap "view" modes) should avoid
// touching Payload at all so the allocation can be skipped upstream.
type CDP struct {
	RDH     rdh.RDH
	Payload []byte
}

// Key identifies the routing identity a CDP is dispatched by: a GBT link,
// a FEE, or an ITS (layer, stave) pair, depending on the active mode.
type Key struct {
	Link       uint8
	Fee        uint16
	LayerStave [2]uint8
}

// KeyMode selects which field of a CDP determines its routing Key.
type KeyMode int

const (
	KeyByLink KeyMode = iota
	KeyByFee
	KeyByLayerStave
)

// RouteKey computes the dispatch Key for c under mode.
func RouteKey(c CDP, mode KeyMode) Key {
	switch mode {
	case KeyByFee:
		return Key{Fee: c.RDH.FeeID}
	case KeyByLayerStave:
		return Key{LayerStave: [2]uint8{c.RDH.Layer(), c.RDH.Stave()}}
	default:
		return Key{Link: c.RDH.LinkID}
	}
}

// IsHBFStart reports whether c begins a new heartbeat frame.
func IsHBFStart(c CDP) bool { return c.RDH.PagesCounter == 0 && c.RDH.StopBit == 0 }

// IsHBFEnd reports whether c ends its heartbeat frame.
func IsHBFEnd(c CDP) bool { return c.RDH.StopBit == 1 }
