// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package validator implements the per-identity protocol checks: RDH
// running invariants, the ITS payload state machine, ALPIDE lane/chip
// checks, and the configurable custom checks.
package validator // import "github.com/go-lpc/itsinspect/validator"

import "fmt"

// Error is a single, precisely-located protocol violation.
//
// Code follows a family-prefix convention (E1x RDH, E3x/E4x/E5x/E6x
// status-word sanity, E7x data word, E8x CDW, E99 unrecognised ID, E9xxx
// custom-check violations).
type Error struct {
	Offset  int64
	Code    string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("0x%x: [%s] %s", e.Offset, e.Code, e.Message)
}

func newErr(offset int64, code, format string, args ...interface{}) Error {
	return Error{Offset: offset, Code: code, Message: fmt.Sprintf(format, args...)}
}
