// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package writer re-emits accepted CDPs byte-for-byte to an --output
// destination, for the --output pass-through path.
package writer // import "github.com/go-lpc/itsinspect/writer"

import (
	"io"

	"github.com/go-lpc/itsinspect/cdp"
	"github.com/go-lpc/itsinspect/rdh"
)

// PassThrough forwards every CDP given to Write, unmodified, to an
// underlying io.Writer. It mirrors dif.Readout's read-then-forward shape,
// minus the CRC: this stream carries none to recompute.
type PassThrough struct {
	w   io.Writer
	buf []byte
}

// NewPassThrough returns a PassThrough writing to w.
func NewPassThrough(w io.Writer) *PassThrough {
	return &PassThrough{w: w, buf: make([]byte, rdh.Size)}
}

// Write serialises c.RDH followed by c.Payload to the underlying writer.
func (p *PassThrough) Write(c cdp.CDP) error {
	buf := rdh.Encode(c.RDH, p.buf)
	if _, err := p.w.Write(buf); err != nil {
		return err
	}
	if len(c.Payload) == 0 {
		return nil
	}
	_, err := p.w.Write(c.Payload)
	return err
}
