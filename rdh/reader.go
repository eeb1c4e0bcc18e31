// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rdh

import (
	"io"

	"golang.org/x/xerrors"
)

// ErrUnsupportedHeaderVersion is returned by NextRDHOnly when the very
// first RDH decoded from the stream does not carry a recognised
// header_id (6 or 7). It is fatal: callers must stop decoding.
var ErrUnsupportedHeaderVersion = xerrors.New("rdh: unsupported header version")

// HeaderVersionMismatch records a later RDH whose header_id does not
// match the version established by the stream's first RDH. Unlike
// ErrUnsupportedHeaderVersion this is a continuable sanity violation:
// decoding carries on, and the caller reports it as such.
type HeaderVersionMismatch struct {
	Offset int64
	Got    uint8
	Want   uint8
}

// Reader decodes a sequence of RDH+payload CDPs from an underlying byte
// stream, the way dif.Decoder elsewhere in this codebase wraps an
// io.Reader with a small reusable scratch buffer and offset tracking.
type Reader struct {
	r      io.Reader
	buf    []byte
	offset int64

	haveVersion bool
	version     uint8
	mismatches  []HeaderVersionMismatch
}

// NewReader returns a Reader decoding from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, Size)}
}

// NextRDHOnly decodes and returns the next RDH, leaving its payload
// unread in the stream (the caller is responsible for skipping or
// consuming exactly PayloadLen() bytes before calling NextRDHOnly again).
//
// The very first RDH decoded from the stream fixes the header version for
// the rest of it: if that first header_id is not 6 or 7, NextRDHOnly
// returns ErrUnsupportedHeaderVersion and the caller must abort. Every
// later RDH whose header_id differs from that first one is recorded as a
// HeaderVersionMismatch, retrievable via TakeHeaderMismatches, without
// stopping decoding.
func (dec *Reader) NextRDHOnly() (RDH, error) {
	var out RDH
	if err := Decode(dec.r, dec.buf, &out); err != nil {
		return out, err // io.EOF/io.ErrUnexpectedEOF deliberately unwrapped
	}
	out.Offset = dec.offset
	dec.offset += int64(Size)

	if !dec.haveVersion {
		dec.haveVersion = true
		dec.version = out.HeaderID
		if out.HeaderID != 6 && out.HeaderID != 7 {
			return out, xerrors.Errorf("rdh: header_id=%d in first RDH: %w", out.HeaderID, ErrUnsupportedHeaderVersion)
		}
	} else if out.HeaderID != dec.version {
		dec.mismatches = append(dec.mismatches, HeaderVersionMismatch{
			Offset: out.Offset,
			Got:    out.HeaderID,
			Want:   dec.version,
		})
	}

	return out, nil
}

// TakeHeaderMismatches returns every HeaderVersionMismatch accumulated
// since the last call and clears the internal buffer.
func (dec *Reader) TakeHeaderMismatches() []HeaderVersionMismatch {
	m := dec.mismatches
	dec.mismatches = nil
	return m
}

// NextCDP decodes the next RDH and its full payload.
func (dec *Reader) NextCDP() (RDH, []byte, error) {
	head, err := dec.NextRDHOnly()
	if err != nil {
		return head, nil, err
	}

	n := head.PayloadLen()
	if n < 0 {
		return head, nil, xerrors.Errorf("rdh: negative payload length at offset 0x%x (offset_to_next=%d)", head.Offset, head.OffsetToNext)
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(dec.r, payload); err != nil {
			return head, nil, xerrors.Errorf("rdh: could not read payload at offset 0x%x: %w", head.Offset, err)
		}
	}
	dec.offset += int64(n)
	return head, payload, nil
}
