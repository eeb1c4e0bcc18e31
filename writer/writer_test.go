// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package writer_test

import (
	"bytes"
	"testing"

	"github.com/go-lpc/itsinspect/cdp"
	"github.com/go-lpc/itsinspect/rdh"
	"github.com/go-lpc/itsinspect/writer"
)

func TestPassThroughRoundTrip(t *testing.T) {
	r := rdh.RDH{HeaderID: 7, HeaderSize: rdh.Size, OffsetToNext: rdh.Size + 10}
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	var buf bytes.Buffer
	pw := writer.NewPassThrough(&buf)
	if err := pw.Write(cdp.CDP{RDH: r, Payload: payload}); err != nil {
		t.Fatalf("Write: %+v", err)
	}

	if got, want := buf.Len(), rdh.Size+len(payload); got != want {
		t.Fatalf("wrote %d bytes, want %d", got, want)
	}

	var got rdh.RDH
	if err := rdh.Decode(bytes.NewReader(buf.Bytes()[:rdh.Size]), make([]byte, rdh.Size), &got); err != nil {
		t.Fatalf("Decode: %+v", err)
	}
	got.Offset = 0
	if got != r {
		t.Fatalf("round-tripped RDH mismatch:\ngot=  %+v\nwant= %+v", got, r)
	}
	if !bytes.Equal(buf.Bytes()[rdh.Size:], payload) {
		t.Fatalf("payload mismatch")
	}
}
