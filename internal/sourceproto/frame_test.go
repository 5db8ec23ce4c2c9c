/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sourceproto

import (
	"bytes"
	"testing"
)

func repeatBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte('a' + i%26)
	}
	return out
}

func feedInChunks(t *testing.T, c Codec, wire []byte, chunkSize int) []Frame {
	t.Helper()
	var frames []Frame
	for i := 0; i < len(wire); i += chunkSize {
		end := i + chunkSize
		if end > len(wire) {
			end = len(wire)
		}
		c.Feed(wire[i:end])
		for {
			f, ok := c.GetFrame()
			if !ok {
				break
			}
			frames = append(frames, f)
		}
	}
	return frames
}

func TestV1Codec_RoundTrip(t *testing.T) {
	body := repeatBytes(4 * 255)
	enc := NewV1Codec()
	frames, err := enc.Encode("audio", body)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var wire []byte
	for _, f := range frames {
		wire = append(wire, f...)
	}

	for _, chunkSize := range []int{100, 255, 256, 512, 513, 1024, 4096} {
		dec := NewV1Codec()
		got := feedInChunks(t, dec, wire, chunkSize)

		var reassembled []byte
		for _, f := range got {
			if f.Channel != "audio" {
				t.Fatalf("chunkSize %d: channel = %q, want %q", chunkSize, f.Channel, "audio")
			}
			reassembled = append(reassembled, f.Body...)
		}
		if !bytes.Equal(reassembled, body) {
			t.Fatalf("chunkSize %d: reassembled body mismatch", chunkSize)
		}
	}
}

func TestV2Codec_RoundTrip(t *testing.T) {
	body := repeatBytes(4 * 65535)
	enc := NewV2Codec()
	frames, err := enc.Encode("0", body)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var wire []byte
	for _, f := range frames {
		wire = append(wire, f...)
	}

	for _, chunkSize := range []int{100, 255, 256, 512, 513, 1024, 4096} {
		dec := NewV2Codec()
		got := feedInChunks(t, dec, wire, chunkSize)

		var reassembled []byte
		for _, f := range got {
			if f.Channel != "0" {
				t.Fatalf("chunkSize %d: channel = %q, want %q", chunkSize, f.Channel, "0")
			}
			reassembled = append(reassembled, f.Body...)
		}
		if !bytes.Equal(reassembled, body) {
			t.Fatalf("chunkSize %d: reassembled body mismatch", chunkSize)
		}
	}
}

func TestV2Codec_EmptyBody(t *testing.T) {
	enc := NewV2Codec()
	frames, err := enc.Encode("1", nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}

	dec := NewV2Codec()
	dec.Feed(frames[0])
	f, ok := dec.GetFrame()
	if !ok {
		t.Fatal("GetFrame() = false, want true")
	}
	if f.Channel != "1" || len(f.Body) != 0 {
		t.Fatalf("frame = %+v, want channel 1 with empty body", f)
	}
}

func TestV1Codec_Encode_ValidatesLengths(t *testing.T) {
	enc := NewV1Codec()
	if _, err := enc.Encode("", []byte("x")); err == nil {
		t.Fatal("expected error for empty channel name")
	}
	if _, err := enc.Encode("audio", nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestV2Codec_Encode_ValidatesChannel(t *testing.T) {
	enc := NewV2Codec()
	if _, err := enc.Encode("256", []byte("x")); err == nil {
		t.Fatal("expected error for out-of-range channel id")
	}
	if _, err := enc.Encode("not-a-number", []byte("x")); err == nil {
		t.Fatal("expected error for non-numeric channel id")
	}
}

func TestCodec_PartialFeed_Reentrant(t *testing.T) {
	enc := NewV1Codec()
	frames, _ := enc.Encode("cmd", []byte("hello world"))
	wire := frames[0]

	dec := NewV1Codec()
	// Feed one byte at a time; GetFrame must return false until the
	// full frame has arrived, then true exactly once.
	var got Frame
	var ok bool
	for i := 0; i < len(wire); i++ {
		dec.Feed(wire[i : i+1])
		got, ok = dec.GetFrame()
		if ok {
			if i != len(wire)-1 {
				t.Fatalf("GetFrame() returned true too early, at byte %d of %d", i, len(wire))
			}
			break
		}
	}
	if !ok {
		t.Fatal("GetFrame() never returned true")
	}
	if got.Channel != "cmd" || string(got.Body) != "hello world" {
		t.Fatalf("got = %+v", got)
	}
}
