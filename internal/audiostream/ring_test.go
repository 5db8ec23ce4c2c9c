/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audiostream

import (
	"bytes"
	"testing"
)

func TestRing_BlockWriterInWindowReader(t *testing.T) {
	r := NewRing(3, 5, 0)
	r.Write([]byte("1234567890ab"))

	cases := []struct {
		wantBlock string
		wantOff   int64
	}{
		{"123", 3},
		{"456", 6},
		{"789", 9},
		{"0ab", 12},
	}

	offset := int64(0)
	for _, c := range cases {
		block, newOffset := r.Read(offset)
		if string(block) != c.wantBlock || newOffset != c.wantOff {
			t.Fatalf("Read(%d) = (%q, %d), want (%q, %d)", offset, block, newOffset, c.wantBlock, c.wantOff)
		}
		offset = newOffset
	}

	block, newOffset := r.Read(offset)
	if block != nil || newOffset != 12 {
		t.Fatalf("Read(12) = (%v, %d), want (nil, 12)", block, newOffset)
	}
}

func TestRing_OutOfWindowReposition(t *testing.T) {
	r := NewRing(3, 5, 0)
	r.Write([]byte("1234567890abcdefghijk"))

	block, newOffset := r.Read(0)
	if r.Middle() != 12 {
		t.Fatalf("Middle() = %d, want 12", r.Middle())
	}
	if string(block) != "cde" || newOffset != 15 {
		t.Fatalf("Read(0) = (%q, %d), want (\"cde\", 15)", block, newOffset)
	}
}

func TestRing_Write_IncrementalBlocks(t *testing.T) {
	r := NewRing(3, 5, 0)
	r.Write([]byte("1234567890"))
	if r.Base() != 0 {
		t.Fatalf("Base() = %d, want 0", r.Base())
	}
	if r.Middle() != 3 {
		t.Fatalf("Middle() = %d, want 3", r.Middle())
	}

	r.Write([]byte("ab"))
	r.Write([]byte("a"))
	r.Write([]byte("s"))
	r.Write([]byte("d"))
	r.Write([]byte("f"))
	if r.Base() != 0 {
		t.Fatalf("Base() = %d, want 0", r.Base())
	}
	if r.Middle() != 6 {
		t.Fatalf("Middle() = %d, want 6", r.Middle())
	}

	r.Write([]byte("uc"))
	r.Write([]byte("k"))
	if r.Base() != 3 {
		t.Fatalf("Base() = %d, want 3", r.Base())
	}
	if r.Middle() != 9 {
		t.Fatalf("Middle() = %d, want 9", r.Middle())
	}
}

func TestRing_Invariants_AfterManyWrites(t *testing.T) {
	r := NewRing(4, 8, 0)
	capacity := int64(r.Capacity())

	var all []byte
	chunks := []string{"a", "bb", "ccc", "dddd", "eeeee", "", "ffffffffffff", "g"}
	for _, c := range chunks {
		all = append(all, []byte(c)...)
		r.Write([]byte(c))

		if r.Base() > r.Size() {
			t.Fatalf("base %d > size %d", r.Base(), r.Size())
		}
		if r.Size()-r.Base() > capacity {
			t.Fatalf("window %d exceeds capacity %d", r.Size()-r.Base(), capacity)
		}
		if (r.Size()-r.Base())%int64(r.BlockSize()) != 0 {
			t.Fatalf("window %d not block-aligned", r.Size()-r.Base())
		}
	}
}

func TestRing_ReadNoNewData(t *testing.T) {
	r := NewRing(4, 4, 0)
	r.Write([]byte("abcd"))
	block, offset := r.Read(4)
	if block != nil || offset != 4 {
		t.Fatalf("Read(4) = (%v, %d), want (nil, 4)", block, offset)
	}
}

func TestRing_Data_ReflectsChronologicalOrder(t *testing.T) {
	r := NewRing(3, 5, 0)
	r.Write([]byte("1"))
	if !bytes.Equal(r.Data(), []byte("1")) {
		t.Fatalf("Data() = %q, want %q", r.Data(), "1")
	}
	r.Write([]byte("234567"))
	if !bytes.Equal(r.Data(), []byte("1234567")) {
		t.Fatalf("Data() = %q, want %q", r.Data(), "1234567")
	}
}

func TestRing_ReadRoundsDownToBlockBoundary(t *testing.T) {
	r := NewRing(3, 5, 0)
	r.Write([]byte("123456"))
	block, offset := r.Read(4) // mid-block offset, rounds down to 3
	if string(block) != "456" || offset != 6 {
		t.Fatalf("Read(4) = (%q, %d), want (\"456\", 6)", block, offset)
	}
}
