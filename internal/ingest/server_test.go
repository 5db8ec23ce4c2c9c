/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ingest

import (
	"testing"
)

func TestMount_WriteAdvancesRingAndOffset(t *testing.T) {
	m := newMount("test", Config{BlockSize: 4, BlockCount: 4})

	if err := m.Write([]byte("12345678")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if m.Ring.Size() != 8 {
		t.Fatalf("ring size = %d, want 8", m.Ring.Size())
	}

	m.UpdateMusicInfo(map[string]string{"song": "Test"}, 8)
	tags := m.Tags()
	if tags["song"] != "Test" {
		t.Fatalf("tags = %v, want song=Test", tags)
	}
}

func TestRoutingSink_RejectsAudioBeforeBind(t *testing.T) {
	mountName := ""
	sink := &routingSink{mountName: &mountName}

	if err := sink.Write([]byte("x")); err == nil {
		t.Fatal("expected an error writing before a mount is bound")
	}
}

func TestRoutingSink_RoutesAfterBind(t *testing.T) {
	mountName := ""
	sink := &routingSink{mountName: &mountName}
	target := newMount("live", Config{BlockSize: 4, BlockCount: 4})
	sink.bind(target)

	if err := sink.Write([]byte("abcd")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if target.Ring.Size() != 4 {
		t.Fatalf("target ring size = %d, want 4", target.Ring.Size())
	}
}
