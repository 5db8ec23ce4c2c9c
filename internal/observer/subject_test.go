/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package observer

import "testing"

func TestSubject_NotifyAllSubscribers(t *testing.T) {
	var s Subject[int]
	var got []int
	s.Subscribe(func(v int) { got = append(got, v) })
	s.Subscribe(func(v int) { got = append(got, v*10) })

	s.Notify(3)

	if len(got) != 2 || got[0] != 3 || got[1] != 30 {
		t.Fatalf("got = %v, want [3 30]", got)
	}
}

func TestSubject_Unsubscribe(t *testing.T) {
	var s Subject[string]
	var calls int
	h := s.Subscribe(func(string) { calls++ })
	s.Notify("a")
	h.Unsubscribe()
	s.Notify("b")

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSubject_UnsubscribeDuringDispatchDoesNotCorruptIteration(t *testing.T) {
	var s Subject[int]
	var handle *Handle
	var secondCalled bool

	handle = s.Subscribe(func(int) {
		handle.Unsubscribe()
	})
	s.Subscribe(func(int) { secondCalled = true })

	s.Notify(1)

	if !secondCalled {
		t.Fatal("second subscriber was not notified despite snapshot discipline")
	}

	secondCalled = false
	s.Notify(2)
	if !secondCalled {
		t.Fatal("second subscriber should still be subscribed after first detached itself")
	}
}
