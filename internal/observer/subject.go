/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package observer implements the per-connection multicast callback
// primitive used by SourceSession/IngestSession/RelayClient for events
// like "authorized" or "connection lost" that are local to a single
// session rather than station-wide (station-wide events go through the
// existing internal/events.Bus instead — see that package).
package observer

import "sync"

// Handle detaches a previously-registered subscriber.
type Handle struct {
	unsubscribe func()
}

// Unsubscribe removes the subscriber from its Subject. Safe to call
// more than once.
func (h *Handle) Unsubscribe() {
	if h != nil && h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// Subject is a typed multicast event: subscribers register a handler
// and receive a Handle that detaches it. Dispatch snapshots the
// subscriber list before iterating, so a handler that unsubscribes
// during dispatch never corrupts the in-flight iteration — the same
// discipline internal/events.Bus.Publish uses for station-wide events.
type Subject[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

// Subscribe registers handler and returns a Handle to detach it.
func (s *Subject[T]) Subscribe(handler func(T)) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.subs[id] = handler
	return &Handle{unsubscribe: func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}}
}

// Notify calls every currently-subscribed handler with value, using a
// snapshot of the subscriber list taken before any handler runs.
func (s *Subject[T]) Notify(value T) {
	s.mu.Lock()
	snapshot := make([]func(T), 0, len(s.subs))
	for _, h := range s.subs {
		snapshot = append(snapshot, h)
	}
	s.mu.Unlock()

	for _, h := range snapshot {
		h(value)
	}
}
