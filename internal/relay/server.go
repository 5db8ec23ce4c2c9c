/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_radio/internal/audiostream"
	"github.com/friendsincode/grimnir_radio/internal/observer"
	"github.com/friendsincode/grimnir_radio/internal/telemetry"
)

// Reader is one downstream relay's pull-side connection to this
// server: it asks for a named resource, then receives raw audio bytes
// whenever it has signaled it is hungry for more.
type Reader struct {
	conn      net.Conn
	logger    zerolog.Logger
	sessionNo int64

	ConnectionLost observer.Subject[struct{}]
	DataWritten    observer.Subject[[]byte]

	mu       sync.Mutex
	hungry   bool
	closed   bool
	offset   int64
	resource *Resource
}

func newReader(conn net.Conn, sessionNo int64, logger zerolog.Logger) *Reader {
	return &Reader{
		conn:      conn,
		sessionNo: sessionNo,
		logger:    logger.With().Int64("session", sessionNo).Logger(),
		hungry:    true,
	}
}

// produce drains every block currently available for this reader's
// offset and writes it to the peer. A net.Conn's Write blocks until
// the kernel accepts the bytes, which is this implementation's
// stand-in for the original reactor's "pause until the transport
// drains" backpressure — so there is no separate resumeProducing
// signal to wait for: once Write returns, the reader is hungry again
// by construction. The hungry flag instead guards re-entrancy, so a
// producer already draining blocks for this reader doesn't race with
// another producer call triggered by a concurrent resource write.
func (r *Reader) produce() {
	r.mu.Lock()
	if !r.hungry || r.closed {
		r.mu.Unlock()
		return
	}
	r.hungry = false
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.hungry = true
		r.mu.Unlock()
	}()

	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		resource := r.resource
		offset := r.offset
		r.mu.Unlock()

		if resource == nil {
			return
		}

		// A reader that has fallen behind the ring's window gets
		// disconnected rather than silently skipped forward; the
		// downstream relay reconnects and is handed a fresh offset.
		if offset < resource.ring.Base() {
			r.close("Out of buffer", true)
			return
		}

		block, next := resource.ring.Read(offset)

		r.mu.Lock()
		r.offset = next
		r.mu.Unlock()

		if len(block) == 0 {
			return
		}

		if _, err := r.conn.Write(block); err != nil {
			r.logger.Warn().Err(err).Msg("relay reader write failed")
			r.close("write error", true)
			return
		}

		telemetry.RelayBytesSent.Add(float64(len(block)))
		r.DataWritten.Notify(block)
	}
}

func (r *Reader) close(reason string, notify bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	_ = r.conn.Close()
	if notify {
		r.ConnectionLost.Notify(struct{}{})
	}
	r.logger.Info().Str("reason", reason).Msg("relay reader closed")
}

// Resource is a named audio stream and the set of readers currently
// pulling from it.
type Resource struct {
	Name string
	ring *audiostream.Ring

	logger zerolog.Logger

	DataWritten observer.Subject[[]byte]

	mu      sync.Mutex
	readers map[*Reader]struct{}
}

func newResource(name string, ring *audiostream.Ring, logger zerolog.Logger) *Resource {
	return &Resource{
		Name:    name,
		ring:    ring,
		logger:  logger.With().Str("resource", name).Logger(),
		readers: make(map[*Reader]struct{}),
	}
}

func (res *Resource) add(r *Reader) {
	res.mu.Lock()
	res.readers[r] = struct{}{}
	res.mu.Unlock()
	telemetry.RelayReaders.Inc()

	r.ConnectionLost.Subscribe(func(struct{}) { res.remove(r) })
	r.DataWritten.Subscribe(func(block []byte) { res.DataWritten.Notify(block) })

	res.logger.Info().Int64("session", r.sessionNo).Msg("relay reader attached")
}

func (res *Resource) remove(r *Reader) {
	res.mu.Lock()
	_, attached := res.readers[r]
	delete(res.readers, r)
	res.mu.Unlock()
	if !attached {
		return
	}
	telemetry.RelayReaders.Dec()
	res.logger.Info().Int64("session", r.sessionNo).Msg("relay reader detached")
}

// Write feeds data into the resource's ring and pokes every attached
// reader to produce, the pull-producer fan-out step.
func (res *Resource) write(data []byte) {
	res.ring.Write(data)
	res.Produce()
}

// Produce re-drives every attached reader. Called after new data lands
// in the ring — either via write on this resource or by an external
// writer sharing the same ring (the ingest mount bridge).
func (res *Resource) Produce() {
	res.mu.Lock()
	readers := make([]*Reader, 0, len(res.readers))
	for r := range res.readers {
		readers = append(readers, r)
	}
	res.mu.Unlock()

	for _, r := range readers {
		r.produce()
	}
}

// ReaderCount returns how many readers are attached to this resource.
func (res *Resource) ReaderCount() int {
	res.mu.Lock()
	defer res.mu.Unlock()
	return len(res.readers)
}

func (res *Resource) close(reason string) {
	res.mu.Lock()
	readers := make([]*Reader, 0, len(res.readers))
	for r := range res.readers {
		readers = append(readers, r)
	}
	res.readers = make(map[*Reader]struct{})
	res.mu.Unlock()

	telemetry.RelayReaders.Sub(float64(len(readers)))
	for _, r := range readers {
		r.close(reason, false)
	}
}

// Config holds relay-listener configuration.
type Config struct {
	Bind             string
	Port             int
	HeaderLimitBytes int
}

// Server accepts relay-client connections, serves the JSON header
// handshake, and then fans out audio to each reader under pull-producer
// backpressure.
type Server struct {
	cfg    Config
	logger zerolog.Logger

	listener  net.Listener
	sessionNo int64

	DataWritten observer.Subject[[]byte]

	mu        sync.Mutex
	resources map[string]*Resource
}

// NewServer creates a relay server. Resources must be registered with
// AddResource before a client can successfully request them.
func NewServer(cfg Config, logger zerolog.Logger) *Server {
	if cfg.HeaderLimitBytes <= 0 {
		cfg.HeaderLimitBytes = HeaderLimit
	}
	return &Server{
		cfg:       cfg,
		logger:    logger.With().Str("component", "relay").Logger(),
		resources: make(map[string]*Resource),
	}
}

// AddResource registers a named ring-backed resource for relay clients
// to pull from.
func (s *Server) AddResource(name string, ring *audiostream.Ring) *Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := newResource(name, ring, s.logger)
	res.DataWritten.Subscribe(func(block []byte) { s.DataWritten.Notify(block) })
	s.resources[name] = res
	return res
}

// EnsureResource returns the existing resource for name if one is
// already registered and backed by the same ring, otherwise it
// registers a new one. Safe to call repeatedly across source
// reconnects without orphaning already-attached readers.
func (s *Server) EnsureResource(name string, ring *audiostream.Ring) *Resource {
	s.mu.Lock()
	res, ok := s.resources[name]
	s.mu.Unlock()
	if ok && res.ring == ring {
		return res
	}
	return s.AddResource(name, ring)
}

// RemoveResource closes and unregisters a resource.
func (s *Server) RemoveResource(name string) {
	s.mu.Lock()
	res, ok := s.resources[name]
	delete(s.resources, name)
	s.mu.Unlock()
	if ok {
		res.close("Resource closed")
	}
}

// Write feeds audio data into a registered resource, fanning it out to
// every attached reader. It is a no-op if the resource doesn't exist.
func (s *Server) Write(name string, data []byte) {
	s.mu.Lock()
	res, ok := s.resources[name]
	s.mu.Unlock()
	if ok {
		res.write(data)
	}
}

func (s *Server) getResource(name string) *Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resources[name]
}

// CountOfStreams reports the total number of attached readers across
// every resource.
func (s *Server) CountOfStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, res := range s.resources {
		n += res.ReaderCount()
	}
	return n
}

// ListenAndServe accepts relay-client connections until ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", addr, err)
	}
	s.listener = ln

	s.logger.Info().Str("addr", addr).Msg("relay server starting")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("relay: accept: %w", err)
			}
		}
		sessionNo := atomic.AddInt64(&s.sessionNo, 1)
		go s.handleConn(conn, sessionNo)
	}
}

// Shutdown stops accepting connections and closes every resource's
// readers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("relay server shutting down")

	s.mu.Lock()
	resources := make([]*Resource, 0, len(s.resources))
	for _, res := range s.resources {
		resources = append(resources, res)
	}
	s.mu.Unlock()

	for _, res := range resources {
		res.close("Resource closed")
	}

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConn(conn net.Conn, sessionNo int64) {
	reader := newReader(conn, sessionNo, s.logger)
	defer conn.Close()

	buf := make([]byte, 4096)
	var accumulated []byte

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			accumulated = append(accumulated, buf[:n]...)
			var req requestHeader
			remainder, ok, parseErr := parseHeader(accumulated, &req)
			if parseErr != nil {
				s.logger.Warn().Err(parseErr).Int64("session", sessionNo).Msg("relay: bad request header")
				return
			}
			if ok {
				s.serveReader(reader, req.Name)
				if len(remainder) > 0 {
					s.logger.Warn().Int64("session", sessionNo).Msg("relay: unexpected trailing data after header")
				}
				s.readLoop(reader, conn)
				return
			}
			if len(accumulated) > s.cfg.HeaderLimitBytes {
				s.sendError(conn, "bad request")
				s.logger.Warn().Int64("session", sessionNo).Msg("relay: header too long")
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// serveReader answers the header request and, if the resource exists,
// attaches the reader and begins the pull-producer loop.
func (s *Server) serveReader(r *Reader, name string) {
	res := s.getResource(name)
	if res == nil {
		header, _ := makeHeader(responseHeader{Name: name, Result: resultNotFound})
		_, _ = r.conn.Write(header)
		r.close("resource not found", false)
		return
	}

	offset := res.ring.Middle()

	r.mu.Lock()
	r.resource = res
	r.offset = offset
	r.mu.Unlock()

	header, _ := makeHeader(responseHeader{Name: name, Result: resultFound, BeginOffset: offset})
	if _, err := r.conn.Write(header); err != nil {
		r.close("write error", false)
		return
	}

	res.add(r)
	r.logger.Info().Str("resource", name).Int64("offset", offset).Msg("relay reader started streaming")
	r.produce()
}

func (s *Server) sendError(conn net.Conn, msg string) {
	header, _ := makeHeader(errorHeader{Error: msg})
	_, _ = conn.Write(header)
}

// readLoop drains (and discards) any bytes the reader sends after
// streaming starts, resuming production on Resume-Producing-style
// demand signals; relay clients only pull, they never push.
func (s *Server) readLoop(r *Reader, conn net.Conn) {
	buf := make([]byte, 1024)
	for {
		_, err := conn.Read(buf)
		if err != nil {
			r.close("connection closed", true)
			return
		}
	}
}
