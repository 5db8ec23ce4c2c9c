/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ingest hosts the MR.DJ source ingestion listener: it accepts
// raw TCP connections, hands each one to a sourcesession.IngestSession,
// and on authorization routes the resulting audio into a per-mount
// audiostream.Ring that internal/relay serves to downstream relays.
package ingest

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_radio/internal/audiostream"
	"github.com/friendsincode/grimnir_radio/internal/events"
	"github.com/friendsincode/grimnir_radio/internal/models"
	"github.com/friendsincode/grimnir_radio/internal/observer"
	"github.com/friendsincode/grimnir_radio/internal/sourcesession"
	"github.com/friendsincode/grimnir_radio/internal/telemetry"
)

// Config holds ingest-listener configuration.
type Config struct {
	Bind       string
	Port       int
	BlockSize  int
	BlockCount int
}

// Mount is a named ring buffer fed by the currently-authorized source
// on that mount, if any.
type Mount struct {
	Name string
	Ring *audiostream.Ring

	// DataReceived fires after each chunk lands in the ring; the relay
	// bridge subscribes to re-drive its readers.
	DataReceived observer.Subject[[]byte]

	mu     sync.Mutex
	tags   map[string]string
	offset int64
}

func newMount(name string, cfg Config) *Mount {
	return &Mount{
		Name: name,
		Ring: audiostream.NewRing(cfg.BlockSize, cfg.BlockCount, 0),
		tags: make(map[string]string),
	}
}

// Write implements sourcesession.AudioSink.
func (m *Mount) Write(audio []byte) error {
	m.Ring.Write(audio)
	m.mu.Lock()
	m.offset += int64(len(audio))
	m.mu.Unlock()
	telemetry.SourceBytesReceived.Add(float64(len(audio)))
	m.DataReceived.Notify(audio)
	return nil
}

// UpdateMusicInfo implements sourcesession.AudioSink.
func (m *Mount) UpdateMusicInfo(tag map[string]string, offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = tag
	m.offset = offset
}

// Tags returns the last now-playing tag received on this mount.
func (m *Mount) Tags() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.tags))
	for k, v := range m.tags {
		out[k] = v
	}
	return out
}

// gormAuthenticator resolves source credentials from the mounts table,
// the same lookup harbor.Server does for Icecast PUT sources.
type gormAuthenticator struct {
	db *gorm.DB
}

func (a gormAuthenticator) Lookup(ctx context.Context, user string) (sourcesession.Credentials, error) {
	var mount models.Mount
	if err := a.db.WithContext(ctx).Where("name = ?", user).First(&mount).Error; err != nil {
		return sourcesession.Credentials{}, fmt.Errorf("ingest: lookup mount %q: %w", user, err)
	}
	// SourcePassword is stored alongside the mount for MR.DJ ingest,
	// distinct from the harbor Icecast token flow.
	return sourcesession.Credentials{
		User:         user,
		PasswordHash: mount.SourcePassword,
		MountName:    mount.Name,
	}, nil
}

// Server accepts MR.DJ source connections and routes audio into a
// per-mount Ring, mirroring harbor.Server's connection-table lifecycle
// for a different wire protocol.
type Server struct {
	cfg    Config
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger

	listener net.Listener

	mu     sync.Mutex
	mounts map[string]*Mount
	active map[string]context.CancelFunc // sessionID -> cancel
}

// NewServer creates an ingest server.
func NewServer(cfg Config, db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "ingest").Logger(),
		mounts: make(map[string]*Mount),
		active: make(map[string]context.CancelFunc),
	}
}

// Mount returns the ring for a mount name, creating it on first use.
func (s *Server) Mount(name string) *Mount {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mounts[name]
	if !ok {
		m = newMount(name, s.cfg)
		s.mounts[name] = m
	}
	return m
}

// ListenAndServe accepts connections until ctx is canceled or the
// listener errors.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ingest: listen %s: %w", addr, err)
	}
	s.listener = ln

	s.logger.Info().Str("addr", addr).Msg("ingest server starting")

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
				return fmt.Errorf("ingest: accept: %w", err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// ActiveConnections returns the number of currently-authorized sources.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown cancels every active source connection and stops accepting
// new ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("ingest server shutting down")

	s.mu.Lock()
	for _, cancel := range s.active {
		cancel()
	}
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConn(parentCtx context.Context, conn net.Conn) {
	sessionID := uuid.NewString()
	remoteAddr := conn.RemoteAddr().String()

	connCtx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	defer conn.Close()

	mountName := ""
	sink := &routingSink{server: s, mountName: &mountName}

	auth := gormAuthenticator{db: s.db}
	session := sourcesession.NewIngestSession(auth, sink, s.logger)

	session.Authorized.Subscribe(func(creds sourcesession.Credentials) {
		mountName = creds.MountName
		sink.bind(s.Mount(creds.MountName))

		s.mu.Lock()
		s.active[sessionID] = cancel
		s.mu.Unlock()
		telemetry.SourceConnections.Inc()

		s.bus.Publish(events.EventDJConnect, events.Payload{
			"session_id":  sessionID,
			"mount":       creds.MountName,
			"remote_addr": remoteAddr,
			"at":          time.Now().UTC().Format(time.RFC3339),
		})

		s.logger.Info().
			Str("session_id", sessionID).
			Str("mount", creds.MountName).
			Str("remote_addr", remoteAddr).
			Msg("ingest source authorized")
	})

	defer func() {
		s.mu.Lock()
		_, wasActive := s.active[sessionID]
		delete(s.active, sessionID)
		s.mu.Unlock()

		if wasActive {
			telemetry.SourceConnections.Dec()
			s.bus.Publish(events.EventDJDisconnect, events.Payload{
				"session_id": sessionID,
				"mount":      mountName,
			})
			s.logger.Info().Str("session_id", sessionID).Str("mount", mountName).Msg("ingest source disconnected")
		}
	}()

	if err := session.Serve(connCtx, conn); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Str("remote_addr", remoteAddr).Msg("ingest session ended")
	}
}

// routingSink defers to whatever Mount gets bound once the session
// authorizes, since the mount name isn't known until the User command
// resolves.
type routingSink struct {
	server    *Server
	mountName *string

	mu     sync.Mutex
	target *Mount
}

func (r *routingSink) bind(m *Mount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = m
}

func (r *routingSink) Write(audio []byte) error {
	r.mu.Lock()
	target := r.target
	r.mu.Unlock()
	if target == nil {
		return fmt.Errorf("ingest: audio received before authorization")
	}
	return target.Write(audio)
}

func (r *routingSink) UpdateMusicInfo(tag map[string]string, offset int64) {
	r.mu.Lock()
	target := r.target
	r.mu.Unlock()
	if target != nil {
		target.UpdateMusicInfo(tag, offset)
	}
}
