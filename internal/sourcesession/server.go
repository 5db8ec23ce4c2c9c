/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sourcesession

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_radio/internal/observer"
	"github.com/friendsincode/grimnir_radio/internal/sourceproto"
)

// Credentials is the stored record an Authenticator looks up by mount
// user name. PasswordHash takes the place of a plaintext password in
// the challenge-response computation; it never needs to be reversible.
type Credentials struct {
	User         string
	PasswordHash string
	MountName    string
}

// Authenticator resolves a source user name to stored credentials. A
// gorm-backed implementation lives in internal/ingest.
type Authenticator interface {
	Lookup(ctx context.Context, user string) (Credentials, error)
}

// AudioSink receives the authorized session's audio bytes and
// now-playing metadata. internal/ingest implements this over an
// internal/audiostream.Ring.
type AudioSink interface {
	Write(audio []byte) error
	UpdateMusicInfo(tag map[string]string, offset int64)
}

// IngestSession is the ingest-server side of the source protocol: it
// drives the handshake, issues the salt/challenge, verifies the
// client's Response against stored credentials, and on success feeds
// decoded audio frames to an AudioSink.
type IngestSession struct {
	auth   Authenticator
	logger zerolog.Logger

	ConnectionLost       observer.Subject[error]
	Authorized           observer.Subject[Credentials]
	ListenerCountChanged observer.Subject[int]

	mu            sync.Mutex
	state         State
	major         int
	minor         int
	creds         Credentials
	salt          string
	challenge     string
	listenerCount int
	closed        bool

	conn         net.Conn
	codec        sourceproto.Codec
	lineCodec    *sourceproto.LineCodec
	audioChannel string
	cmdChannel   string
	sink         AudioSink
}

// NewIngestSession returns a server-side session that authenticates
// against auth and, once authorized, forwards audio to sink.
func NewIngestSession(auth Authenticator, sink AudioSink, logger zerolog.Logger) *IngestSession {
	return &IngestSession{
		auth:   auth,
		sink:   sink,
		logger: logger.With().Str("component", "ingestsession").Logger(),
	}
}

// Serve drives the handshake and read loop over conn until it closes,
// ctx is canceled, or the handshake is rejected. It blocks.
func (s *IngestSession) Serve(ctx context.Context, conn net.Conn) error {
	s.mu.Lock()
	s.conn = conn
	s.state = StateVersion
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	if err := s.runHandshake(ctx, conn); err != nil {
		s.ConnectionLost.Notify(err)
		return err
	}

	err := s.readLoop(conn)
	s.ConnectionLost.Notify(err)
	return err
}

func (s *IngestSession) runHandshake(ctx context.Context, conn net.Conn) error {
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("ingestsession: read handshake line: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")

	major, minor, ok := parseHandshakeLine(line)
	if !ok {
		fmt.Fprintf(conn, "BAD_PROTOCOL\r\n")
		return ProtocolError{Code: ErrBadProtocol, Message: "malformed handshake line: " + line}
	}
	if major < 1 {
		fmt.Fprintf(conn, "OLD_PROTOCOL\r\n")
		return ProtocolError{Code: ErrOldProtocol, Message: fmt.Sprintf("protocol major %d no longer supported", major)}
	}
	if major > 2 {
		fmt.Fprintf(conn, "BAD_PROTOCOL\r\n")
		return ProtocolError{Code: ErrBadProtocol, Message: fmt.Sprintf("unsupported protocol major %d", major)}
	}

	if _, err := fmt.Fprintf(conn, "OK\r\n"); err != nil {
		return fmt.Errorf("ingestsession: send handshake ack: %w", err)
	}

	audioChannel, cmdChannel, codec := channelsFor(major)

	s.mu.Lock()
	s.major = major
	s.minor = minor
	s.codec = codec
	s.lineCodec = sourceproto.NewLineCodec()
	s.audioChannel = audioChannel
	s.cmdChannel = cmdChannel
	s.state = StateAuthentication
	s.mu.Unlock()

	s.logger.Debug().Int("major", major).Int("minor", minor).Msg("handshake accepted, awaiting User command")

	return s.awaitAuthentication(ctx, conn)
}

func parseHandshakeLine(line string) (major, minor int, ok bool) {
	const prefix = "MR.DJ "
	if !strings.HasPrefix(line, prefix) {
		return 0, 0, false
	}
	parts := strings.SplitN(strings.TrimPrefix(line, prefix), "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// awaitAuthentication reads command-channel frames until the client
// has authenticated, handling User/Response and issuing Salt/Challenge
// in between, then verifies the response before entering the
// broadcasting state.
func (s *IngestSession) awaitAuthentication(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, 4096)
	for {
		s.mu.Lock()
		state := s.state
		s.mu.Unlock()
		if state == StateBroadcasting {
			return nil
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if done, err := s.feedAuthBytes(ctx, conn, buf[:n]); err != nil {
				return err
			} else if done {
				return nil
			}
		}
		if err != nil {
			return fmt.Errorf("ingestsession: read during authentication: %w", err)
		}
	}
}

func (s *IngestSession) feedAuthBytes(ctx context.Context, conn net.Conn, data []byte) (done bool, err error) {
	s.mu.Lock()
	s.codec.Feed(data)
	var frames []sourceproto.Frame
	for {
		frame, ok := s.codec.GetFrame()
		if !ok {
			break
		}
		frames = append(frames, frame)
	}
	s.mu.Unlock()

	for _, frame := range frames {
		if frame.Channel != s.cmdChannel {
			continue
		}
		s.mu.Lock()
		s.lineCodec.Feed(frame.Body)
		var lines []string
		for {
			line, ok := s.lineCodec.GetLine()
			if !ok {
				break
			}
			lines = append(lines, line)
		}
		s.mu.Unlock()

		for _, line := range lines {
			name, value, ok := splitCommandLine(line)
			if !ok {
				continue
			}
			authorized, err := s.handleAuthCommand(ctx, conn, name, value)
			if err != nil {
				return false, err
			}
			if authorized {
				return true, nil
			}
		}
	}
	return false, nil
}

// handleAuthCommand implements the server's half of the authentication
// command table. It returns authorized=true once the client's Response
// has been verified.
func (s *IngestSession) handleAuthCommand(ctx context.Context, conn net.Conn, name, value string) (authorized bool, err error) {
	switch name {
	case "User":
		creds, lookupErr := s.auth.Lookup(ctx, value)
		if lookupErr != nil {
			s.sendError(conn, ErrAuthorizationFailed, "unknown user")
			return false, fmt.Errorf("ingestsession: lookup user %q: %w", value, lookupErr)
		}
		salt, err := randomHex(16)
		if err != nil {
			return false, err
		}
		challenge, err := randomHex(16)
		if err != nil {
			return false, err
		}

		s.mu.Lock()
		s.creds = creds
		s.salt = salt
		s.challenge = challenge
		s.mu.Unlock()

		if err := s.sendCommand(conn, "Salt", salt); err != nil {
			return false, err
		}
		if err := s.sendCommand(conn, "Challenge", challenge); err != nil {
			return false, err
		}
		return false, nil

	case "Response":
		s.mu.Lock()
		creds := s.creds
		salt := s.salt
		challenge := s.challenge
		s.mu.Unlock()

		expected := computeResponse(creds.PasswordHash, salt, challenge)
		if expected != value {
			s.sendError(conn, ErrAuthorizationFailed, "invalid response")
			return false, ProtocolError{Code: ErrAuthorizationFailed, Message: "invalid response for user " + creds.User}
		}

		s.mu.Lock()
		s.state = StateBroadcasting
		s.mu.Unlock()

		if err := s.sendCommand(conn, "Authorized", creds.User); err != nil {
			return false, err
		}
		s.Authorized.Notify(creds)
		return true, nil

	default:
		s.logger.Debug().Str("command", name).Msg("unrecognized command during authentication")
		return false, nil
	}
}

func (s *IngestSession) sendError(conn net.Conn, code int, msg string) {
	_ = s.sendCommand(conn, "Error", fmt.Sprintf("%d %s", code, msg))
}

func (s *IngestSession) sendCommand(conn net.Conn, name, value string) error {
	s.mu.Lock()
	codec := s.codec
	channel := s.cmdChannel
	s.mu.Unlock()

	line := name + ": " + value + "\r\n"
	chunks, err := codec.Encode(channel, []byte(line))
	if err != nil {
		return fmt.Errorf("ingestsession: encode command: %w", err)
	}
	for _, chunk := range chunks {
		if _, err := conn.Write(chunk); err != nil {
			return fmt.Errorf("ingestsession: write command: %w", err)
		}
	}
	return nil
}

// readLoop runs after authorization, forwarding audio frames to the
// sink and handling Listener-Count updates until conn closes.
func (s *IngestSession) readLoop(conn net.Conn) error {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.codec.Feed(buf[:n])
			var frames []sourceproto.Frame
			for {
				frame, ok := s.codec.GetFrame()
				if !ok {
					break
				}
				frames = append(frames, frame)
			}
			audioChannel := s.audioChannel
			cmdChannel := s.cmdChannel
			lineCodec := s.lineCodec
			s.mu.Unlock()

			for _, frame := range frames {
				switch frame.Channel {
				case audioChannel:
					if sinkErr := s.sink.Write(frame.Body); sinkErr != nil {
						return fmt.Errorf("ingestsession: sink write: %w", sinkErr)
					}
				case cmdChannel:
					lineCodec.Feed(frame.Body)
					for {
						line, ok := lineCodec.GetLine()
						if !ok {
							break
						}
						name, value, ok := splitCommandLine(line)
						if !ok {
							continue
						}
						s.handleBroadcastCommand(name, value)
					}
				}
			}
		}
		if err != nil {
			return fmt.Errorf("ingestsession: read: %w", err)
		}
	}
}

func (s *IngestSession) handleBroadcastCommand(name, value string) {
	switch name {
	case "Listener-Count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.listenerCount = n
		s.mu.Unlock()
		s.ListenerCountChanged.Notify(n)
	case "Music-Info":
		s.mu.Lock()
		major := s.major
		s.mu.Unlock()
		tag, offset, err := decodeMusicInfo(major, value)
		if err != nil {
			s.logger.Debug().Err(err).Msg("malformed music info")
			return
		}
		s.sink.UpdateMusicInfo(tag, offset)
	default:
		s.logger.Debug().Str("command", name).Msg("unrecognized command while broadcasting")
	}
}

// SetListenerCount pushes a Listener-Count update to the client, the
// server-initiated direction of the same command.
func (s *IngestSession) SetListenerCount(n int) error {
	return s.sendCommand(s.conn, "Listener-Count", strconv.Itoa(n))
}

// Close closes the underlying connection. Safe to call more than once.
func (s *IngestSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.state = StateClosed
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
