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

// SourceSession is the broadcaster side of the source ingestion
// protocol: it speaks the handshake line, proves knowledge of the
// password via the challenge-response exchange, then multiplexes
// outgoing audio and command frames over a single connection.
type SourceSession struct {
	user     string
	password string
	major    int
	minor    int

	logger zerolog.Logger

	ConnectingMade       observer.Subject[struct{}]
	ConnectionLost       observer.Subject[error]
	Authorized           observer.Subject[struct{}]
	ListenerCountChanged observer.Subject[int]
	DataWritten          observer.Subject[int]
	DataSent             observer.Subject[int]
	ErrorEvent           observer.Subject[ProtocolError]

	mu            sync.Mutex
	state         State
	salt          string
	challenge     string
	offset        int64
	listenerCount int
	closed        bool

	conn         net.Conn
	codec        sourceproto.Codec
	lineCodec    *sourceproto.LineCodec
	audioChannel string
	cmdChannel   string
}

// NewSourceSession returns a client ready to Run against a connection,
// authenticating as user/password and requesting protocol major.minor.
func NewSourceSession(user, password string, major, minor int, logger zerolog.Logger) *SourceSession {
	return &SourceSession{
		user:     user,
		password: password,
		major:    major,
		minor:    minor,
		logger:   logger.With().Str("component", "sourcesession").Logger(),
	}
}

// State reports the session's current protocol phase.
func (s *SourceSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ListenerCount reports the most recent Listener-Count the server sent.
func (s *SourceSession) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenerCount
}

// Run drives the handshake and then the read loop over conn until the
// connection closes or ctx is canceled. It blocks; callers typically
// run it in its own goroutine.
func (s *SourceSession) Run(ctx context.Context, conn net.Conn) error {
	s.mu.Lock()
	s.conn = conn
	s.state = StateVersion
	s.mu.Unlock()

	s.ConnectingMade.Notify(struct{}{})

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	err := s.runHandshake(conn)
	if err != nil {
		s.ConnectionLost.Notify(err)
		return err
	}

	err = s.readLoop(conn)
	s.ConnectionLost.Notify(err)
	return err
}

func (s *SourceSession) runHandshake(conn net.Conn) error {
	if _, err := fmt.Fprintf(conn, "MR.DJ %d/%d\r\n", s.major, s.minor); err != nil {
		return fmt.Errorf("sourcesession: send handshake: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("sourcesession: read handshake response: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")

	switch line {
	case "OK":
	case "OLD_PROTOCOL":
		return ProtocolError{Code: ErrOldProtocol, Message: "server requires an older protocol version"}
	case "BAD_PROTOCOL":
		return ProtocolError{Code: ErrBadProtocol, Message: "server rejected protocol version"}
	default:
		return ProtocolError{Code: ErrUnknownProtocol, Message: "unrecognized handshake response: " + line}
	}

	audioChannel, cmdChannel, codec := channelsFor(s.major)

	s.mu.Lock()
	s.codec = codec
	s.lineCodec = sourceproto.NewLineCodec()
	s.audioChannel = audioChannel
	s.cmdChannel = cmdChannel
	s.state = StateAuthentication
	s.mu.Unlock()

	if err := s.sendCommand(conn, "User", s.user); err != nil {
		return err
	}

	s.logger.Debug().Str("user", s.user).Int("major", s.major).Msg("handshake complete, awaiting challenge")
	return nil
}

// readLoop feeds bytes read from conn into the codec, dispatches
// decoded frames, and runs until conn is closed or a read error
// occurs.
func (s *SourceSession) readLoop(conn net.Conn) error {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.codec.Feed(buf[:n])
			for {
				frame, ok := s.codec.GetFrame()
				if !ok {
					break
				}
				s.dispatchFrameLocked(frame)
			}
			s.mu.Unlock()
		}
		if err != nil {
			return fmt.Errorf("sourcesession: read: %w", err)
		}
	}
}

// dispatchFrameLocked must be called with mu held.
func (s *SourceSession) dispatchFrameLocked(frame sourceproto.Frame) {
	if frame.Channel != s.cmdChannel {
		// The client does not expect inbound audio frames; ignore.
		return
	}
	s.lineCodec.Feed(frame.Body)
	for {
		line, ok := s.lineCodec.GetLine()
		if !ok {
			break
		}
		name, value, ok := splitCommandLine(line)
		if !ok {
			continue
		}
		s.handleCommandLocked(name, value)
	}
}

// splitCommandLine parses a "Name: value" command line.
func splitCommandLine(line string) (name, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// handleCommandLocked must be called with mu held. It implements the
// client's half of the authentication/broadcasting command table.
func (s *SourceSession) handleCommandLocked(name, value string) {
	switch name {
	case "Salt":
		s.salt = value
		s.maybeSendResponseLocked()
	case "Challenge":
		s.challenge = value
		s.maybeSendResponseLocked()
	case "Authorized":
		s.state = StateBroadcasting
		s.mu.Unlock()
		s.Authorized.Notify(struct{}{})
		s.mu.Lock()
	case "Listener-Count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return
		}
		s.listenerCount = n
		s.mu.Unlock()
		s.ListenerCountChanged.Notify(n)
		s.mu.Lock()
	case "Error":
		code, msg := splitErrorValue(value)
		protoErr := ProtocolError{Code: code, Message: msg}
		s.mu.Unlock()
		s.ErrorEvent.Notify(protoErr)
		s.mu.Lock()
	default:
		s.logger.Debug().Str("command", name).Msg("unrecognized command")
	}
}

// maybeSendResponseLocked sends the Response command once both the
// salt and the challenge have arrived, in whichever order the server
// chose to send them. Must be called with mu held.
func (s *SourceSession) maybeSendResponseLocked() {
	if s.salt == "" || s.challenge == "" {
		return
	}
	response := computeResponse(s.password, s.salt, s.challenge)
	s.mu.Unlock()
	_ = s.sendCommand(s.conn, "Response", response)
	s.mu.Lock()
}

func splitErrorValue(value string) (int, string) {
	parts := strings.SplitN(value, " ", 2)
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return ErrUnknownProtocol, value
	}
	if len(parts) == 2 {
		return code, parts[1]
	}
	return code, ""
}

// sendCommand writes one "Name: value" line over the command channel.
func (s *SourceSession) sendCommand(conn net.Conn, name, value string) error {
	s.mu.Lock()
	codec := s.codec
	channel := s.cmdChannel
	s.mu.Unlock()

	line := name + ": " + value + "\r\n"
	chunks, err := codec.Encode(channel, []byte(line))
	if err != nil {
		return fmt.Errorf("sourcesession: encode command: %w", err)
	}
	for _, chunk := range chunks {
		if _, err := conn.Write(chunk); err != nil {
			return fmt.Errorf("sourcesession: write command: %w", err)
		}
	}
	return nil
}

// Write encodes and sends one chunk of audio on the audio channel,
// advancing the session's byte offset.
func (s *SourceSession) Write(audio []byte) error {
	s.mu.Lock()
	if s.state != StateBroadcasting {
		s.mu.Unlock()
		return fmt.Errorf("sourcesession: write audio while not broadcasting (state=%s)", s.state)
	}
	codec := s.codec
	channel := s.audioChannel
	conn := s.conn
	s.mu.Unlock()

	chunks, err := codec.Encode(channel, audio)
	if err != nil {
		return fmt.Errorf("sourcesession: encode audio: %w", err)
	}
	sent := 0
	for _, chunk := range chunks {
		n, err := conn.Write(chunk)
		if err != nil {
			return fmt.Errorf("sourcesession: write audio: %w", err)
		}
		sent += n
	}

	s.mu.Lock()
	s.offset += int64(len(audio))
	s.mu.Unlock()

	s.DataWritten.Notify(len(audio))
	s.DataSent.Notify(sent)
	return nil
}

// UpdateMusicInfo sends the now-playing tag as a Music-Info command,
// encoded per the negotiated protocol major version with the session's
// current byte offset injected.
func (s *SourceSession) UpdateMusicInfo(tag MusicInfo) error {
	s.mu.Lock()
	major := s.major
	offset := s.offset
	conn := s.conn
	s.mu.Unlock()

	body := tag.encode(major, offset)
	return s.sendCommand(conn, "Music-Info", string(body))
}

// Close closes the underlying connection. Safe to call more than once.
func (s *SourceSession) Close() error {
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
