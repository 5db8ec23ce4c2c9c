/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sourcesession implements the broadcaster-side (SourceSession)
// and server-side (IngestSession) halves of the MR.DJ source ingestion
// protocol: a text handshake line that selects a frame codec version,
// followed by a challenge-response authentication exchange multiplexed
// with the audio stream over internal/sourceproto frames.
package sourcesession

import (
	"fmt"

	"github.com/friendsincode/grimnir_radio/internal/sourceproto"
)

// State is one phase of the source protocol state machine.
type State int

const (
	// StateVersion is before the handshake line has been answered.
	StateVersion State = iota
	// StateAuthentication is after OK, waiting for the challenge
	// exchange to complete.
	StateAuthentication
	// StateBroadcasting is after authorization succeeded; audio bytes
	// flow and Listener-Count updates may arrive.
	StateBroadcasting
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateVersion:
		return "version"
	case StateAuthentication:
		return "authentication"
	case StateBroadcasting:
		return "broadcasting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handshake error codes, exactly as specified on the wire.
const (
	ErrOldProtocol     = 100
	ErrBadProtocol     = 101
	ErrUnknownProtocol = 102
	// ErrAuthorizationFailed is this implementation's code for a
	// rejected Response — not pinned by the handshake wire spec (which
	// only numbers 100-102), but surfaced the same way: Error: <n> <msg>
	// on the command channel, then close.
	ErrAuthorizationFailed = 103
)

// ProtocolError pairs a numeric error code with a human message, the
// payload of the Error: command and of the errorEvent observers.
type ProtocolError struct {
	Code    int
	Message string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("sourcesession: error %d: %s", e.Code, e.Message)
}

// channelsFor returns the (audio, cmd) channel identifiers and a fresh
// codec for the given handshake major version, per the wire spec:
// v1 uses channel names "audio"/"cmd", v2 uses channel ids 0/1.
func channelsFor(major int) (audioChannel, cmdChannel string, codec sourceproto.Codec) {
	if major == 1 {
		return "audio", "cmd", sourceproto.NewV1Codec()
	}
	return "0", "1", sourceproto.NewV2Codec()
}
