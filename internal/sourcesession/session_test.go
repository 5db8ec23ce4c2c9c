/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sourcesession

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_radio/internal/sourceproto"
)

func TestComputeResponse_MatchesVector(t *testing.T) {
	got := computeResponse("pw", "abc", "xyz")

	step1 := hashHex("pw" + "abc")
	want := hashHex(step1 + "xyz")

	if got != want {
		t.Fatalf("computeResponse = %q, want %q", got, want)
	}
	if len(got) != 40 {
		t.Fatalf("response length = %d, want 40 (SHA-1 hex)", len(got))
	}
}

func TestMusicInfo_EncodeV1IsFormURLEncoded(t *testing.T) {
	tag := MusicInfo{"song": "Test Song"}
	encoded := string(tag.encode(1, 42))

	if !containsPair(encoded, "offset=42") {
		t.Fatalf("v1 encoding %q missing offset=42", encoded)
	}
}

func TestMusicInfo_EncodeV2IsJSON(t *testing.T) {
	tag := MusicInfo{"song": "Test Song"}
	encoded := string(tag.encode(2, 42))

	if !containsPair(encoded, `"offset":42`) {
		t.Fatalf("v2 encoding %q missing offset field", encoded)
	}
}

func TestMusicInfo_DecodeRoundTrip(t *testing.T) {
	for _, major := range []int{1, 2} {
		tag := MusicInfo{"song": "Test Song", "artist": "A & B"}
		body := tag.encode(major, 1234)

		decoded, offset, err := decodeMusicInfo(major, string(body))
		if err != nil {
			t.Fatalf("decodeMusicInfo(v%d): %v", major, err)
		}
		if offset != 1234 {
			t.Fatalf("v%d offset = %d, want 1234", major, offset)
		}
		if decoded["song"] != "Test Song" || decoded["artist"] != "A & B" {
			t.Fatalf("v%d decoded tag = %v", major, decoded)
		}
		if _, ok := decoded["offset"]; ok {
			t.Fatalf("v%d decoded tag still contains offset key", major)
		}
	}
}

func containsPair(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// stubAuth implements Authenticator against a single in-memory record.
type stubAuth struct {
	creds Credentials
}

func (a stubAuth) Lookup(_ context.Context, user string) (Credentials, error) {
	if user != a.creds.User {
		return Credentials{}, errors.New("no such user")
	}
	return a.creds, nil
}

// stubSink implements AudioSink, recording everything it receives.
type stubSink struct {
	mu        sync.Mutex
	writes    [][]byte
	tags      map[string]string
	tagOffset int64
}

func (s *stubSink) Write(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), audio...)
	s.writes = append(s.writes, cp)
	return nil
}

func (s *stubSink) UpdateMusicInfo(tag map[string]string, offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = tag
	s.tagOffset = offset
}

func (s *stubSink) lastTag() (map[string]string, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags, s.tagOffset
}

func (s *stubSink) totalBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		n += len(w)
	}
	return n
}

func TestSession_HandshakeAuthorizeAndAudioRoundTrip(t *testing.T) {
	for _, major := range []int{1, 2} {
		major := major
		t.Run(protocolLabel(major), func(t *testing.T) {
			clientConn, serverConn := net.Pipe()
			defer clientConn.Close()
			defer serverConn.Close()

			logger := zerolog.Nop()
			sink := &stubSink{}
			auth := stubAuth{creds: Credentials{User: "dj", PasswordHash: "secrethash", MountName: "main"}}

			server := NewIngestSession(auth, sink, logger)
			client := NewSourceSession("dj", "secrethash", major, 0, logger)

			var authorizedCount, listenerEvents, lastListenerCount int
			var mu sync.Mutex
			client.Authorized.Subscribe(func(struct{}) {
				mu.Lock()
				authorizedCount++
				mu.Unlock()
			})
			client.ListenerCountChanged.Subscribe(func(n int) {
				mu.Lock()
				listenerEvents++
				lastListenerCount = n
				mu.Unlock()
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			serverDone := make(chan error, 1)
			go func() {
				serverDone <- server.Serve(ctx, serverConn)
			}()

			clientDone := make(chan error, 1)
			go func() {
				clientDone <- client.Run(ctx, clientConn)
			}()

			waitForState(t, client, StateBroadcasting)

			if err := client.Write([]byte("abcd")); err != nil {
				t.Fatalf("Write: %v", err)
			}

			deadline := time.Now().Add(2 * time.Second)
			for sink.totalBytes() < 4 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			if sink.totalBytes() != 4 {
				t.Fatalf("sink received %d bytes, want 4", sink.totalBytes())
			}

			mu.Lock()
			gotAuthorized := authorizedCount
			mu.Unlock()
			if gotAuthorized != 1 {
				t.Fatalf("authorizedCount = %d, want 1", gotAuthorized)
			}

			if err := server.SetListenerCount(42); err != nil {
				t.Fatalf("SetListenerCount: %v", err)
			}
			deadline = time.Now().Add(2 * time.Second)
			for client.ListenerCount() != 42 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			if client.ListenerCount() != 42 {
				t.Fatalf("client listener count = %d, want 42", client.ListenerCount())
			}
			mu.Lock()
			gotEvents, gotLast := listenerEvents, lastListenerCount
			mu.Unlock()
			if gotEvents != 1 || gotLast != 42 {
				t.Fatalf("listener events = %d (last %d), want exactly 1 event of 42", gotEvents, gotLast)
			}

			if err := client.UpdateMusicInfo(MusicInfo{"song": "Test Song"}); err != nil {
				t.Fatalf("UpdateMusicInfo: %v", err)
			}
			deadline = time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if tag, _ := sink.lastTag(); tag != nil {
					break
				}
				time.Sleep(time.Millisecond)
			}
			tag, tagOffset := sink.lastTag()
			if tag == nil || tag["song"] != "Test Song" {
				t.Fatalf("sink tag = %v, want song=Test Song", tag)
			}
			if tagOffset != 4 {
				t.Fatalf("sink tag offset = %d, want 4 (bytes written before the tag)", tagOffset)
			}

			cancel()
			<-serverDone
			<-clientDone
		})
	}
}

func protocolLabel(major int) string {
	if major == 1 {
		return "v1"
	}
	return "v2"
}

func waitForState(t *testing.T, s *SourceSession, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session did not reach state %s within deadline (last=%s)", want, s.State())
}

// TestClient_ChallengeBeforeSalt scripts the server side by hand to
// deliver the challenge first; the client must hold its Response until
// both halves have arrived.
func TestClient_ChallengeBeforeSalt(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	logger := zerolog.Nop()
	client := NewSourceSession("dj", "secrethash", 2, 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientDone := make(chan error, 1)
	go func() { clientDone <- client.Run(ctx, clientConn) }()

	reader := bufio.NewReader(serverConn)
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	if _, err := serverConn.Write([]byte("OK\r\n")); err != nil {
		t.Fatalf("send OK: %v", err)
	}

	codec := sourceproto.NewV2Codec()
	lines := sourceproto.NewLineCodec()

	readCommand := func() (string, string) {
		t.Helper()
		buf := make([]byte, 1024)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if line, ok := lines.GetLine(); ok {
				name, value, _ := splitCommandLine(line)
				return name, value
			}
			if frame, ok := codec.GetFrame(); ok {
				lines.Feed(frame.Body)
				continue
			}
			serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, err := reader.Read(buf)
			if err != nil {
				t.Fatalf("read frame bytes: %v", err)
			}
			codec.Feed(buf[:n])
		}
		t.Fatal("timed out waiting for a command")
		return "", ""
	}

	sendCommand := func(name, value string) {
		t.Helper()
		chunks, err := codec.Encode("1", []byte(name+": "+value+"\r\n"))
		if err != nil {
			t.Fatalf("encode %s: %v", name, err)
		}
		for _, chunk := range chunks {
			if _, err := serverConn.Write(chunk); err != nil {
				t.Fatalf("send %s: %v", name, err)
			}
		}
	}

	if name, value := readCommand(); name != "User" || value != "dj" {
		t.Fatalf("first command = %s: %s, want User: dj", name, value)
	}

	sendCommand("Challenge", "xyz")
	sendCommand("Salt", "abc")

	name, value := readCommand()
	if name != "Response" {
		t.Fatalf("command after salt = %s, want Response", name)
	}
	if want := computeResponse("secrethash", "abc", "xyz"); value != want {
		t.Fatalf("Response = %q, want %q", value, want)
	}

	cancel()
	<-clientDone
}

func TestSession_RejectsWrongResponse(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	logger := zerolog.Nop()
	sink := &stubSink{}
	auth := stubAuth{creds: Credentials{User: "dj", PasswordHash: "secrethash", MountName: "main"}}

	server := NewIngestSession(auth, sink, logger)
	client := NewSourceSession("dj", "wrongpassword", 2, 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Serve(ctx, serverConn) }()

	clientDone := make(chan error, 1)
	go func() { clientDone <- client.Run(ctx, clientConn) }()

	select {
	case err := <-serverDone:
		if err == nil {
			t.Fatal("expected server to reject an invalid Response, got nil error")
		}
		var protoErr ProtocolError
		if !errors.As(err, &protoErr) {
			t.Fatalf("expected ProtocolError, got %v", err)
		}
		if protoErr.Code != ErrAuthorizationFailed {
			t.Fatalf("error code = %d, want %d", protoErr.Code, ErrAuthorizationFailed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not reject invalid response within deadline")
	}

	cancel()
	<-clientDone
}
