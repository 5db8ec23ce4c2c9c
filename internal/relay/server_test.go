/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_radio/internal/audiostream"
)

func startTestServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	srv := NewServer(cfg, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Reuse the server's accept loop against our own listener so the
	// test can pick an ephemeral port.
	srv2 := srv
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv2.handleConn(conn, 1)
		}
	}()
	t.Cleanup(func() { ln.Close() })

	return srv, ln.Addr().String()
}

func readHeader(t *testing.T, conn net.Conn) responseHeader {
	t.Helper()
	reader := bufio.NewReader(conn)
	data, err := reader.ReadString('\n')
	_ = data
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	// ReadString stops at the first \n in \r\n\r\n; reassemble the full
	// header by reading until we've seen the full terminator.
	var buf bytes.Buffer
	buf.WriteString(data)
	for !bytes.Contains(buf.Bytes(), []byte(endOfHeader)) {
		b, err := reader.ReadByte()
		if err != nil {
			t.Fatalf("read header: %v", err)
		}
		buf.WriteByte(b)
	}
	idx := bytes.Index(buf.Bytes(), []byte(endOfHeader))
	var resp responseHeader
	if err := json.Unmarshal(buf.Bytes()[:idx], &resp); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	return resp
}

func TestServer_RequestUnknownResource(t *testing.T) {
	srv, addr := startTestServer(t, Config{})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	header, _ := makeHeader(requestHeader{Name: "missing"})
	if _, err := conn.Write(header); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp := readHeader(t, conn)
	if resp.Result != resultNotFound {
		t.Fatalf("result = %q, want %q", resp.Result, resultNotFound)
	}
	_ = srv
}

func TestServer_HeaderTooLong(t *testing.T) {
	cfg := Config{HeaderLimitBytes: 16}
	_, addr := startTestServer(t, cfg)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Send bytes well past the 16-byte limit without a terminator.
	if _, err := conn.Write(bytes.Repeat([]byte("x"), 64)); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, _ := conn.Read(buf)
	if n == 0 {
		t.Fatal("expected a bad-request error header before the server closed the connection")
	}
}

func TestServer_FanOutTwoReadersNoGapsOrDuplicates(t *testing.T) {
	srv, addr := startTestServer(t, Config{})

	ring := audiostream.NewRing(4, 8, 0)
	srv.AddResource("live", ring)

	connA, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial A: %v", err)
	}
	defer connA.Close()
	header, _ := makeHeader(requestHeader{Name: "live"})
	connA.Write(header)
	readHeader(t, connA)

	connB, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial B: %v", err)
	}
	defer connB.Close()
	connB.Write(header)
	readHeader(t, connB)

	deadline := time.Now().Add(2 * time.Second)
	for srv.CountOfStreams() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if srv.CountOfStreams() != 2 {
		t.Fatalf("CountOfStreams = %d, want 2", srv.CountOfStreams())
	}

	payload := []byte("123456789012345678901234") // 24 bytes, divisible by block size 4
	srv.Write("live", payload)

	gotA := readExactly(t, connA, len(payload))
	gotB := readExactly(t, connB, len(payload))

	if !bytes.Equal(gotA, gotB) {
		t.Fatalf("readers diverged: A=%q B=%q", gotA, gotB)
	}
	if !bytes.Equal(gotA, payload) {
		t.Fatalf("reader stream = %q, want %q (no gaps or duplicates)", gotA, payload)
	}
}

func TestReader_OutOfBufferDisconnect(t *testing.T) {
	ring := audiostream.NewRing(4, 4, 0)
	res := newResource("live", ring, zerolog.Nop())

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	r := newReader(serverSide, 1, zerolog.Nop())
	r.resource = res
	res.add(r)

	lost := make(chan struct{}, 1)
	r.ConnectionLost.Subscribe(func(struct{}) { lost <- struct{}{} })

	// Overflow the 16-byte window so the reader's offset 0 falls behind
	// base, then drive production.
	ring.Write(bytes.Repeat([]byte("x"), 64))
	r.produce()

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("reader was not disconnected after falling out of the window")
	}
	if res.ReaderCount() != 0 {
		t.Fatalf("ReaderCount = %d, want 0 after out-of-buffer close", res.ReaderCount())
	}
}

// TestResource_ProduceAfterExternalRingWrite covers the ingest bridge:
// the ring gains data without going through Resource.write, and a bare
// Produce call must still drive it out to the reader.
func TestResource_ProduceAfterExternalRingWrite(t *testing.T) {
	ring := audiostream.NewRing(4, 4, 0)
	res := newResource("live", ring, zerolog.Nop())

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	r := newReader(serverSide, 1, zerolog.Nop())
	r.resource = res
	res.add(r)

	ring.Write([]byte("abcdefgh"))
	go res.Produce()

	got := readExactly(t, clientSide, 8)
	if !bytes.Equal(got, []byte("abcdefgh")) {
		t.Fatalf("reader got %q, want %q", got, "abcdefgh")
	}
}

func readExactly(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		k, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read: %v (got %d/%d bytes)", err, len(out), n)
		}
		out = append(out, buf[:k]...)
	}
	return out
}
