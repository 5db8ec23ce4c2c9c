/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

//go:build linux

package relay

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// setKeepAlive enables TCP keep-alive probing on conn and tunes its
// idle/interval/probe-count parameters at the socket level, the Go
// equivalent of the original client's setKeepAlive helper.
func setKeepAlive(conn net.Conn, opts KeepAliveOptions) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return fmt.Errorf("relay: connection is not a *net.TCPConn")
	}

	if err := tcpConn.SetKeepAlive(true); err != nil {
		return fmt.Errorf("relay: enable keep-alive: %w", err)
	}

	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("relay: get raw conn: %w", err)
	}

	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		if opts.Idle > 0 {
			if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, int(opts.Idle.Seconds())); err != nil {
				sockErr = fmt.Errorf("set TCP_KEEPIDLE: %w", err)
				return
			}
		}
		if opts.Interval > 0 {
			if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(opts.Interval.Seconds())); err != nil {
				sockErr = fmt.Errorf("set TCP_KEEPINTVL: %w", err)
				return
			}
		}
		if opts.Probes > 0 {
			if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, opts.Probes); err != nil {
				sockErr = fmt.Errorf("set TCP_KEEPCNT: %w", err)
				return
			}
		}
	})
	if ctrlErr != nil {
		return fmt.Errorf("relay: control raw conn: %w", ctrlErr)
	}
	if sockErr != nil {
		return fmt.Errorf("relay: %w", sockErr)
	}
	return nil
}
