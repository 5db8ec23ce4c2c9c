/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

//go:build !linux

package relay

import (
	"fmt"
	"net"
)

// setKeepAlive on platforms without per-socket TCP_KEEPIDLE/KEEPINTVL/
// KEEPCNT tuning: enable default keep-alive and report that the
// requested tuning could not be applied so the caller can log it.
func setKeepAlive(conn net.Conn, opts KeepAliveOptions) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return fmt.Errorf("relay: connection is not a *net.TCPConn")
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		return fmt.Errorf("relay: enable keep-alive: %w", err)
	}
	if opts.Idle > 0 {
		if err := tcpConn.SetKeepAlivePeriod(opts.Idle); err != nil {
			return fmt.Errorf("relay: set keep-alive period: %w", err)
		}
	}
	return errKeepAliveTuningUnsupported
}
