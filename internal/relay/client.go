/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_radio/internal/observer"
)

// errKeepAliveTuningUnsupported reports that the platform applied
// default keep-alive but could not honor the idle/interval/probe
// parameters.
var errKeepAliveTuningUnsupported = errors.New("relay: per-socket keep-alive tuning unsupported on this platform")

// KeepAliveOptions tunes per-socket TCP keep-alive probing, the Go
// equivalent of the original client's setKeepAlive call.
type KeepAliveOptions struct {
	Idle     time.Duration
	Interval time.Duration
	Probes   int
}

// ClientConfig configures a Client's connection to an upstream relay.
type ClientConfig struct {
	Host      string
	Port      int
	Name      string
	KeepAlive *KeepAliveOptions
}

// Client is the pull side of the relay protocol: it connects upstream,
// requests a named resource, and forwards the raw audio bytes that
// follow to subscribers of AudioReceived.
type Client struct {
	cfg    ClientConfig
	logger zerolog.Logger

	ConnMade      observer.Subject[struct{}]
	ConnFailed    observer.Subject[error]
	ConnLost      observer.Subject[error]
	Streaming     observer.Subject[int64]
	AudioReceived observer.Subject[[]byte]

	conn        net.Conn
	beginOffset int64
}

// NewClient returns a client configured to pull cfg.Name from
// cfg.Host:cfg.Port.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "relay-client").Str("resource", cfg.Name).Logger(),
	}
}

// BeginOffset returns the offset the server told this client to start
// reading from. Valid only after Streaming has fired.
func (c *Client) BeginOffset() int64 {
	return c.beginOffset
}

// Run connects to the upstream relay, performs the header handshake,
// and then streams audio bytes until ctx is canceled or the connection
// is lost. It blocks; callers typically run it in its own goroutine,
// and reconnect by calling Run again.
func (c *Client) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.ConnFailed.Notify(err)
		return fmt.Errorf("relay: dial %s: %w", addr, err)
	}
	c.conn = conn
	defer conn.Close()

	if c.cfg.KeepAlive != nil {
		switch err := setKeepAlive(conn, *c.cfg.KeepAlive); {
		case errors.Is(err, errKeepAliveTuningUnsupported):
			c.logger.Warn().Msg("relay client: keep-alive tuning unsupported, using platform defaults")
		case err != nil:
			c.logger.Error().Err(err).Msg("relay client: failed to set keep alive")
		}
	}

	c.ConnMade.Notify(struct{}{})
	c.logger.Info().Str("addr", addr).Msg("relay client connected")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	header, err := makeHeader(requestHeader{Name: c.cfg.Name})
	if err != nil {
		return err
	}
	if _, err := conn.Write(header); err != nil {
		err = fmt.Errorf("relay: send request header: %w", err)
		c.ConnLost.Notify(err)
		return err
	}

	err = c.readLoop(conn)
	c.ConnLost.Notify(err)
	return err
}

func (c *Client) readLoop(conn net.Conn) error {
	buf := make([]byte, 4096)
	var accumulated []byte
	streaming := false

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if !streaming {
				accumulated = append(accumulated, buf[:n]...)
				var resp struct {
					responseHeader
					Error string `json:"error"`
				}
				remainder, ok, parseErr := parseHeader(accumulated, &resp)
				if parseErr != nil {
					return fmt.Errorf("relay: parse response header: %w", parseErr)
				}
				if ok {
					accumulated = nil
					if resp.Error != "" {
						rejected := fmt.Errorf("relay: server rejected request: %s", resp.Error)
						c.ConnFailed.Notify(rejected)
						return rejected
					}
					if resp.Result != resultFound {
						notFound := fmt.Errorf("relay: resource %q not found on server", c.cfg.Name)
						c.ConnFailed.Notify(notFound)
						return notFound
					}
					c.beginOffset = resp.BeginOffset
					streaming = true
					c.Streaming.Notify(resp.BeginOffset)
					if len(remainder) > 0 {
						c.AudioReceived.Notify(remainder)
					}
				} else if len(accumulated) > HeaderLimit {
					return fmt.Errorf("relay: response header exceeded %d bytes", HeaderLimit)
				}
			} else {
				chunk := append([]byte(nil), buf[:n]...)
				c.AudioReceived.Notify(chunk)
			}
		}
		if err != nil {
			return fmt.Errorf("relay: read: %w", err)
		}
	}
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
