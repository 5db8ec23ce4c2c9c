/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_radio/internal/logging"
	"github.com/friendsincode/grimnir_radio/internal/sourcesession"
)

var (
	host      string
	port      int
	user      string
	password  string
	major     int
	inputFile string
	song      string
	chunkSize int
	interval  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "djsource",
	Short: "Reference MR.DJ broadcasting client",
	Long: `djsource connects to a grimnirradio source listener, authenticates with
the challenge-response handshake, and streams audio bytes from a file or
stdin over the negotiated protocol version.

Examples:
  djsource --host localhost --user main --password secret --input show.mp3
  arecord -f cd -t raw | djsource --host localhost --user main --password secret`,
	RunE: runSource,
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "localhost", "Source server host")
	rootCmd.Flags().IntVar(&port, "port", 8001, "Source server port")
	rootCmd.Flags().StringVar(&user, "user", "", "Mount user name (required)")
	rootCmd.Flags().StringVar(&password, "password", "", "Source password (required)")
	rootCmd.Flags().IntVar(&major, "protocol", 2, "Protocol major version (1 or 2)")
	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Audio input file (default: stdin)")
	rootCmd.Flags().StringVar(&song, "song", "", "Now-playing title sent once authorized")
	rootCmd.Flags().IntVar(&chunkSize, "chunk", 4096, "Bytes per write")
	rootCmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "Delay between writes")
	rootCmd.MarkFlagRequired("user")
	rootCmd.MarkFlagRequired("password")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSource(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(os.Getenv("GRIMNIR_ENV"))

	var input io.Reader = os.Stdin
	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("dial %s:%d: %w", host, port, err)
	}

	session := sourcesession.NewSourceSession(user, password, major, 0, logger)

	authorized := make(chan struct{}, 1)
	session.Authorized.Subscribe(func(struct{}) {
		select {
		case authorized <- struct{}{}:
		default:
		}
	})
	session.ErrorEvent.Subscribe(func(e sourcesession.ProtocolError) {
		logger.Error().Int("code", e.Code).Str("message", e.Message).Msg("server error")
		cancel()
	})
	session.ListenerCountChanged.Subscribe(func(n int) {
		logger.Info().Int("listeners", n).Msg("listener count")
	})

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx, conn) }()

	select {
	case <-authorized:
	case err := <-done:
		return fmt.Errorf("session ended before authorization: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
	logger.Info().Str("user", user).Msg("authorized, streaming")

	if song != "" {
		if err := session.UpdateMusicInfo(sourcesession.MusicInfo{"song": song}); err != nil {
			logger.Warn().Err(err).Msg("failed to send music info")
		}
	}

	buf := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return session.Close()
		case err := <-done:
			return err
		default:
		}

		n, readErr := input.Read(buf)
		if n > 0 {
			if err := session.Write(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			logger.Info().Msg("input drained")
			return session.Close()
		}
		if readErr != nil {
			return fmt.Errorf("read input: %w", readErr)
		}
		time.Sleep(interval)
	}
}
