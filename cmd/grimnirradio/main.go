package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/friendsincode/grimnir_radio/internal/audiostream"
	"github.com/friendsincode/grimnir_radio/internal/config"
	"github.com/friendsincode/grimnir_radio/internal/events"
	"github.com/friendsincode/grimnir_radio/internal/ingest"
	"github.com/friendsincode/grimnir_radio/internal/logging"
	"github.com/friendsincode/grimnir_radio/internal/relay"
	"github.com/friendsincode/grimnir_radio/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Environment)
	logger.Info().Msg("Grimnir Radio starting")

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize server")
	}

	httpServer := srv.HTTPServer()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var ingestServer *ingest.Server
	if cfg.SourceEnabled {
		ingestServer = ingest.NewServer(ingest.Config{
			Bind:       cfg.SourceBind,
			Port:       cfg.SourcePort,
			BlockSize:  cfg.SourceRingBlockSize,
			BlockCount: cfg.SourceRingBlockCount,
		}, srv.DB(), srv.Bus(), logger)

		go func() {
			if err := ingestServer.ListenAndServe(bgCtx); err != nil {
				logger.Error().Err(err).Msg("ingest server error")
			}
		}()
	}

	var relayServer *relay.Server
	if cfg.RelayEnabled {
		relayServer = relay.NewServer(relay.Config{
			Bind:             cfg.RelayBind,
			Port:             cfg.RelayPort,
			HeaderLimitBytes: cfg.RelayHeaderLimitBytes,
		}, logger)

		go func() {
			if err := relayServer.ListenAndServe(bgCtx); err != nil {
				logger.Error().Err(err).Msg("relay server error")
			}
		}()
	}

	if ingestServer != nil && relayServer != nil {
		connects := srv.Bus().Subscribe(events.EventDJConnect)
		go func() {
			bridged := make(map[string]bool)
			for payload := range connects {
				mountName, ok := payload["mount"].(string)
				if !ok || mountName == "" {
					continue
				}
				mount := ingestServer.Mount(mountName)
				res := relayServer.EnsureResource(mountName, mount.Ring)
				if !bridged[mountName] {
					bridged[mountName] = true
					// The mount and the relay resource share one ring, so
					// the bridge only has to re-drive the readers.
					mount.DataReceived.Subscribe(func([]byte) { res.Produce() })
				}
			}
		}()
	}

	// Pull mode: mirror one named resource from an upstream relay into
	// this server's resource table, so downstream relays and listeners
	// can fan out from here instead of the origin.
	if relayServer != nil && cfg.RelayPullHost != "" && cfg.RelayPullName != "" {
		puller := relay.NewClient(relay.ClientConfig{
			Host: cfg.RelayPullHost,
			Port: cfg.RelayPullPort,
			Name: cfg.RelayPullName,
			KeepAlive: &relay.KeepAliveOptions{
				Idle:     cfg.SourceKeepAliveIdle,
				Interval: cfg.SourceKeepAliveInterval,
				Probes:   cfg.SourceKeepAliveProbes,
			},
		}, logger)

		puller.Streaming.Subscribe(func(begin int64) {
			// Reattach the mirrored ring at the upstream's offset so
			// local readers see the same absolute byte positions.
			ring := audiostream.NewRing(cfg.SourceRingBlockSize, cfg.SourceRingBlockCount, begin)
			relayServer.AddResource(cfg.RelayPullName, ring)
		})
		puller.AudioReceived.Subscribe(func(data []byte) {
			relayServer.Write(cfg.RelayPullName, data)
		})

		go func() {
			for {
				if err := puller.Run(bgCtx); err != nil {
					logger.Warn().Err(err).Msg("relay pull disconnected, retrying")
				}
				select {
				case <-bgCtx.Done():
					return
				case <-time.After(5 * time.Second):
				}
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if ingestServer != nil {
		if err := ingestServer.Shutdown(timeoutCtx); err != nil {
			logger.Error().Err(err).Msg("ingest server shutdown failed")
		}
	}

	if relayServer != nil {
		if err := relayServer.Shutdown(timeoutCtx); err != nil {
			logger.Error().Err(err).Msg("relay server shutdown failed")
		}
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Grimnir Radio stopped")
}
