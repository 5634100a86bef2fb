package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/glizzus/murmur/internal/audio"
	"github.com/glizzus/murmur/internal/client"
	"github.com/glizzus/murmur/internal/config"
	"github.com/glizzus/murmur/internal/device"
	"github.com/glizzus/murmur/internal/event"
	"github.com/glizzus/murmur/internal/metrics"
	"github.com/glizzus/murmur/internal/mumbleproto"
	"github.com/glizzus/murmur/internal/opus"
)

func newLogger() (*slog.Logger, error) {
	logConfig, err := config.NewLogConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load log config: %w", err)
	}
	level, err := logConfig.SlogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// logEvents writes the events a person watching the client cares about.
func logEvents(logger *slog.Logger, bus *event.Bus) {
	bus.Subscribe(func(e event.Event) {
		switch e := e.(type) {
		case event.ServerVersion:
			logger.Info("Server version", "version", e.Version.String(), "release", e.Release)
		case event.Synced:
			logger.Info("Synced", "session", e.SelfSession, "welcome", e.WelcomeText)
		case event.Rejected:
			logger.Error("Rejected by server", "type", e.Type.String(), "reason", e.Reason)
		case event.TextMessage:
			logger.Info("Text message", "actor", e.Actor, "message", e.Message)
		case event.UserJoined:
			logger.Info("User joined", "session", e.Session)
		case event.UserLeft:
			logger.Info("User left", "session", e.Session, "reason", e.Reason)
		case event.UserChangedChannel:
			logger.Info("User moved", "session", e.Session, "from", e.From, "to", e.To)
		case event.UserTalking:
			logger.Debug("User talking", "session", e.Session, "talking", e.Talking)
		case event.ModeChanged:
			logger.Warn("Voice transport changed", "tunneling", e.Tunneling)
		case event.PermissionDenied:
			logger.Warn("Permission denied", "type", e.DenyType, "reason", e.Reason)
		case event.Stats:
			logger.Debug("Ping",
				"tcpAvg", e.TCP.Average, "udpAvg", e.UDP.Average,
				"good", e.Crypt.Good, "late", e.Crypt.Late, "lost", e.Crypt.Lost)
		}
	})
}

func runClientForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	serverConfig, err := config.NewServerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load server config: %w", err)
	}
	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load audio config: %w", err)
	}
	metricsConfig, err := config.NewMetricsConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load metrics config: %w", err)
	}

	trust, err := serverConfig.Trust()
	if err != nil {
		return err
	}
	identity, err := serverConfig.Identity()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	c := client.New(client.Config{
		Addr:            serverConfig.Addr,
		Trust:           trust,
		ForceTCP:        serverConfig.ForceTCP,
		JitterThreshold: audioConfig.JitterFrames * audio.FrameSize,
	}, client.WithLogger(logger), client.WithMetrics(m))
	logEvents(logger, c.Events())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Connect(ctx, identity); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Disconnect()

	if err := c.Authenticate(serverConfig.Username, serverConfig.Password, mumbleproto.ClientTypeRegular, serverConfig.Tokens...); err != nil {
		return err
	}

	loop := audio.Loop{Interval: audioConfig.Interval}
	renderer := audio.NewRenderer(c.Audio(), audio.WithRenderLoop(loop), audio.WithRenderLogger(logger))
	output, err := device.OpenOutput(audioConfig.Playback)
	if err != nil {
		return err
	}
	if err := renderer.SetOutput(ctx, output); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	renderer.SetVolume(audioConfig.Volume)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return ignoreCanceled(renderer.Run(ctx))
	})

	if audioConfig.Capture != "none" {
		encoder, err := opus.NewEncoder(audioConfig.Bitrate)
		if err != nil {
			return err
		}
		tx := client.NewTransmitter(c, encoder)
		capturer := audio.NewCapturer(tx.Consume, audio.WithCaptureLoop(loop), audio.WithCaptureLogger(logger))
		input, err := device.OpenInput(audioConfig.Capture)
		if err != nil {
			return err
		}
		if err := capturer.SetInput(ctx, input); err != nil {
			return fmt.Errorf("failed to start capture: %w", err)
		}
		group.Go(func() error {
			err := capturer.Run(ctx)
			if flushErr := tx.Flush(); flushErr != nil {
				logger.Debug("Failed to end voice burst", slog.Any("error", flushErr))
			}
			return ignoreCanceled(err)
		})
	}

	if metricsConfig.Addr != "" {
		group.Go(func() error {
			return ignoreCanceled(metrics.Serve(ctx, metricsConfig.Addr, registry, logger))
		})
	}

	group.Go(func() error {
		select {
		case <-c.Done():
			return errors.New("disconnected from server")
		case <-ctx.Done():
			return nil
		}
	})

	return group.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, audio.ErrStopped) {
		return nil
	}
	return err
}

func main() {
	if err := runClientForever(); err != nil {
		log.Fatalf("failed to run client: %v", err)
	}
}
