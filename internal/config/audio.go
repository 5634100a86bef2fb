package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type AudioConfig struct {
	Interval     time.Duration `env:"AUDIO_INTERVAL, default=20ms"`
	JitterFrames int           `env:"AUDIO_JITTER_FRAMES, default=3"`
	Bitrate      int           `env:"AUDIO_BITRATE, default=40000"`
	Volume       float64       `env:"AUDIO_VOLUME, default=1"`
	// Capture and Playback name the devices; see device.OpenInput and
	// device.OpenOutput.
	Capture  string `env:"AUDIO_CAPTURE, default=none"`
	Playback string `env:"AUDIO_PLAYBACK, default=default"`
}

func NewAudioConfigFromEnv() (*AudioConfig, error) {
	var cfg AudioConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("AUDIO_INTERVAL must be positive, got %s", cfg.Interval)
	}
	if cfg.JitterFrames < 0 {
		return nil, fmt.Errorf("AUDIO_JITTER_FRAMES must not be negative, got %d", cfg.JitterFrames)
	}
	if cfg.Volume < 0 || cfg.Volume > 1 {
		return nil, fmt.Errorf("AUDIO_VOLUME must be between 0 and 1, got %v", cfg.Volume)
	}
	return &cfg, nil
}
