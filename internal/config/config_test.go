package config_test

import (
	"crypto/tls"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/glizzus/murmur/internal/config"
)

func TestServerConfig(t *testing.T) {
	tc := []struct {
		name     string
		env      map[string]string
		expected *config.ServerConfig
		err      bool
	}{
		{
			name: "Minimal config uses defaults",
			env: map[string]string{
				"MUMBLE_ADDR":     "voice.example.com:64738",
				"MUMBLE_USERNAME": "murmur",
			},
			expected: &config.ServerConfig{
				Addr:     "voice.example.com:64738",
				Username: "murmur",
				Insecure: true,
			},
		},
		{
			name: "Tokens are comma separated",
			env: map[string]string{
				"MUMBLE_ADDR":      "127.0.0.1:64738",
				"MUMBLE_USERNAME":  "murmur",
				"MUMBLE_TOKENS":    "red,blue",
				"MUMBLE_FORCE_TCP": "true",
			},
			expected: &config.ServerConfig{
				Addr:     "127.0.0.1:64738",
				Username: "murmur",
				Tokens:   []string{"red", "blue"},
				Insecure: true,
				ForceTCP: true,
			},
		},
		{
			name: "Missing username is an error",
			env: map[string]string{
				"MUMBLE_ADDR": "127.0.0.1:64738",
			},
			err: true,
		},
		{
			name: "Address without port is an error",
			env: map[string]string{
				"MUMBLE_ADDR":     "voice.example.com",
				"MUMBLE_USERNAME": "murmur",
			},
			err: true,
		},
		{
			name: "Certificate without key is an error",
			env: map[string]string{
				"MUMBLE_ADDR":      "127.0.0.1:64738",
				"MUMBLE_USERNAME":  "murmur",
				"MUMBLE_CERT_FILE": "client.pem",
			},
			err: true,
		},
	}

	for _, testCase := range tc {
		t.Run(testCase.name, func(t *testing.T) {
			for k, v := range testCase.env {
				t.Setenv(k, v)
			}
			cfg, err := config.NewServerConfigFromEnv()
			if testCase.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(testCase.expected, cfg); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}

			identity, err := cfg.Identity()
			require.NoError(t, err)
			require.Nil(t, identity)
		})
	}
}

func TestAudioConfig(t *testing.T) {
	cfg, err := config.NewAudioConfigFromEnv()
	require.NoError(t, err)
	expected := &config.AudioConfig{
		Interval:     20 * time.Millisecond,
		JitterFrames: 3,
		Bitrate:      40000,
		Volume:       1,
		Capture:      "none",
		Playback:     "default",
	}
	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	t.Setenv("AUDIO_VOLUME", "1.5")
	_, err = config.NewAudioConfigFromEnv()
	require.Error(t, err)
}

func TestLogConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := config.NewLogConfigFromEnv()
	require.NoError(t, err)
	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)

	t.Setenv("LOG_LEVEL", "chatty")
	_, err = config.NewLogConfigFromEnv()
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("METRICS_ADDR=:9100\n"), 0o600))
	t.Setenv("METRICS_ADDR", "")
	os.Unsetenv("METRICS_ADDR")

	require.NoError(t, config.LoadEnv(path))
	cfg, err := config.NewMetricsConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.Addr)

	err = config.LoadEnv(filepath.Join(dir, "missing.env"))
	require.True(t, os.IsNotExist(err), err)
}

func TestServerConfigTrust(t *testing.T) {
	tc := []struct {
		name         string
		cfg          config.ServerConfig
		wantInsecure bool
		wantPinned   bool
		err          bool
	}{
		{name: "Insecure skips verification", cfg: config.ServerConfig{Insecure: true}, wantInsecure: true},
		{name: "Secure uses system roots", cfg: config.ServerConfig{}},
		{
			name:         "Fingerprint pins the certificate",
			cfg:          config.ServerConfig{Insecure: true, Fingerprint: strings.Repeat("ab:", 31) + "ab"},
			wantInsecure: true,
			wantPinned:   true,
		},
		{name: "Bad fingerprint is an error", cfg: config.ServerConfig{Fingerprint: "zz"}, err: true},
	}

	for _, testCase := range tc {
		t.Run(testCase.name, func(t *testing.T) {
			trust, err := testCase.cfg.Trust()
			if testCase.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			var tlsCfg tls.Config
			trust(&tlsCfg)
			require.Equal(t, testCase.wantInsecure, tlsCfg.InsecureSkipVerify)
			require.Equal(t, testCase.wantPinned, tlsCfg.VerifyPeerCertificate != nil)
		})
	}
}
