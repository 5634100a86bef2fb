package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/sethvargo/go-envconfig"

	"github.com/glizzus/murmur/internal/transport"
)

type ServerConfig struct {
	Addr     string   `env:"MUMBLE_ADDR, required"`
	Username string   `env:"MUMBLE_USERNAME, required"`
	Password string   `env:"MUMBLE_PASSWORD"`
	Tokens   []string `env:"MUMBLE_TOKENS"`
	// Fingerprint pins the server certificate by SHA-256 when set.
	Fingerprint string `env:"MUMBLE_FINGERPRINT"`
	Insecure    bool   `env:"MUMBLE_INSECURE, default=true"`
	CertFile    string `env:"MUMBLE_CERT_FILE"`
	KeyFile     string `env:"MUMBLE_KEY_FILE"`
	ForceTCP    bool   `env:"MUMBLE_FORCE_TCP"`
}

func NewServerConfigFromEnv() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ServerConfig) validate() error {
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("MUMBLE_CERT_FILE and MUMBLE_KEY_FILE must be set together")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("MUMBLE_ADDR must be host:port: %w", err)
	}
	return nil
}

// Identity loads the client certificate, or returns nil when none is
// configured.
func (c *ServerConfig) Identity() (*tls.Certificate, error) {
	if c.CertFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	return &cert, nil
}

// Trust picks the server certificate policy: a pinned fingerprint wins,
// then MUMBLE_INSECURE, then the system roots.
func (c *ServerConfig) Trust() (transport.TrustPolicy, error) {
	if c.Fingerprint != "" {
		fp, err := transport.ParseFingerprint(c.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("invalid MUMBLE_FINGERPRINT: %w", err)
		}
		return transport.TrustPinned(fp), nil
	}
	if c.Insecure {
		return transport.TrustAll(), nil
	}
	return transport.TrustPool(nil), nil
}
