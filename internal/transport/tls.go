package transport

import (
	"bytes"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// TrustPolicy decides how the server certificate is verified.
type TrustPolicy func(cfg *tls.Config)

// TrustAll accepts any server certificate. Most Mumble servers run with
// self-signed certificates, so this is the default.
func TrustAll() TrustPolicy {
	return func(cfg *tls.Config) {
		cfg.InsecureSkipVerify = true
	}
}

// TrustPool verifies the server chain against pool.
func TrustPool(pool *x509.CertPool) TrustPolicy {
	return func(cfg *tls.Config) {
		cfg.RootCAs = pool
	}
}

var ErrFingerprintMismatch = errors.New("server certificate does not match pinned fingerprint")

// TrustPinned accepts only a leaf certificate whose SHA-256 digest equals
// fingerprint.
func TrustPinned(fingerprint [sha256.Size]byte) TrustPolicy {
	return func(cfg *tls.Config) {
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return ErrFingerprintMismatch
			}
			sum := sha256.Sum256(rawCerts[0])
			if !bytes.Equal(sum[:], fingerprint[:]) {
				return fmt.Errorf("%w: got %s", ErrFingerprintMismatch, hex.EncodeToString(sum[:]))
			}
			return nil
		}
	}
}

// ParseFingerprint decodes a hex SHA-256 fingerprint, with or without
// colon separators.
func ParseFingerprint(s string) ([sha256.Size]byte, error) {
	var fp [sha256.Size]byte
	b, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
	if err != nil {
		return fp, fmt.Errorf("parse fingerprint: %w", err)
	}
	if len(b) != sha256.Size {
		return fp, fmt.Errorf("parse fingerprint: want %d bytes, got %d", sha256.Size, len(b))
	}
	copy(fp[:], b)
	return fp, nil
}

func clientTLSConfig(serverName string, identity *tls.Certificate, trust TrustPolicy) *tls.Config {
	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
	if identity != nil {
		cfg.Certificates = []tls.Certificate{*identity}
	}
	if trust == nil {
		trust = TrustAll()
	}
	trust(cfg)
	return cfg
}
