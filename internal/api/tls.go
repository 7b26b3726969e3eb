// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"crypto/tls"
	"fmt"
	"os"

	"github.com/tailscale/tscert"
)

// serverTLS builds the TLS configuration for cfg. It returns nil when the
// panel should serve plain HTTP. Certificate files are loaded here so a bad
// pair fails at startup rather than on the first handshake.
func serverTLS(cfg ServerConfig) (*tls.Config, error) {
	if cfg.TailscaleTLS {
		if cfg.TLSCert != "" || cfg.TLSKey != "" {
			return nil, fmt.Errorf("tailscale_tls cannot be combined with tls_cert/tls_key")
		}
		return &tls.Config{GetCertificate: tscert.GetCertificate}, nil
	}

	enabled, err := CheckTLSConfig(cfg.TLSCert, cfg.TLSKey)
	if err != nil || !enabled {
		return nil, err
	}

	pair, err := tls.LoadX509KeyPair(expandPath(cfg.TLSCert), expandPath(cfg.TLSKey))
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{pair}}, nil
}

// CheckTLSConfig reports whether cert and key paths enable HTTPS. Setting
// only one of them, or naming a missing file, is an error.
func CheckTLSConfig(certPath, keyPath string) (bool, error) {
	if certPath == "" && keyPath == "" {
		return false, nil
	}
	if certPath == "" || keyPath == "" {
		return false, fmt.Errorf("both tls_cert and tls_key must be specified (got cert=%q, key=%q)", certPath, keyPath)
	}

	for name, path := range map[string]string{"tls_cert": certPath, "tls_key": keyPath} {
		if _, err := os.Stat(expandPath(path)); err != nil {
			return false, fmt.Errorf("%s file not found: %s", name, expandPath(path))
		}
	}
	return true, nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
