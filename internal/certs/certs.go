// Package certs provides self-signed TLS certificates for serving the API
// over HTTPS on a workstation or private network.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultValidity is how long a generated certificate lasts.
	DefaultValidity = 365 * 24 * time.Hour
	// RenewBefore is how close to expiry a certificate is replaced.
	RenewBefore = 30 * 24 * time.Hour

	certFileName = "server.crt"
	keyFileName  = "server.key"
)

// DefaultHosts are the names a certificate covers when none are given.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// Manager supplies the server certificate.
type Manager interface {
	Certificate() (tls.Certificate, error)
}

// FileManager keeps a self-signed certificate and key in a directory,
// regenerating them when missing, unreadable, close to expiry or not
// covering the configured hosts.
type FileManager struct {
	now      func() time.Time
	dir      string
	hosts    []string
	validFor time.Duration
}

// NewFileManager creates a FileManager for dir covering hosts.
func NewFileManager(dir string, hosts ...string) *FileManager {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	return &FileManager{
		dir:      dir,
		hosts:    hosts,
		validFor: DefaultValidity,
		now:      time.Now,
	}
}

// Paths returns the certificate and key file locations.
func (m *FileManager) Paths() (certFile, keyFile string) {
	return filepath.Join(m.dir, certFileName), filepath.Join(m.dir, keyFileName)
}

// Certificate returns the stored certificate, generating a new one if the
// stored one cannot be used.
func (m *FileManager) Certificate() (tls.Certificate, error) {
	certFile, keyFile := m.Paths()

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	switch {
	case os.IsNotExist(err):
		slog.Debug("No TLS certificate yet", "dir", m.dir)
	case err != nil:
		slog.Warn("Replacing unreadable TLS certificate", "error", err)
	default:
		reason := m.unusable(cert)
		if reason == nil {
			return cert, nil
		}
		slog.Info("Replacing TLS certificate", "reason", reason)
	}

	return m.generate()
}

// unusable returns why cert should be replaced, or nil.
func (m *FileManager) unusable(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("no certificates found")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := m.now()
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate not yet valid")
	}
	if now.Add(RenewBefore).After(leaf.NotAfter) {
		return fmt.Errorf("certificate expires %s", leaf.NotAfter.Format(time.DateOnly))
	}
	for _, host := range m.hosts {
		if err := leaf.VerifyHostname(host); err != nil {
			return fmt.Errorf("certificate does not cover %s", host)
		}
	}
	return nil
}

func (m *FileManager) generate() (tls.Certificate, error) {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := m.now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"cardwise"},
			CommonName:   m.hosts[0],
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(m.validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, host := range m.hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to marshal private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	certFile, keyFile := m.Paths()
	if err := os.WriteFile(certFile, certPEM, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write private key: %w", err)
	}

	slog.Info("Generated self-signed TLS certificate",
		"path", certFile,
		"hosts", m.hosts,
		"expires", template.NotAfter.Format(time.DateOnly))

	return tls.X509KeyPair(certPEM, keyPEM)
}

// TLSConfig builds a server TLS configuration from m.
func TLSConfig(m Manager) (*tls.Config, error) {
	cert, err := m.Certificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
