package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/leozw/uptime-dashboard/internal/checks"
)

// SSLChecker inspects the certificate a host presents.
type SSLChecker struct {
	timeout time.Duration
	roots   *x509.CertPool
}

func NewSSLChecker(opts Options) *SSLChecker {
	return &SSLChecker{
		timeout: opts.Timeout,
		roots:   opts.RootCAs,
	}
}

// Check handshakes with host:port. The chain is verified after the
// handshake so that an expired certificate is still read and reported as
// expired rather than as a handshake failure.
func (s *SSLChecker) Check(ctx context.Context, host, port string, now time.Time) *checks.Detail {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.timeout},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return failed(fmt.Errorf("failed to connect: %w", err))
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return failed(errors.New("no certificates found"))
	}
	cert := state.PeerCertificates[0]

	meta := checks.Meta{
		"subject":         cert.Subject.String(),
		"issuer":          cert.Issuer.String(),
		"validFrom":       cert.NotBefore.UTC().Format(time.RFC3339),
		"validTo":         cert.NotAfter.UTC().Format(time.RFC3339),
		"isExpired":       now.After(cert.NotAfter),
		"daysUntilExpiry": daysUntil(now, cert.NotAfter),
		"protocol":        tlsVersionString(state.Version),
		"cipherSuite":     tls.CipherSuiteName(state.CipherSuite),
	}

	intermediates := x509.NewCertPool()
	for _, c := range state.PeerCertificates[1:] {
		intermediates.AddCert(c)
	}
	_, err = cert.Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         s.roots,
		Intermediates: intermediates,
		CurrentTime:   now,
	})
	if err != nil {
		var invalid x509.CertificateInvalidError
		if errors.As(err, &invalid) && invalid.Reason == x509.Expired {
			return &checks.Detail{OK: boolPtr(true), Meta: meta}
		}
		return &checks.Detail{
			OK:    boolPtr(false),
			Error: fmt.Sprintf("certificate verification failed: %v", err),
			Meta:  meta,
		}
	}

	return &checks.Detail{OK: boolPtr(true), Meta: meta}
}

func daysUntil(now, t time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}

func tlsVersionString(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "Unknown"
	}
}
