package probe

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/checks"
)

func tlsServer(t *testing.T, status int) (*httptest.Server, *x509.CertPool) {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return srv, pool
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func envelopeOf(kind checks.Kind, d *checks.Detail) *checks.Envelope {
	return &checks.Envelope{Result: checks.EnvelopeResult{
		Details: map[checks.Kind]*checks.Detail{kind: d},
	}}
}

func TestHTTPChecker(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		ok      bool
		state   checks.Status
		message string
	}{
		{name: "healthy", status: http.StatusOK, ok: true, state: checks.StatusSuccess, message: "All good."},
		{name: "server error", status: http.StatusServiceUnavailable, ok: false, state: checks.StatusError, message: "Server error detected."},
		{name: "not found", status: http.StatusNotFound, ok: false, state: checks.StatusError, message: "Client error detected."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, pool := tlsServer(t, tt.status)
			h := NewHTTPChecker(Options{RootCAs: pool, Timeout: 5 * time.Second, MaxRedirects: 3}.withDefaults(), nil)

			d := h.Check(context.Background(), mustURL(t, srv.URL))
			require.NotNil(t, d.OK)
			assert.Equal(t, tt.ok, *d.OK)
			assert.Empty(t, d.Error)
			assert.Equal(t, tt.status, d.Meta["statusCode"])

			res := checks.Classify(checks.KindUptime, envelopeOf(checks.KindUptime, d))
			assert.Equal(t, tt.state, res.Status)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	h := NewHTTPChecker(Options{Timeout: 2 * time.Second}.withDefaults(), nil)
	d := h.Check(context.Background(), mustURL(t, "http://"+addr))

	assert.False(t, *d.OK)
	assert.Contains(t, d.Error, "request failed")

	res := checks.Classify(checks.KindUptime, envelopeOf(checks.KindUptime, d))
	assert.Equal(t, checks.StatusError, res.Status)
	assert.Equal(t, "Failed to get the uptime report.", res.Message)
}

func TestSSLChecker(t *testing.T) {
	srv, pool := tlsServer(t, http.StatusOK)
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	cert := srv.Certificate()
	s := NewSSLChecker(Options{RootCAs: pool, Timeout: 5 * time.Second})

	t.Run("valid", func(t *testing.T) {
		now := cert.NotAfter.Add(-10 * 24 * time.Hour)
		d := s.Check(context.Background(), host, port, now)

		require.True(t, *d.OK, d.Error)
		assert.Equal(t, false, d.Meta["isExpired"])
		assert.Equal(t, 10, d.Meta["daysUntilExpiry"])

		res := checks.Classify(checks.KindSSL, envelopeOf(checks.KindSSL, d))
		assert.Equal(t, checks.StatusWarning, res.Status)
		assert.Equal(t, "Expires in 10 days. Plan a renewal.", res.Message)
	})

	t.Run("expired", func(t *testing.T) {
		now := cert.NotAfter.Add(48 * time.Hour)
		d := s.Check(context.Background(), host, port, now)

		require.True(t, *d.OK, d.Error)
		assert.Equal(t, true, d.Meta["isExpired"])

		res := checks.Classify(checks.KindSSL, envelopeOf(checks.KindSSL, d))
		assert.Equal(t, checks.StatusError, res.Status)
		assert.Equal(t, "Certificate has expired!", res.Message)
		assert.Empty(t, res.Error)
	})

	t.Run("untrusted", func(t *testing.T) {
		untrusted := NewSSLChecker(Options{RootCAs: x509.NewCertPool(), Timeout: 5 * time.Second})
		d := untrusted.Check(context.Background(), host, port, time.Now())

		assert.False(t, *d.OK)
		assert.Contains(t, d.Error, "certificate verification failed")
	})
}

func dnsServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)

			q := r.Question[0]
			if q.Name == "example.test." {
				switch q.Qtype {
				case dns.TypeA:
					rr, _ := dns.NewRR("example.test. 60 IN A 192.0.2.10")
					m.Answer = append(m.Answer, rr)
				case dns.TypeAAAA:
					rr, _ := dns.NewRR("example.test. 60 IN AAAA 2001:db8::10")
					m.Answer = append(m.Answer, rr)
				}
			} else {
				m.Rcode = dns.RcodeNameError
			}
			_ = w.WriteMsg(m)
		}),
	}

	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestResolver(t *testing.T) {
	r := NewResolver(dnsServer(t), 2*time.Second)

	v4, v6, err := r.Addresses(context.Background(), "example.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.10"}, v4)
	assert.Equal(t, []string{"2001:db8::10"}, v6)

	v4, v6, err = r.Addresses(context.Background(), "missing.test")
	require.NoError(t, err)
	assert.Empty(t, v4)
	assert.Empty(t, v6)
}

func TestWHOISChecker(t *testing.T) {
	now := time.Date(2029, 12, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		err     error
		now     time.Time
		state   checks.Status
		message string
	}{
		{
			name:    "registry expiry",
			raw:     "Domain Name: EXAMPLE.COM\nRegistry Expiry Date: 2030-01-02T00:00:00Z\n",
			now:     now,
			state:   checks.StatusWarning,
			message: "Domain expires in 30 days.",
		},
		{
			name:    "paid till",
			raw:     "domain: EXAMPLE.RU\npaid-till: 2031.06.01\n",
			now:     now,
			state:   checks.StatusSuccess,
			message: "Renewed for more than a year.",
		},
		{
			name:    "expired",
			raw:     "Registry Expiry Date: 2029-01-02T00:00:00Z\n",
			now:     now,
			state:   checks.StatusError,
			message: "Domain has expired! Immediate renewal is required.",
		},
		{
			name:    "no expiry",
			raw:     "No match for domain\n",
			now:     now,
			state:   checks.StatusError,
			message: "Failed to get the domain report.",
		},
		{
			name:    "lookup error",
			err:     errors.New("connection reset"),
			now:     now,
			state:   checks.StatusError,
			message: "Failed to get the domain report.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var asked string
			w := NewWHOISChecker(func(ctx context.Context, domain string) (string, error) {
				asked = domain
				return tt.raw, tt.err
			})

			d := w.Check(context.Background(), "www.Example.com", tt.now)
			assert.Equal(t, "example.com", asked)

			res := checks.Classify(checks.KindDomain, envelopeOf(checks.KindDomain, d))
			assert.Equal(t, tt.state, res.Status)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestExtractExpiryDate(t *testing.T) {
	want := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, want, extractExpiryDate("registry expiry date: 2030-01-02"))
	assert.Equal(t, want, extractExpiryDate("  Expiration Date: 02-Jan-2030  "))
	assert.True(t, extractExpiryDate("Expires: soon").IsZero())
}

func TestProber_Healthcheck(t *testing.T) {
	srv, pool := tlsServer(t, http.StatusOK)

	p := New(Options{RootCAs: pool, Timeout: 5 * time.Second}, zap.NewNop())
	p.whois = NewWHOISChecker(func(ctx context.Context, domain string) (string, error) {
		return "", errors.New("no whois server")
	})

	env, err := p.Healthcheck(context.Background(), srv.URL,
		[]checks.Kind{checks.KindUptime, checks.KindSSL, checks.KindDomain, checks.KindLighthouse})
	require.NoError(t, err)

	assert.Equal(t, []checks.Kind{checks.KindUptime, checks.KindSSL, checks.KindDomain}, env.Kinds())
	require.NotNil(t, env.Result.Summary.OK)
	assert.True(t, *env.Result.Summary.OK)
	assert.Equal(t, "1 of 3 checks failed", env.Result.Summary.Message)

	results := checks.ClassifyAll(env)
	assert.Equal(t, checks.StatusSuccess, results[checks.KindUptime].Status)
	assert.Equal(t, checks.StatusSuccess, results[checks.KindSSL].Status)
	assert.Equal(t, checks.StatusError, results[checks.KindDomain].Status)
	assert.Equal(t, "whois lookup failed: no whois server", results[checks.KindDomain].Error)
}

func TestParseTarget(t *testing.T) {
	u, err := parseTarget("example.com/status")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "example.com", u.Hostname())
	assert.Equal(t, "443", sslPort(u))

	u, err = parseTarget("https://example.com:8443")
	require.NoError(t, err)
	assert.Equal(t, "8443", sslPort(u))

	for _, bad := range []string{"", "ftp://example.com", "https://"} {
		_, err := parseTarget(bad)
		assert.Error(t, err, bad)
	}
}
