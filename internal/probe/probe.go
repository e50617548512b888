// Package probe runs uptime, SSL and domain checks from this process and
// reports them in the same envelope shape as the monitoring service.
package probe

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/checks"
)

// Options configures a Prober. Zero values pick sensible defaults.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	DNSServer    string
	UserAgent    string
	// RootCAs overrides the system roots for HTTPS and certificate checks.
	RootCAs *x509.CertPool
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 10
	}
	if o.DNSServer == "" {
		o.DNSServer = "8.8.8.8:53"
	}
	if o.UserAgent == "" {
		o.UserAgent = "UptimeDashboard/1.0"
	}
	return o
}

// Prober produces envelopes for the kinds it can run locally.
type Prober struct {
	http   *HTTPChecker
	ssl    *SSLChecker
	whois  *WHOISChecker
	logger *zap.Logger
	now    func() time.Time
}

func New(opts Options, logger *zap.Logger) *Prober {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver := NewResolver(opts.DNSServer, opts.Timeout)
	return &Prober{
		http:   NewHTTPChecker(opts, resolver),
		ssl:    NewSSLChecker(opts),
		whois:  NewWHOISChecker(nil),
		logger: logger,
		now:    time.Now,
	}
}

// Supports reports whether kind can be probed locally.
func Supports(kind checks.Kind) bool {
	switch kind {
	case checks.KindUptime, checks.KindSSL, checks.KindDomain:
		return true
	default:
		return false
	}
}

// Healthcheck runs the requested kinds against target in parallel. Kinds
// that cannot be probed locally are left out of the envelope.
func (p *Prober) Healthcheck(ctx context.Context, target string, kinds []checks.Kind) (*checks.Envelope, error) {
	u, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	details := make(map[checks.Kind]*checks.Detail)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, kind := range kinds {
		if !Supports(kind) {
			continue
		}

		wg.Add(1)
		go func(kind checks.Kind) {
			defer wg.Done()

			d := p.run(ctx, kind, u)
			if d.Error != "" {
				p.logger.Debug("Probe reported an error",
					zap.String("target", u.String()),
					zap.String("kind", string(kind)),
					zap.String("error", d.Error))
			}

			mu.Lock()
			details[kind] = d
			mu.Unlock()
		}(kind)
	}

	wg.Wait()

	return &checks.Envelope{
		Result: checks.EnvelopeResult{
			Summary:    summarize(details),
			Details:    details,
			DurationMs: float64(time.Since(start).Milliseconds()),
		},
	}, nil
}

func (p *Prober) run(ctx context.Context, kind checks.Kind, u *url.URL) *checks.Detail {
	switch kind {
	case checks.KindUptime:
		return p.http.Check(ctx, u)
	case checks.KindSSL:
		return p.ssl.Check(ctx, u.Hostname(), sslPort(u), p.now())
	case checks.KindDomain:
		return p.whois.Check(ctx, u.Hostname(), p.now())
	default:
		return failed(fmt.Errorf("unsupported check %q", kind))
	}
}

// summarize reports the site as up unless the uptime check failed; other
// failures only show in the message.
func summarize(details map[checks.Kind]*checks.Detail) checks.Summary {
	failures := 0
	for _, d := range details {
		if d.OK != nil && !*d.OK {
			failures++
		}
	}

	ok := true
	if d, found := details[checks.KindUptime]; found && d.OK != nil {
		ok = *d.OK
	}

	msg := "All checks passed"
	if failures > 0 {
		msg = fmt.Sprintf("%d of %d checks failed", failures, len(details))
	}
	return checks.Summary{OK: &ok, Message: msg}
}

// parseTarget accepts a URL or a bare host and defaults the scheme to https.
func parseTarget(target string) (*url.URL, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("empty target")
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("target %q has no host", target)
	}
	return u, nil
}

func sslPort(u *url.URL) string {
	if port := u.Port(); port != "" && u.Scheme == "https" {
		return port
	}
	return "443"
}

func isIP(host string) bool {
	return net.ParseIP(host) != nil
}

func boolPtr(b bool) *bool { return &b }

func failed(err error) *checks.Detail {
	return &checks.Detail{OK: boolPtr(false), Error: err.Error(), Meta: checks.Meta{}}
}
