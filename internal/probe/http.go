package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"

	"github.com/leozw/uptime-dashboard/internal/checks"
)

// HTTPChecker performs the uptime check.
type HTTPChecker struct {
	client    *http.Client
	resolver  *Resolver
	userAgent string
}

func NewHTTPChecker(opts Options, resolver *Resolver) *HTTPChecker {
	maxRedirects := opts.MaxRedirects

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.RootCAs != nil {
		transport.TLSClientConfig = &tls.Config{RootCAs: opts.RootCAs}
	}

	return &HTTPChecker{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		resolver:  resolver,
		userAgent: opts.UserAgent,
	}
}

// Check fetches u. A transport failure is reported as an error; an HTTP
// error status only clears ok so the status code band drives the message.
func (h *HTTPChecker) Check(ctx context.Context, u *url.URL) *checks.Detail {
	meta := checks.Meta{"url": u.String()}

	host := u.Hostname()
	if isIP(host) {
		meta["ipv4"] = []string{host}
	} else if h.resolver != nil {
		v4, v6, err := h.resolver.Addresses(ctx, host)
		if err != nil {
			meta["dnsError"] = err.Error()
		}
		meta["ipv4"] = v4
		meta["ipv6"] = v6
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &checks.Detail{OK: boolPtr(false), Error: err.Error(), Meta: meta}
	}
	req.Header.Set("User-Agent", h.userAgent)

	var start time.Time
	var firstByte time.Duration
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Since(start)
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start = time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return &checks.Detail{
			OK:    boolPtr(false),
			Error: fmt.Sprintf("request failed: %v", err),
			Meta:  meta,
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))

	elapsed := firstByte
	if elapsed == 0 {
		elapsed = time.Since(start)
	}

	meta["statusCode"] = resp.StatusCode
	meta["responseTimeMs"] = elapsed.Milliseconds()
	meta["bodySize"] = len(body)
	meta["finalUrl"] = resp.Request.URL.String()

	return &checks.Detail{OK: boolPtr(resp.StatusCode < 400), Meta: meta}
}
