package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/leozw/uptime-dashboard/internal/checks"
)

// LookupFunc returns the raw WHOIS record of a domain.
type LookupFunc func(ctx context.Context, domain string) (string, error)

// WHOISChecker reads the registration expiry of a domain.
type WHOISChecker struct {
	lookup LookupFunc
}

// NewWHOISChecker uses lookup, or the public WHOIS servers when nil.
func NewWHOISChecker(lookup LookupFunc) *WHOISChecker {
	if lookup == nil {
		lookup = defaultLookup
	}
	return &WHOISChecker{lookup: lookup}
}

func defaultLookup(ctx context.Context, domain string) (string, error) {
	type result struct {
		raw string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		raw, err := whois.Whois(domain)
		ch <- result{raw, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.raw, r.err
	}
}

func (w *WHOISChecker) Check(ctx context.Context, host string, now time.Time) *checks.Detail {
	domain := registrableDomain(host)

	raw, err := w.lookup(ctx, domain)
	if err != nil {
		return failed(fmt.Errorf("whois lookup failed: %w", err))
	}

	meta := checks.Meta{"domain": domain}

	expiry, registrar := parseWhois(raw)
	if expiry.IsZero() {
		return &checks.Detail{
			OK:    boolPtr(false),
			Error: "could not extract expiry date from WHOIS data",
			Meta:  meta,
		}
	}

	if registrar != "" {
		meta["registrar"] = registrar
	}
	meta["expiryDate"] = expiry.UTC().Format(time.RFC3339)
	meta["domainExpired"] = now.After(expiry)
	meta["domainDays"] = daysUntil(now, expiry)

	return &checks.Detail{OK: boolPtr(true), Meta: meta}
}

// parseWhois prefers the structured parser and falls back to scanning the
// record for the usual expiry labels.
func parseWhois(raw string) (time.Time, string) {
	info, err := whoisparser.Parse(raw)
	if err == nil && info.Domain != nil {
		registrar := ""
		if info.Registrar != nil {
			registrar = info.Registrar.Name
		}
		if info.Domain.ExpirationDateInTime != nil {
			return *info.Domain.ExpirationDateInTime, registrar
		}
		if t, err := parseWhoisDate(info.Domain.ExpirationDate); err == nil {
			return t, registrar
		}
	}

	return extractExpiryDate(raw), ""
}

var expiryPatterns = []string{
	"Registry Expiry Date:",
	"Registrar Registration Expiration Date:",
	"Expiry Date:",
	"Expiration Date:",
	"Expires:",
	"Expiry:",
	"paid-till:",
}

func extractExpiryDate(raw string) time.Time {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for _, pattern := range expiryPatterns {
			if !strings.HasPrefix(lower, strings.ToLower(pattern)) {
				continue
			}
			if t, err := parseWhoisDate(line[len(pattern):]); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

var whoisDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.0Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02 15:04:05",
	"2006.01.02",
	"2006/01/02",
}

func parseWhoisDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, format := range whoisDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// registrableDomain strips a leading www. label; WHOIS servers only know
// the registered name.
func registrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return strings.TrimPrefix(host, "www.")
}
