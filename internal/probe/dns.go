package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// Resolver queries a single DNS server for address records.
type Resolver struct {
	client *dns.Client
	server string
}

func NewResolver(server string, timeout time.Duration) *Resolver {
	return &Resolver{
		client: &dns.Client{Timeout: timeout},
		server: server,
	}
}

// Addresses returns the A and AAAA records of host.
func (r *Resolver) Addresses(ctx context.Context, host string) ([]string, []string, error) {
	v4, err := r.lookup(ctx, host, dns.TypeA)
	if err != nil {
		return nil, nil, err
	}
	v6, err := r.lookup(ctx, host, dns.TypeAAAA)
	if err != nil {
		return v4, nil, err
	}
	return v4, v6, nil
}

func (r *Resolver) lookup(ctx context.Context, host string, qtype uint16) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns %s lookup failed: %w", dns.TypeToString[qtype], err)
	}
	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return nil, fmt.Errorf("dns %s lookup failed: %s", dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
	}

	var out []string
	for _, rr := range resp.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			out = append(out, rec.A.String())
		case *dns.AAAA:
			out = append(out, rec.AAAA.String())
		}
	}
	return out, nil
}
