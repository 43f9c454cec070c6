// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// defaultTimeout bounds one DNS query.
	defaultTimeout = 5 * time.Second

	// defaultDNSPort and defaultDoTPort are appended to resolver
	// addresses given without a port.
	defaultDNSPort = "53"
	defaultDoTPort = "853"
)

// TLSAResolver looks up TLSA records for a service. The interface exists
// so hooks can be fed from live DNS or from a test double.
type TLSAResolver interface {
	// LookupTLSA resolves the TLSA records for hostname:port.
	LookupTLSA(ctx context.Context, hostname string, port uint16) ([]*TLSARecord, error)
}

// Resolver queries TLSA records over DNS or DNS-over-TLS, optionally
// requiring resolver-validated DNSSEC.
type Resolver struct {
	config *ResolverConfig
	client *dns.Client
	server string
}

// NewResolver builds a resolver from cfg, applying defaults and falling
// back to the system resolver when no server is named.
func NewResolver(cfg *ResolverConfig) (*Resolver, error) {
	if cfg == nil {
		return nil, ErrResolverConfig
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &dns.Client{Timeout: timeout}

	server := cfg.Server
	if cfg.UseTLS {
		client.Net = "tcp-tls"
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLSServerName != "" {
			tlsCfg.ServerName = cfg.TLSServerName
		}
		client.TLSConfig = tlsCfg
		if server != "" && !strings.Contains(server, ":") {
			server += ":" + defaultDoTPort
		}
	} else {
		client.Net = "udp"
		if server != "" && !strings.Contains(server, ":") {
			server += ":" + defaultDNSPort
		}
	}

	if server == "" {
		systemCfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrResolverConfig, err.Error())
		}
		if len(systemCfg.Servers) == 0 {
			return nil, fmt.Errorf("%w: no nameservers in /etc/resolv.conf", ErrResolverConfig)
		}
		port := systemCfg.Port
		if port == "" {
			port = defaultDNSPort
		}
		server = systemCfg.Servers[0] + ":" + port
	}

	return &Resolver{config: cfg, client: client, server: server}, nil
}

// LookupTLSA queries "_<port>._tcp.<hostname>." for TLSA records per
// RFC 6698 section 3, enforcing the AD flag when the configuration
// requires DNSSEC.
func (r *Resolver) LookupTLSA(ctx context.Context, hostname string, port uint16) ([]*TLSARecord, error) {
	if hostname == "" || len(hostname) > 253 || strings.ContainsRune(hostname, 0) {
		return nil, ErrInvalidHostname
	}
	if port == 0 {
		return nil, ErrInvalidPort
	}

	msg := new(dns.Msg)
	msg.SetQuestion(tlsaName(hostname, port), dns.TypeTLSA)
	msg.SetEdns0(4096, true) // DNSSEC OK bit
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDNSLookupFailed, err.Error())
	}
	if resp == nil {
		return nil, ErrDNSLookupFailed
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: rcode %s", ErrDNSLookupFailed, dns.RcodeToString[resp.Rcode])
	}
	if r.config.RequireAD && !resp.AuthenticatedData {
		return nil, ErrDNSSECRequired
	}

	records := make([]*TLSARecord, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		tlsa, ok := rr.(*dns.TLSA)
		if !ok {
			continue
		}
		certData, err := hex.DecodeString(tlsa.Certificate)
		if err != nil {
			continue
		}
		records = append(records, &TLSARecord{
			Usage:        tlsa.Usage,
			Selector:     tlsa.Selector,
			MatchingType: tlsa.MatchingType,
			CertData:     certData,
		})
	}
	if len(records) == 0 {
		return nil, ErrNoTLSARecords
	}
	return records, nil
}

// tlsaName builds the absolute TLSA owner name for hostname:port.
func tlsaName(hostname string, port uint16) string {
	if !strings.HasSuffix(hostname, ".") {
		hostname += "."
	}
	return fmt.Sprintf("_%d._tcp.%s", port, hostname)
}
