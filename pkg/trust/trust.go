// Package trust resolves the real client IP, scheme, host and port from
// forwarded headers, but only when the immediate peer is a trusted proxy.
// It is the single source of truth for trust decisions: it runs once per
// request and writes the verified identity onto the Request; downstream
// middlewares only ever read those cached fields.
package trust

import (
	"net"
	"strconv"
	"strings"

	"gatekit/pkg/logger"
	"gatekit/pkg/web"
)

// maxChainEntries bounds how many forwarded-list entries are inspected.
// A header with tens of thousands of comma-separated entries collapses its
// excess into one aggregate (unparseable) leftmost token, so resolution
// stays O(maxChainEntries) regardless of input size.
const maxChainEntries = 20

// unknownAddr is the attribution bucket for requests whose resolved client
// failed validation. Leaving the proxy's own address in place would let an
// attacker hide behind the proxy's rate-limit identity.
const unknownAddr = "unknown"

// Config declares which peers may assert forwarded headers.
type Config struct {
	// TrustedProxies lists trusted IPs or CIDR networks, or "*" to trust
	// every immediate peer.
	TrustedProxies []string
	// TrustedHopCount bounds how many chain entries are trusted in
	// wildcard mode. Required with "*"; trust is never unbounded.
	TrustedHopCount int
}

// Resolver walks forwarded-for chains against the trusted set.
type Resolver struct {
	trustAll bool
	hopCount int
	networks []*net.IPNet
}

// NewResolver parses cfg. Invalid CIDR entries are skipped; a wildcard
// without an explicit hop count defaults to 1 with a logged warning.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{hopCount: cfg.TrustedHopCount}
	for _, p := range cfg.TrustedProxies {
		if strings.TrimSpace(p) == "*" {
			r.trustAll = true
		}
	}
	if r.trustAll {
		if r.hopCount < 1 {
			logger.Warn("proxy_trust_wildcard_without_hop_count",
				"detail", "trusting '*' without trusted_hop_count; defaulting to 1 (immediate proxy only)")
			r.hopCount = 1
		}
		return r
	}
	for _, p := range cfg.TrustedProxies {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		if _, ipNet, err := net.ParseCIDR(s); err == nil {
			r.networks = append(r.networks, ipNet)
			continue
		}
		ip := net.ParseIP(s)
		if ip == nil {
			logger.Warn("proxy_trust_invalid_entry", "entry", p)
			continue
		}
		if ip4 := ip.To4(); ip4 != nil {
			r.networks = append(r.networks, &net.IPNet{IP: ip4, Mask: net.CIDRMask(32, 32)})
		} else {
			r.networks = append(r.networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)})
		}
	}
	return r
}

// Trusted reports whether the given IP literal belongs to the trusted set.
// Unparseable input is never trusted.
func (r *Resolver) Trusted(ipStr string) bool {
	if r.trustAll {
		return true
	}
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil {
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	for _, n := range r.networks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ResolveClient walks the forwarded-for chain right to left and returns the
// resolved client address plus how many trailing entries were peeled as
// trusted proxies. The second return is -1 when the header was not used
// (untrusted peer, empty chain).
//
// The literal peer address comes from the transport and is authoritative
// whenever the peer is untrusted. An unparseable resolved candidate yields
// "unknown" rather than the peer's address.
func (r *Resolver) ResolveClient(peerAddr, forwardedFor string) (string, int) {
	if !r.Trusted(peerAddr) {
		return peerAddr, -1
	}
	chain := splitFromRight(forwardedFor, maxChainEntries)
	if len(chain) == 0 {
		return peerAddr, -1
	}

	client := peerAddr
	clientIndex := -1

	if r.trustAll {
		// The peer consumed one trust hop; up to hopCount-1 chain
		// entries may be peeled on top of it.
		budget := r.hopCount - 1
		hops := 0
		for i := len(chain) - 1; i >= 0; i-- {
			if hops < budget {
				hops++
				continue
			}
			client = chain[i]
			clientIndex = i
			break
		}
		if clientIndex == -1 {
			// Chain exhausted inside the budget: everything is
			// trusted, fall back to the originator.
			client = chain[0]
			clientIndex = 0
		}
	} else {
		for i := len(chain) - 1; i >= 0; i-- {
			// An unparseable token is never trusted, so it becomes
			// the terminus; nothing left of it is examined.
			if r.Trusted(chain[i]) {
				continue
			}
			client = chain[i]
			clientIndex = i
			break
		}
		if clientIndex == -1 {
			client = chain[0]
			clientIndex = 0
		}
	}

	if net.ParseIP(client) == nil {
		logger.Warn("proxy_trust_invalid_client", "candidate", client)
		return unknownAddr, -1
	}
	return client, len(chain) - 1 - clientIndex
}

// ForwardedValue picks the entry of a forwarded-* header list matching the
// peel depth established by ResolveClient. When the list is shorter than
// the peel depth allows (index would fall before its start), the header is
// ignored entirely rather than clamped; a clamped read could return an
// attacker-supplied value that no trusted proxy vouched for.
func ForwardedValue(headerVal string, peeled int) string {
	if headerVal == "" || peeled < 0 {
		return ""
	}
	values := splitFromRight(headerVal, maxChainEntries)
	if len(values) == 0 {
		return ""
	}
	target := len(values) - 1 - peeled
	switch {
	case target >= 0:
		return values[target]
	case target == -1:
		// The furthest peeled proxy contributed the first value.
		return values[0]
	default:
		return ""
	}
}

// Middleware resolves the client identity once and caches it on the
// request. Scheme, host and port are only overwritten when the
// corresponding forwarded header yields a value at the verified depth.
func Middleware(r *Resolver) web.Middleware {
	return func(req *web.Request, res *web.Response) {
		peer := req.RemoteAddr()
		client, peeled := r.ResolveClient(peer, req.GetHeader("x-forwarded-for"))
		if peeled < 0 {
			// Either the header was not used, or validation failed and
			// the request lands in the shared "unknown" bucket.
			if client != peer {
				req.SetRemoteAddr(client)
			}
			return
		}
		req.SetRemoteAddr(client)
		if proto := ForwardedValue(req.GetHeader("x-forwarded-proto"), peeled); proto != "" {
			req.SetScheme(proto)
		}
		if host := ForwardedValue(req.GetHeader("x-forwarded-host"), peeled); host != "" {
			req.SetHost(host)
		}
		if portStr := ForwardedValue(req.GetHeader("x-forwarded-port"), peeled); portStr != "" {
			if port, err := strconv.Atoi(portStr); err == nil {
				req.SetPort(port)
			}
		}
	}
}

// splitFromRight splits a comma-separated list keeping at most max entries
// counted from the right; anything further left collapses into the first
// entry. Mirrors a right-split with a fixed limit, so adversarially long
// chains cost a single pass.
func splitFromRight(s string, max int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	if len(parts) > max+1 {
		head := strings.Join(parts[:len(parts)-max], ",")
		parts = append([]string{head}, parts[len(parts)-max:]...)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
