// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
)

var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// IsLocalAddr reports whether addr is loopback, private (RFC 1918 or
// IPv6 ULA), link-local, or CGNAT. IPv4-mapped IPv6 addresses are
// judged by their IPv4 form.
func IsLocalAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() || cgnat.Contains(addr)
}

// IsLocalHost reports whether host (an IP literal, optionally with a
// port, or "localhost") names a local address. Other hostnames are
// not resolved and are not local.
func IsLocalHost(host string) bool {
	if split, _, err := net.SplitHostPort(host); err == nil {
		host = split
	}
	if host == "localhost" {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return IsLocalAddr(addr)
}

// RequireLocal wraps next so that requests from non-local remote
// addresses get 403 Forbidden.
func RequireLocal(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		addrPort, err := netip.ParseAddrPort(request.RemoteAddr)
		if err != nil || !IsLocalAddr(addrPort.Addr()) {
			logger.Warn("refusing non-local peer",
				"remote", request.RemoteAddr,
				"path", request.URL.Path,
			)
			http.Error(writer, "strict local mode: peer is not on a local network", http.StatusForbidden)
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// FirstLocalInterfaceAddr returns the first non-loopback local unicast
// address of this host, for building a pairing payload that a phone on
// the same network can reach.
func FirstLocalInterfaceAddr() (netip.Addr, bool) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Addr{}, false
	}
	for _, candidate := range addrs {
		prefix, err := netip.ParsePrefix(candidate.String())
		if err != nil {
			continue
		}
		addr := prefix.Addr().Unmap()
		if addr.Is4() && !addr.IsLoopback() && IsLocalAddr(addr) {
			return addr, true
		}
	}
	return netip.Addr{}, false
}
