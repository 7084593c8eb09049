package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// proxyHeaders are checked in order when the server sits behind a trusted proxy.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// ClientIP returns the canonical client address for r, or "" when it cannot
// be parsed. Proxy headers are honoured only when trustedProxy is set.
func ClientIP(r *http.Request, trustedProxy bool) string {
	return clientIPFunc(trustedProxy)(r)
}

type clientIPGetter func(r *http.Request) string

func clientIPFunc(trustedProxy bool) clientIPGetter {
	if trustedProxy {
		return proxyClientIP
	}
	return directClientIP
}

func proxyClientIP(r *http.Request) string {
	for _, header := range proxyHeaders {
		value := strings.TrimSpace(r.Header.Get(header))
		if value == "" {
			continue
		}

		// X-Forwarded-For lists the origin first
		first, _, _ := strings.Cut(value, ",")

		addr, err := netip.ParseAddr(strings.TrimSpace(first))
		// a private address in a proxy header is a spoofing attempt
		if err != nil || isPrivate(addr) {
			continue
		}

		return addr.Unmap().String()
	}

	return directClientIP(r)
}

func directClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// r.RemoteAddr does not have a port, use as is
		host = r.RemoteAddr
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(host))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}

func isPrivate(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}
