package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealIP подставляет в RemoteAddr адрес клиента из X-Forwarded-For или
// X-Real-IP, но только если соединение пришло от доверенного прокси.
// В X-Forwarded-For клиентом считается крайний справа недоверенный адрес.
func RealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, port, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			peer, err := netip.ParseAddr(host)
			if err != nil || !isTrusted(trusted, peer) {
				next.ServeHTTP(w, r)
				return
			}
			if client, ok := forwardedClient(r.Header, trusted); ok {
				r.RemoteAddr = net.JoinHostPort(client.String(), port)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(h http.Header, trusted []netip.Prefix) (netip.Addr, bool) {
	if xff := h.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		var last netip.Addr
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			last = addr
			if !isTrusted(trusted, addr) {
				return addr.Unmap(), true
			}
		}
		if last.IsValid() {
			return last.Unmap(), true
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(h.Get("X-Real-IP"))); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

func isTrusted(trusted []netip.Prefix, addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
