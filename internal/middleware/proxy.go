package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TrustedProxies configures how c.RealIP() resolves the client address.
// Forwarding headers (X-Real-IP, X-Forwarded-For) are honored only when
// the direct connection comes from one of the given CIDR ranges.
//
// Librarium keys the login rate limiter on c.RealIP(). Behind a reverse
// proxy without this, every visitor shares the proxy's IP and five failed
// logins lock the whole site; with an over-broad trust list, an attacker
// forges X-Forwarded-For and sidesteps the limiter entirely.
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) {
	e.IPExtractor = buildIPExtractor(trustedCIDRs)
}

func buildIPExtractor(trustedCIDRs []string) echo.IPExtractor {
	var trusted []*net.IPNet
	for _, cidr := range trustedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("skipping invalid trusted proxy CIDR",
				slog.String("cidr", cidr), slog.Any("error", err))
			continue
		}
		trusted = append(trusted, network)
	}

	return func(req *http.Request) string {
		directIP := extractDirectIP(req.RemoteAddr)

		if !isTrusted(directIP, trusted) {
			return directIP
		}

		// nginx and Caddy set X-Real-IP to the immediate client.
		if realIP := req.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}

		// X-Forwarded-For is a comma-separated chain; the leftmost entry
		// is the original client when every hop is trusted.
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.SplitN(xff, ",", 2)
			if len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}

		return directIP
	}
}

// extractDirectIP strips the port from a "host:port" RemoteAddr.
func extractDirectIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func isTrusted(ipStr string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
