package geo

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// LoopbackIP is reported when no forwarding header names a usable address.
const LoopbackIP = "127.0.0.1"

// ForwardingHeaders are consulted in order when extracting the client IP.
var ForwardingHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"Fastly-Client-IP",
	"X-Vercel-Forwarded-For",
}

// ClientIP returns the first non-loopback address found in the forwarding
// headers, then the peer address of the connection. Only the leftmost entry of
// X-Forwarded-For is considered.
func ClientIP(c *fiber.Ctx) string {
	return clientIP(func(key string) string { return c.Get(key) }, c.IP())
}

func clientIP(header func(string) string, remote string) string {
	for _, name := range ForwardingHeaders {
		value := strings.TrimSpace(header(name))
		if value == "" {
			continue
		}
		if name == "X-Forwarded-For" {
			value = strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
		}
		if value != "" && !isLoopback(value) {
			return value
		}
	}
	if parsed := net.ParseIP(remote); parsed != nil && !parsed.IsLoopback() && !parsed.IsUnspecified() {
		return remote
	}
	return LoopbackIP
}

// IsLocal reports whether ip is loopback, private or otherwise unroutable, in
// which case no external lookup is attempted.
func IsLocal(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast()
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

// Flag renders a two-letter country code as its regional-indicator emoji.
func Flag(countryCode string) string {
	if len(countryCode) != 2 {
		return "🌍"
	}
	code := strings.ToUpper(countryCode)
	var b strings.Builder
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "🌍"
		}
		b.WriteRune(0x1F1E6 + (r - 'A'))
	}
	return b.String()
}
