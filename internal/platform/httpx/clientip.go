package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address as reported by the reverse proxy:
// the first entry of X-Forwarded-For, else X-Real-IP. A port on the entry is
// dropped. When the first forwarded entry is not an address (for example
// "unknown"), X-Real-IP is used instead. Empty when neither header carries a
// usable value.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return ""
}

func parseIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	host, _, err := net.SplitHostPort(raw)
	if err != nil {
		return ""
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return ""
}
