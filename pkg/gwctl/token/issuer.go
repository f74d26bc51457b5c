package token

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeIssuer reduces an issuer or API URL to its lower-cased
// scheme://host[:port] origin, dropping default ports and any path, query or
// fragment. Values that do not parse to a scheme and host are returned unchanged.
func NormalizeIssuer(s string) string {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return s
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return scheme + "://" + net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return scheme + "://[" + host + "]"
	}
	return scheme + "://" + host
}
