package follow

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// SameSite reports whether a and b share a registrable domain, using the
// public-suffix list rather than raw hostname comparison so "www.a.com" and
// "a.com" (or "a.co.uk" and "shop.a.co.uk") are correctly treated as the
// same site for the follow_external check (§3.4).
func SameSite(a, b string) bool {
	ua, err1 := url.Parse(a)
	ub, err2 := url.Parse(b)
	if err1 != nil || err2 != nil {
		return false
	}
	ha, err1 := publicsuffix.EffectiveTLDPlusOne(ua.Hostname())
	hb, err2 := publicsuffix.EffectiveTLDPlusOne(ub.Hostname())
	if err1 != nil || err2 != nil {
		return ua.Hostname() == ub.Hostname()
	}
	return ha == hb
}

// ResolveHref resolves href against base, per §3.4's relative-link rule.
func ResolveHref(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// Canonical normalizes a URL for visited-set membership: it strips the
// fragment (since "#section" anchors within the same document should not be
// treated as distinct pages for cycle detection), lowercases scheme and
// host, and drops a default port, so "HTTP://Example.com:80/x" and
// "http://example.com/x" collide in the visited set.
func Canonical(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u.Scheme, u.Hostname(), u.Port())
	return u.String()
}

func canonicalHost(scheme, host, port string) string {
	host = strings.ToLower(host)
	if port == "" || isDefaultPort(scheme, port) {
		return host
	}
	return host + ":" + port
}

func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	}
	return false
}
