package model

import (
	"net/http"
	"strings"
	"time"
)

// CookieJarEntry groups cookies under the URL they are set for.
type CookieJarEntry struct {
	URL     string   `json:"url"`
	Cookies []Cookie `json:"cookies"`
}

type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HttpOnly bool   `json:"httpOnly,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

// MatchesDomain reports whether the cookie belongs to domain or one of its subdomains.
// An empty domain matches every cookie.
func (c Cookie) MatchesDomain(domain string) bool {
	want := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if want == "" {
		return true
	}
	have := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
	return have == want || strings.HasSuffix(have, "."+want)
}

func CookiesFromHTTP(in []*http.Cookie) []Cookie {
	out := make([]Cookie, 0, len(in))
	for _, c := range in {
		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.UnixMilli()
		}
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: sameSiteNames[c.SameSite],
		})
	}
	return out
}

// CookiesToHTTP drops the Domain attribute when it is empty so the jar scopes the
// cookie to the host it is set for.
func CookiesToHTTP(in []Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: sameSiteFromString(c.SameSite),
		}
		if c.Expires > 0 {
			hc.Expires = time.UnixMilli(c.Expires)
		}
		out = append(out, hc)
	}
	return out
}

// CookieHeader renders cookies as a Cookie request header value. Later cookies with
// an already seen name are skipped.
func CookieHeader(in []*http.Cookie) string {
	seen := make(map[string]struct{}, len(in))
	parts := make([]string, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

var sameSiteNames = map[http.SameSite]string{
	http.SameSiteDefaultMode: "default",
	http.SameSiteLaxMode:     "lax",
	http.SameSiteStrictMode:  "strict",
	http.SameSiteNoneMode:    "none",
}

func sameSiteFromString(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none", "no_restriction":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
