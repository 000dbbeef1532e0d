package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"gpu_sniper/internal/model"
)

// Session is the cookie state every worker of a run shares. The jar locks
// internally; responses from any worker may update it.
type Session struct {
	jar  *cookiejar.Jar
	urls []*url.URL
}

// New seeds a jar with entries. urls are the store endpoints the session talks
// to; CookieHeader and Export read cookies for them.
func New(entries []model.CookieJarEntry, urls ...string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	s := &Session{jar: jar}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}
		root := *u
		root.Path = "/"
		root.RawQuery = ""
		s.urls = append(s.urls, &root)
	}
	for _, entry := range entries {
		u, err := url.Parse(entry.URL)
		if err != nil {
			continue
		}
		jar.SetCookies(u, model.CookiesToHTTP(entry.Cookies))
	}
	return s, nil
}

func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// Cookies returns the cookies the jar would send to any of the session urls,
// first occurrence of a name wins.
func (s *Session) Cookies() []*http.Cookie {
	var out []*http.Cookie
	seen := make(map[string]struct{})
	for _, u := range s.urls {
		for _, c := range s.jar.Cookies(u) {
			if _, ok := seen[c.Name]; ok {
				continue
			}
			seen[c.Name] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// CookieHeader rebuilds a Cookie header ("a=1; b=2") from the jar.
func (s *Session) CookieHeader() string {
	return model.CookieHeader(s.Cookies())
}

// Store saves cookies a response set for rawURL. Unparseable urls are ignored.
func (s *Session) Store(rawURL string, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	s.jar.SetCookies(u, cookies)
}

func (s *Session) Export() []model.CookieJarEntry {
	out := make([]model.CookieJarEntry, 0, len(s.urls))
	for _, u := range s.urls {
		out = append(out, model.CookieJarEntry{URL: u.String(), Cookies: model.CookiesFromHTTP(s.jar.Cookies(u))})
	}
	return out
}
