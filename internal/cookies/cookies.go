package cookies

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"gpu_sniper/internal/model"
)

// Source yields the authenticated cookie set for the store domain.
type Source interface {
	Load(ctx context.Context) ([]model.CookieJarEntry, error)
}

// None is used when the run should start with an empty jar.
type None struct{}

func (None) Load(context.Context) ([]model.CookieJarEntry, error) { return nil, nil }

// FileSource reads a JSON export: a list of {"url", "cookies"} entries.
type FileSource struct {
	Path   string
	Domain string
}

func (s FileSource) Load(_ context.Context) ([]model.CookieJarEntry, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var entries []model.CookieJarEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", s.Path, err)
	}
	out := entries[:0]
	for _, e := range entries {
		kept := e.Cookies[:0]
		for _, c := range e.Cookies {
			if c.Domain == "" || c.MatchesDomain(s.Domain) {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			e.Cookies = kept
			out = append(out, e)
		}
	}
	return out, nil
}

// BrowserSource launches Chrome on an existing user profile and reads the store
// cookies from it. The profile must not be open in another browser process.
type BrowserSource struct {
	ProfileDir string
	Bin        string
	Domain     string
	WarmupURL  string
	Timeout    time.Duration
}

func (s BrowserSource) Load(ctx context.Context) (entries []model.CookieJarEntry, err error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	l := launcher.New().UserDataDir(s.ProfileDir).Headless(true)
	if s.Bin != "" {
		l = l.Bin(s.Bin)
	}
	u, err := l.Context(ctx).Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer l.Kill()

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = b.Close() }()

	if s.WarmupURL != "" {
		err := rod.Try(func() {
			page := stealth.MustPage(b)
			page.MustNavigate(s.WarmupURL).MustWaitLoad()
		})
		if err != nil {
			return nil, fmt.Errorf("warm up %s: %w", s.WarmupURL, err)
		}
	}

	cookies, err := b.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("read browser cookies: %w", err)
	}
	return entriesFromBrowser(cookies, s.Domain), nil
}

// entriesFromBrowser groups browser cookies by host so the jar scopes them the
// way the browser did.
func entriesFromBrowser(in []*proto.NetworkCookie, domain string) []model.CookieJarEntry {
	byHost := make(map[string][]model.Cookie)
	for _, c := range in {
		mc := model.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		}
		if !mc.MatchesDomain(domain) {
			continue
		}
		if exp := float64(c.Expires); exp > 0 {
			mc.Expires = int64(exp * 1000)
		}
		host := strings.TrimPrefix(c.Domain, ".")
		byHost[host] = append(byHost[host], mc)
	}

	hosts := make([]string, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	out := make([]model.CookieJarEntry, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, model.CookieJarEntry{URL: "https://" + h + "/", Cookies: byHost[h]})
	}
	return out
}
