package cookies

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceFiltersByDomain(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(p, []byte(`[
  {"url": "https://store.nvidia.com/", "cookies": [
    {"name": "JSESSIONID", "value": "a", "domain": ".nvidia.com"},
    {"name": "tracker", "value": "b", "domain": ".ads.example"},
    {"name": "hostonly", "value": "c"}
  ]},
  {"url": "https://ads.example/", "cookies": [{"name": "x", "value": "y", "domain": "ads.example"}]}
]`), 0o644))

	entries, err := FileSource{Path: p, Domain: ".nvidia.com"}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	names := []string{}
	for _, c := range entries[0].Cookies {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"JSESSIONID", "hostonly"}, names)
}

func TestFileSourceErrors(t *testing.T) {
	t.Parallel()

	_, err := FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Load(context.Background())
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`{`), 0o644))
	_, err = FileSource{Path: p}.Load(context.Background())
	require.Error(t, err)
}

func TestEntriesFromBrowserGroupsByHost(t *testing.T) {
	t.Parallel()

	entries := entriesFromBrowser([]*proto.NetworkCookie{
		{Name: "a", Value: "1", Domain: ".nvidia.com", Path: "/", Expires: 1700000000, SameSite: proto.NetworkCookieSameSiteLax},
		{Name: "b", Value: "2", Domain: "store.nvidia.com", Path: "/"},
		{Name: "c", Value: "3", Domain: ".google.com", Path: "/"},
	}, ".nvidia.com")

	require.Len(t, entries, 2)
	assert.Equal(t, "https://nvidia.com/", entries[0].URL)
	assert.Equal(t, int64(1700000000000), entries[0].Cookies[0].Expires)
	assert.Equal(t, "Lax", entries[0].Cookies[0].SameSite)
	assert.Equal(t, "https://store.nvidia.com/", entries[1].URL)
}

func TestNoneIsEmpty(t *testing.T) {
	t.Parallel()

	entries, err := None{}.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
