package model

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGPUFamily(t *testing.T) {
	t.Parallel()

	g, err := ParseGPUFamily("2060s")
	require.NoError(t, err)
	assert.Equal(t, GPU2060S, g)
	assert.Equal(t, "NVIDIA GEFORCE RTX 2060 SUPER", g.DisplayName())

	_, err = ParseGPUFamily("4090")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigurationMismatch))
}

func TestCookieHeaderKeepsFirstOfEachName(t *testing.T) {
	t.Parallel()

	header := CookieHeader([]*http.Cookie{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2"},
		{Name: "a", Value: "3"},
	})
	assert.Equal(t, "a=1; b=2", header)
	assert.Equal(t, "", CookieHeader(nil))
}

func TestCookieMatchesDomain(t *testing.T) {
	t.Parallel()

	c := Cookie{Name: "session", Domain: ".store.nvidia.com"}
	assert.True(t, c.MatchesDomain(".nvidia.com"))
	assert.True(t, c.MatchesDomain("store.nvidia.com"))
	assert.False(t, c.MatchesDomain("nvidia.de"))
	assert.True(t, c.MatchesDomain(""))
}

func TestCookiesRoundTripSameSite(t *testing.T) {
	t.Parallel()

	in := []*http.Cookie{{Name: "x", Value: "y", SameSite: http.SameSiteStrictMode}}
	out := CookiesToHTTP(CookiesFromHTTP(in))
	require.Len(t, out, 1)
	assert.Equal(t, http.SameSiteStrictMode, out[0].SameSite)
}
