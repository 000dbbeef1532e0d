package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDesktopUserAgent(t *testing.T) {
	t.Parallel()

	firefox := "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	assert.Equal(t, firefox, NormalizeDesktopUserAgent("  "+firefox+" "))
	assert.Equal(t, DefaultDesktopUserAgent(), NormalizeDesktopUserAgent(""))
	assert.Equal(t, DefaultDesktopUserAgent(), NormalizeDesktopUserAgent("curl/8.0"))
	assert.Equal(t, DefaultDesktopUserAgent(), NormalizeDesktopUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 18_7 like Mac OS X) Mobile/15E148"))
}
