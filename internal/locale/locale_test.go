package locale

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRemapsRegionalVariants(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"de_at": "de_de",
		"DE_AT": "de_de",
		"fr_be": "fr_fr",
		"da_dk": "en_gb",
		"cs_cz": "en_gb",
	}
	for in, want := range cases {
		assert.Equal(t, want, Resolve(in), in)
	}
}

func TestResolvePassesOtherLocalesThroughLowercased(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"en_US", "SV_SE", "xx_yy", "de_de", "ja_JP"} {
		assert.Equal(t, strings.ToLower(in), Resolve(in), in)
	}
}

func TestCurrency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "EUR", Currency(Resolve("de_at")))
	assert.Equal(t, "GBP", Currency(Resolve("cs_cz")))
	assert.Equal(t, "SEK", Currency("sv_se"))
	assert.Equal(t, DefaultCurrency, Currency("ja_jp"))
}

func TestSupportedIsSorted(t *testing.T) {
	t.Parallel()

	got := Supported()
	assert.Contains(t, got, "en_us")
	assert.IsIncreasing(t, got)
}
