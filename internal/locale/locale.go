package locale

import (
	"sort"
	"strings"
)

const DefaultCurrency = "USD"

// remaps sends regional variants the store does not serve to the nearest one it does.
var remaps = map[string]string{
	"de_at": "de_de",
	"fr_be": "fr_fr",
	"da_dk": "en_gb",
	"cs_cz": "en_gb",
}

var currencies = map[string]string{
	"en_us": "USD",
	"en_gb": "GBP",
	"de_de": "EUR",
	"fr_fr": "EUR",
	"it_it": "EUR",
	"es_es": "EUR",
	"nl_nl": "EUR",
	"sv_se": "SEK",
	"de_at": "EUR",
	"fr_be": "EUR",
	"da_dk": "DKK",
	"cs_cz": "CZK",
}

// Resolve returns the store-facing locale for a user supplied one. Unknown
// locales are only lowercased.
func Resolve(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if mapped, ok := remaps[v]; ok {
		return mapped
	}
	return v
}

func Currency(locale string) string {
	if c, ok := currencies[strings.ToLower(locale)]; ok {
		return c
	}
	return DefaultCurrency
}

// Supported lists every locale with a known currency.
func Supported() []string {
	out := make([]string, 0, len(currencies))
	for k := range currencies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
