package browser

import (
	"context"

	"github.com/go-rod/rod/lib/launcher"

	"gpu_sniper/internal/logbus"
)

// Opener shows a URL to the user.
type Opener interface {
	Open(ctx context.Context, url string)
}

// RodOpener opens the URL in the locally installed Chrome, the same binary the
// cookie source reads from.
type RodOpener struct {
	Bus *logbus.Bus
}

func (o RodOpener) Open(_ context.Context, url string) {
	if _, ok := launcher.LookPath(); !ok {
		if o.Bus != nil {
			o.Bus.Log("warn", "no local browser found, open the cart manually", map[string]any{"url": url})
		}
		return
	}
	launcher.Open(url)
}

// Noop only logs the URL.
type Noop struct {
	Bus *logbus.Bus
}

func (n Noop) Open(_ context.Context, url string) {
	if n.Bus != nil {
		n.Bus.Log("info", "browser disabled, cart page", map[string]any{"url": url})
	}
}
