package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileAllowed(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Buyer.Interval())
	assert.Equal(t, "en_us", cfg.Buyer.Locale)
	assert.Equal(t, CartRetryImmediate, cfg.Buyer.CartRetry.Mode)
	assert.Equal(t, "nvidia_shop_id", cfg.Provider.TokenHeader)
	assert.Equal(t, 20*time.Second, cfg.Provider.Timeout())
	assert.True(t, cfg.Notify.BrowserEnabled())

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	require.Error(t, err)
}

func TestLoadParsesYAML(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
buyer:
  gpu: "3080"
  locale: de_at
  intervalSeconds: 2
  test: true
  cartRetry:
    mode: backoff
    waitMs: 100
    maxWaitMs: 350
notify:
  openBrowser: false
cookies:
  source: file
  file: cookies.json
`), 0o644))

	cfg, err := Load(p, false)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "3080", cfg.Buyer.GPU)
	assert.Equal(t, 2*time.Second, cfg.Buyer.Interval())
	assert.True(t, cfg.Buyer.Test)
	assert.False(t, cfg.Notify.BrowserEnabled())
	assert.Equal(t, ".nvidia.com", cfg.Cookies.Domain)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Error(t, cfg.Validate(), "gpu is required")

	cfg.Buyer.GPU = "3090"
	require.NoError(t, cfg.Validate())

	cfg.Cookies.Source = CookieSourceBrowser
	require.Error(t, cfg.Validate())

	cfg.Cookies.Source = "carrier-pigeon"
	require.Error(t, cfg.Validate())
}

func TestCartRetryDelay(t *testing.T) {
	t.Parallel()

	immediate := CartRetryConfig{Mode: CartRetryImmediate}
	assert.Zero(t, immediate.Delay(5))

	backoff := CartRetryConfig{Mode: CartRetryBackoff, WaitMs: 100, MaxWaitMs: 350}
	assert.Zero(t, backoff.Delay(0))
	assert.Equal(t, 100*time.Millisecond, backoff.Delay(1))
	assert.Equal(t, 200*time.Millisecond, backoff.Delay(2))
	assert.Equal(t, 350*time.Millisecond, backoff.Delay(3))
	assert.Equal(t, 350*time.Millisecond, backoff.Delay(10))
}

func TestIntervalMsOverridesSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50*time.Millisecond, BuyerConfig{IntervalSeconds: 3, IntervalMs: 50}.Interval())
}
