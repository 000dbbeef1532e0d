package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gpu_sniper/internal/model"
	"gpu_sniper/internal/utils"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Limits   LimitsConfig   `yaml:"limits"`
	Provider ProviderConfig `yaml:"provider"`
	Buyer    BuyerConfig    `yaml:"buyer"`
	Cookies  CookiesConfig  `yaml:"cookies"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the optional status server. An empty Addr disables it.
type ServerConfig struct {
	Addr string     `yaml:"addr"`
	Cors CorsConfig `yaml:"cors"`
}

// CorsConfig lists the browser origins allowed to read the status api.
type CorsConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// StorageConfig points at the event journal. The default is an in-memory
// database so nothing survives a restart.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlitePath"`
}

type ProxyConfig struct {
	Global string `yaml:"global"`
}

type LimitsConfig struct {
	// GlobalQPS caps requests to the vendor across all workers. <= 0 disables the cap.
	GlobalQPS   float64 `yaml:"globalQPS"`
	GlobalBurst int     `yaml:"globalBurst"`
}

type ProviderConfig struct {
	StockURL    string           `yaml:"stockURL"`
	TokenURL    string           `yaml:"tokenURL"`
	CartURL     string           `yaml:"cartURL"`
	CartPageURL string           `yaml:"cartPageURL"`
	TokenHeader string           `yaml:"tokenHeader"`
	TimeoutMs   int              `yaml:"timeoutMs"`
	Retry       ProviderRetryCfg `yaml:"retry"`
	UserAgent   string           `yaml:"userAgent"`
	// ChromeTLS dials the vendor with a Chrome TLS fingerprint. Proxies are ignored when set.
	ChromeTLS bool `yaml:"chromeTLS"`
}

type ProviderRetryCfg struct {
	Count     int `yaml:"count"`
	WaitMs    int `yaml:"waitMs"`
	MaxWaitMs int `yaml:"maxWaitMs"`
}

func (c ProviderConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c ProviderRetryCfg) Wait() time.Duration {
	if c.WaitMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.WaitMs) * time.Millisecond
}

func (c ProviderRetryCfg) MaxWait() time.Duration {
	if c.MaxWaitMs <= 0 {
		return 1200 * time.Millisecond
	}
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}

type BuyerConfig struct {
	GPU             string `yaml:"gpu"`
	Locale          string `yaml:"locale"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
	// IntervalMs overrides IntervalSeconds when set; mostly useful against the mock server.
	IntervalMs     int             `yaml:"intervalMs"`
	Test           bool            `yaml:"test"`
	CatalogPath    string          `yaml:"catalogPath"`
	CatalogCheckMs int             `yaml:"catalogCheckMs"`
	CartRetry      CartRetryConfig `yaml:"cartRetry"`
}

func (c BuyerConfig) Interval() time.Duration {
	if c.IntervalMs > 0 {
		return time.Duration(c.IntervalMs) * time.Millisecond
	}
	if c.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c BuyerConfig) CatalogCheckInterval() time.Duration {
	if c.CatalogCheckMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.CatalogCheckMs) * time.Millisecond
}

const (
	CartRetryImmediate = "immediate"
	CartRetryBackoff   = "backoff"
)

// CartRetryConfig governs re-reserving a product after a failed add to cart.
// "immediate" without MaxAttempts retries forever with no pause.
type CartRetryConfig struct {
	Mode        string `yaml:"mode"`
	WaitMs      int    `yaml:"waitMs"`
	MaxWaitMs   int    `yaml:"maxWaitMs"`
	MaxAttempts int    `yaml:"maxAttempts"`
}

// Delay returns the pause before cart attempt n+1 after n failures.
func (c CartRetryConfig) Delay(failures int) time.Duration {
	if c.Mode != CartRetryBackoff || failures <= 0 {
		return 0
	}
	wait := time.Duration(c.WaitMs) * time.Millisecond
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	maxWait := time.Duration(c.MaxWaitMs) * time.Millisecond
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}
	for i := 1; i < failures && wait < maxWait; i++ {
		wait *= 2
	}
	if wait > maxWait {
		wait = maxWait
	}
	return wait
}

const (
	CookieSourceNone    = "none"
	CookieSourceFile    = "file"
	CookieSourceBrowser = "browser"
)

type CookiesConfig struct {
	Source     string `yaml:"source"`
	File       string `yaml:"file"`
	ProfileDir string `yaml:"profileDir"`
	BrowserBin string `yaml:"browserBin"`
	Domain     string `yaml:"domain"`
	// WarmupURL is visited before cookies are read so the profile session is refreshed.
	WarmupURL string `yaml:"warmupURL"`
}

type NotifyConfig struct {
	Email          model.EmailSettings `yaml:"email"`
	SummarySeconds int                 `yaml:"summarySeconds"`
	OpenBrowser    *bool               `yaml:"openBrowser"`
}

func (c NotifyConfig) SummaryWindow() time.Duration {
	if c.SummarySeconds <= 0 {
		return 0
	}
	if c.SummarySeconds > 600 {
		return 600 * time.Second
	}
	return time.Duration(c.SummarySeconds) * time.Second
}

func (c NotifyConfig) BrowserEnabled() bool {
	return c.OpenBrowser == nil || *c.OpenBrowser
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Production bool   `yaml:"production"`
}

// Default returns a config with every default applied.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads path and applies defaults. A missing file yields the defaults when
// allowMissing is set. Callers validate after applying command line overrides.
func Load(path string, allowMissing bool) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "file:gpu_sniper?mode=memory&cache=shared"
	}
	if c.Limits.GlobalQPS == 0 {
		c.Limits.GlobalQPS = 5
	}
	if c.Limits.GlobalBurst <= 0 {
		c.Limits.GlobalBurst = 10
	}
	if c.Provider.StockURL == "" {
		c.Provider.StockURL = "https://api-prod.nvidia.com/direct-sales-shop/DR/products/{locale}/{currency}/{productId}"
	}
	if c.Provider.TokenURL == "" {
		c.Provider.TokenURL = "https://store.nvidia.com/store/nvidia/SessionToken"
	}
	if c.Provider.CartURL == "" {
		c.Provider.CartURL = "https://api-prod.nvidia.com/direct-sales-shop/DR/add-to-cart"
	}
	if c.Provider.CartPageURL == "" {
		c.Provider.CartPageURL = "https://store.nvidia.com/store?Action=DisplayHGOP2LandingPage&SiteID=nvidia"
	}
	if c.Provider.TokenHeader == "" {
		c.Provider.TokenHeader = "nvidia_shop_id"
	}
	c.Provider.UserAgent = utils.NormalizeDesktopUserAgent(c.Provider.UserAgent)
	if c.Provider.Retry.Count < 0 {
		c.Provider.Retry.Count = 0
	}
	if c.Buyer.Locale == "" {
		c.Buyer.Locale = "en_us"
	}
	if c.Buyer.CartRetry.Mode == "" {
		c.Buyer.CartRetry.Mode = CartRetryImmediate
	}
	if c.Cookies.Source == "" {
		c.Cookies.Source = CookieSourceNone
	}
	if c.Cookies.Domain == "" {
		c.Cookies.Domain = ".nvidia.com"
	}
	if c.Cookies.WarmupURL == "" {
		c.Cookies.WarmupURL = "https://store.nvidia.com/"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the fields a run cannot start without. The gpu family itself is
// checked by the engine so it surfaces as a configuration mismatch.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Buyer.GPU) == "" {
		return errors.New("buyer.gpu is required")
	}
	if c.Buyer.CartRetry.Mode != CartRetryImmediate && c.Buyer.CartRetry.Mode != CartRetryBackoff {
		return fmt.Errorf("buyer.cartRetry.mode must be %q or %q", CartRetryImmediate, CartRetryBackoff)
	}
	if c.Buyer.CartRetry.MaxAttempts < 0 {
		return errors.New("buyer.cartRetry.maxAttempts must be >= 0")
	}
	switch c.Cookies.Source {
	case CookieSourceNone:
	case CookieSourceFile:
		if c.Cookies.File == "" {
			return errors.New("cookies.file is required when cookies.source is file")
		}
	case CookieSourceBrowser:
		if c.Cookies.ProfileDir == "" {
			return errors.New("cookies.profileDir is required when cookies.source is browser")
		}
	default:
		return fmt.Errorf("unknown cookies.source %q", c.Cookies.Source)
	}
	if c.Provider.StockURL == "" || c.Provider.TokenURL == "" || c.Provider.CartURL == "" {
		return errors.New("provider urls are required")
	}
	return nil
}
