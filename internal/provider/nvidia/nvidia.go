package nvidia

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"gpu_sniper/internal/config"
	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/metrics"
	"gpu_sniper/internal/model"
	"gpu_sniper/internal/provider"
	"gpu_sniper/internal/session"
	"gpu_sniper/internal/transport"
)

const (
	// InStockMarker anywhere in the inventory response body means the product can be bought.
	InStockMarker = "PRODUCT_INVENTORY_IN_STOCK"
	// CartSuccessMarker is looked for in the add-to-cart response message.
	CartSuccessMarker = "successfully"
)

const unexpectedReply = "unexpected reply from the server, API may be down, nothing we can do but try again"

type Options struct {
	Provider config.ProviderConfig
	Proxy    config.ProxyConfig
	Limits   config.LimitsConfig
	Session  *session.Session
	Bus      *logbus.Bus
	Observer provider.StatusObserver
	Metrics  *metrics.Metrics
}

// Client talks to the NVIDIA store. It is shared by every worker of a run.
// tokenHTTP has no jar: the token request carries a rebuilt Cookie header and
// the response cookies are stored back into the session by hand.
type Client struct {
	cfg       config.ProviderConfig
	sess      *session.Session
	http      *resty.Client
	tokenHTTP *resty.Client
	bus       *logbus.Bus
	limiter   *rate.Limiter
	observer  provider.StatusObserver
	metrics   *metrics.Metrics
}

func New(opts Options) *Client {
	c := &Client{
		cfg:      opts.Provider,
		sess:     opts.Session,
		bus:      opts.Bus,
		observer: opts.Observer,
		metrics:  opts.Metrics,
	}
	if opts.Limits.GlobalQPS > 0 {
		burst := opts.Limits.GlobalBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.Limits.GlobalQPS), burst)
	}
	if c.cfg.ChromeTLS && opts.Proxy.Global != "" {
		c.log("warn", "proxy ignored with chromeTLS", map[string]any{"proxy": opts.Proxy.Global})
	}
	c.http = c.newHTTPClient(opts.Proxy, c.sess.Jar())
	c.tokenHTTP = c.newHTTPClient(opts.Proxy, nil)
	return c
}

func (c *Client) Name() string { return "nvidia" }

type cartProduct struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartReq struct {
	Products []cartProduct `json:"products"`
}

type cartResp struct {
	Message string `json:"message"`
}

type tokenResp struct {
	SessionToken *string `json:"session_token"`
}

// CheckStock polls the inventory endpoint once. Only the marker in the raw body
// decides the result; the status code is logged and otherwise ignored. A
// transport failure marks the API offline and reads as out of stock.
func (c *Client) CheckStock(ctx context.Context, target model.ProductTarget) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"locale":    target.Locale,
			"currency":  target.Currency,
			"productId": target.ProductID,
		}).
		Get(c.cfg.StockURL)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.log("info", unexpectedReply, map[string]any{"productId": target.ProductID, "error": err.Error()})
		c.metrics.StockCheck("error")
		if c.observer != nil {
			c.observer.ObserveAPIStatus(ctx, model.APIStatusOffline)
		}
		return false, nil
	}

	c.log("debug", "stock check response", map[string]any{"productId": target.ProductID, "status": resp.StatusCode()})
	if resp.StatusCode() != http.StatusOK {
		c.log("debug", "stock check body", map[string]any{"productId": target.ProductID, "body": resp.String()})
	}
	inStock := strings.Contains(resp.String(), InStockMarker)
	if inStock {
		c.metrics.StockCheck("in_stock")
	} else {
		c.metrics.StockCheck("out_of_stock")
	}
	return inStock, nil
}

// SessionToken fetches a fresh token for one cart attempt. Every failure,
// including a 200 without the token field, reads as ("", false).
func (c *Client) SessionToken(ctx context.Context, locale string) (string, bool) {
	if err := c.wait(ctx); err != nil {
		return "", false
	}
	req := c.tokenHTTP.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"format": "json", "locale": locale}).
		SetHeader("locale", locale)
	if header := c.sess.CookieHeader(); header != "" {
		req.SetHeader("Cookie", header)
	}
	c.log("debug", "requesting session token", map[string]any{"locale": locale, "cookies": len(c.sess.Cookies())})
	resp, err := req.Get(c.cfg.TokenURL)
	if resp != nil && resp.RawResponse != nil {
		c.sess.Store(c.cfg.TokenURL, resp.Cookies())
	}
	if err != nil {
		c.log("info", unexpectedReply, map[string]any{"op": "session token", "error": err.Error()})
		c.metrics.TokenRequest(false)
		return "", false
	}
	if resp.StatusCode() != http.StatusOK {
		c.log("debug", "get session token", map[string]any{"status": resp.StatusCode()})
		c.metrics.TokenRequest(false)
		return "", false
	}

	var body tokenResp
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		c.log("warn", "session token response is not json", map[string]any{"error": err.Error()})
		c.metrics.TokenRequest(false)
		return "", false
	}
	if body.SessionToken == nil {
		c.log("error", "error getting session token", nil)
		c.metrics.TokenRequest(false)
		return "", false
	}
	c.metrics.TokenRequest(true)
	return *body.SessionToken, true
}

// AddToCart gets a session token and, only if that worked, posts the product
// to the cart. Failures are logged and read as false.
func (c *Client) AddToCart(ctx context.Context, target model.ProductTarget) (bool, error) {
	token, ok := c.SessionToken(ctx, target.Locale)
	if !ok {
		c.metrics.CartAttempt(false)
		return false, ctx.Err()
	}
	c.log("info", "session token acquired", map[string]any{"productId": target.ProductID, "tokenLen": len(token)})

	if err := c.wait(ctx); err != nil {
		return false, err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("locale", target.Locale).
		SetHeader(c.cfg.TokenHeader, token).
		SetHeader("Content-Type", "application/json").
		SetBody(cartReq{Products: []cartProduct{{ProductID: target.ProductID, Quantity: 1}}}).
		Post(c.cfg.CartURL)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.log("info", unexpectedReply, map[string]any{"op": "add to cart", "productId": target.ProductID, "error": err.Error()})
		c.metrics.CartAttempt(false)
		return false, nil
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		var body cartResp
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			c.log("warn", "add to cart response is not json", map[string]any{"productId": target.ProductID, "body": resp.String()})
			c.metrics.CartAttempt(false)
			return false, nil
		}
		added := strings.Contains(body.Message, CartSuccessMarker)
		if !added {
			c.log("warn", "add to cart rejected", map[string]any{"productId": target.ProductID, "message": body.Message})
		}
		c.metrics.CartAttempt(added)
		return added, nil
	default:
		c.log("error", resp.String(), nil)
		c.log("error", "add to cart failed, likely an error with the store API", map[string]any{
			"productId": target.ProductID,
			"status":    resp.StatusCode(),
		})
		c.metrics.CartAttempt(false)
		return false, nil
	}
}

// newHTTPClient builds a resty client. A nil jar disables cookie handling.
func (c *Client) newHTTPClient(proxy config.ProxyConfig, jar http.CookieJar) *resty.Client {
	client := resty.New().
		SetTimeout(c.cfg.Timeout()).
		SetCookieJar(jar).
		SetRetryCount(c.cfg.Retry.Count).
		SetRetryWaitTime(c.cfg.Retry.Wait()).
		SetRetryMaxWaitTime(c.cfg.Retry.MaxWait()).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			if r == nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	if c.cfg.ChromeTLS {
		client.SetTransport(transport.NewChromeTransport(c.cfg.Timeout()))
	} else if proxy.Global != "" {
		client.SetProxy(proxy.Global)
	}

	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", c.cfg.UserAgent)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		c.log("debug", "http request", map[string]any{
			"method": req.Method,
			"url":    req.URL,
		})
		return nil
	})
	return client
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	if err := c.limiter.Wait(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (c *Client) log(level, msg string, fields map[string]any) {
	if c.bus != nil {
		c.bus.Log(level, msg, fields)
	}
}
