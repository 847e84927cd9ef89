package service

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"swap_bot/internal/modules/config"
)

const (
	liveBaseURL = "https://www.okx.com"

	requestTimeout = 15 * time.Second
)

// Client — подписывающий REST-клиент OKX v5. Один на процесс.
type Client struct {
	http    *http.Client
	baseURL string

	apiKey    string
	apiSecret string
	passph    string
	demo      bool

	limiter *RateLimiter

	// Смещение серверного времени в наносекундах (server - local).
	timeOffset atomic.Int64

	credentialsInvalid atomic.Bool
	credMu             sync.Mutex
	onCredInvalid      func(code, msg string)
}

func NewClient(cfg *config.Config) *Client {
	cr := cfg.ActiveCredentials()

	base := cfg.RestBaseURL
	if base == "" {
		base = liveBaseURL
	}

	return &Client{
		http:      &http.Client{Timeout: requestTimeout},
		baseURL:   base,
		apiKey:    cr.APIKey,
		apiSecret: cr.SecretKey,
		passph:    cr.Passphrase,
		demo:      cfg.DemoMode,
		limiter:   NewRateLimiter(),
	}
}

// SetCredentials — живая замена ключей. Сбрасывает защёлку инвалидации.
func (c *Client) SetCredentials(cr config.Credentials) {
	c.credMu.Lock()
	c.apiKey = cr.APIKey
	c.apiSecret = cr.SecretKey
	c.passph = cr.Passphrase
	c.credMu.Unlock()
	c.credentialsInvalid.Store(false)
}

// OnCredentialsInvalid — колбэк на первую инвалидацию ключей.
func (c *Client) OnCredentialsInvalid(fn func(code, msg string)) {
	c.credMu.Lock()
	c.onCredInvalid = fn
	c.credMu.Unlock()
}

func (c *Client) CredentialsInvalid() bool { return c.credentialsInvalid.Load() }

func (c *Client) markCredentialsInvalid(code, msg string) {
	if c.credentialsInvalid.Swap(true) {
		return
	}
	c.credMu.Lock()
	fn := c.onCredInvalid
	c.credMu.Unlock()
	if fn != nil {
		fn(code, msg)
	}
}

func (c *Client) credentials() (key, secret, passph string) {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	return c.apiKey, c.apiSecret, c.passph
}

// ServerNow — локальное время с поправкой на смещение серверного.
func (c *Client) ServerNow() time.Time {
	return time.Now().Add(time.Duration(c.timeOffset.Load()))
}
