package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"swap_bot/pkg/logger"
)

const tsLayout = "2006-01-02T15:04:05.000Z"

// Envelope — стандартный конверт ответа OKX v5.
type Envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (e *Envelope) Ok() bool { return e.Code == "0" }

func (e *Envelope) Into(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return sonic.Unmarshal(e.Data, v)
}

// canonicalBody — компактный JSON с отсортированными ключами. Тело в подписи
// и тело в запросе обязаны совпадать байт в байт.
func canonicalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return sonic.ConfigStd.Marshal(body)
}

func (c *Client) sign(ts, method, requestPath string, body []byte) string {
	_, secret, _ := c.credentials()
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(ts + strings.ToUpper(method) + requestPath))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Request — подписанный запрос с ретраями. Нелитеральный не-"0" код OKX не
// считается ошибкой транспорта: конверт возвращается вызывающему как есть,
// решение за эндпоинтом.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body any, maxRetries int) (*Envelope, *APIError) {
	if c.credentialsInvalid.Load() {
		return nil, &APIError{Kind: KindCredentialInvalid, Msg: "credentials already invalidated"}
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "okx.request")
	span.SetTag("http.method", method)
	span.SetTag("okx.path", path)
	defer span.Finish()

	requestPath := path
	if len(query) > 0 {
		// Encode сортирует по ключу: канонична и подпись, и строка запроса.
		requestPath += "?" + query.Encode()
	}

	payload, err := canonicalBody(body)
	if err != nil {
		return nil, &APIError{Kind: KindDecode, Msg: "marshal body", Err: err}
	}

	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			logger.Debug("okx request %s %s retry %d after %s: %v", method, path, attempt, backoff, lastErr)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, &APIError{Kind: KindTimeout, Msg: "retry wait", Err: err}
			}
		}

		if err := c.limiter.Acquire(ctx, path); err != nil {
			return nil, &APIError{Kind: KindTimeout, Msg: "rate limit wait", Err: err}
		}

		env, apiErr := c.doOnce(ctx, method, requestPath, payload)
		if apiErr == nil {
			return env, nil
		}
		if !apiErr.retryable() {
			return nil, apiErr
		}
		lastErr = apiErr
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, requestPath string, payload []byte) (*Envelope, *APIError) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	ts := c.ServerNow().UTC().Format(tsLayout)

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, rd)
	if err != nil {
		return nil, &APIError{Kind: KindUnsupported, Msg: "build request", Err: err}
	}

	key, _, passph := c.credentials()
	req.Header.Set("OK-ACCESS-KEY", key)
	req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, requestPath, payload))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", passph)
	req.Header.Set("Content-Type", "application/json")
	if c.demo {
		req.Header.Set("x-simulated-trading", "1")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &APIError{Kind: KindTimeout, Msg: "request timeout", Err: errors.Wrap(err, method+" "+requestPath)}
		}
		return nil, &APIError{Kind: KindHTTP, Msg: "transport", Err: errors.Wrap(err, method+" "+requestPath)}
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindHTTP, HTTPStatus: resp.StatusCode, Msg: "read body", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.markCredentialsInvalid("401", string(rb))
		return nil, &APIError{Kind: KindCredentialInvalid, HTTPStatus: resp.StatusCode, Msg: string(rb)}
	}

	var env Envelope
	if err := sonic.Unmarshal(rb, &env); err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, &APIError{Kind: KindHTTP, HTTPStatus: resp.StatusCode, Msg: string(rb)}
		}
		return nil, &APIError{Kind: KindDecode, HTTPStatus: resp.StatusCode, Msg: string(rb), Err: err}
	}

	if credentialCodes[env.Code] {
		c.markCredentialsInvalid(env.Code, env.Msg)
		return nil, &APIError{Kind: KindCredentialInvalid, Code: env.Code, HTTPStatus: resp.StatusCode, Msg: env.Msg}
	}

	// Декодируемый конверт отдаём как есть, даже при не-2xx статусе.
	return &env, nil
}
