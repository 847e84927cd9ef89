package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"swap_bot/internal/modules/config"
	"swap_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.RestBaseURL = srv.URL
	cfg.DemoMode = true
	cfg.UserDemo = config.Credentials{
		APIKey:     "test-key",
		SecretKey:  "test-secret",
		Passphrase: "test-pass",
	}
	return NewClient(cfg), srv
}

func TestRequestSigning(t *testing.T) {
	var gotReq *http.Request
	var gotBody []byte

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(r.Context())
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	})

	body := map[string]string{
		"instId":  "ETH-USDT-SWAP",
		"ccy":     "USDT",
		"amt":     "10",
		"tdMode":  "cross",
		"posSide": "long",
	}
	env, apiErr := c.Request(context.Background(), http.MethodPost, "/api/v5/account/position/margin-balance", nil, body, 0)
	if apiErr != nil {
		t.Fatal(apiErr)
	}
	if !env.Ok() {
		t.Fatalf("envelope code %q", env.Code)
	}

	// Тело — компактный JSON с ключами по алфавиту, байт в байт с подписью.
	wantBody := `{"amt":"10","ccy":"USDT","instId":"ETH-USDT-SWAP","posSide":"long","tdMode":"cross"}`
	if string(gotBody) != wantBody {
		t.Errorf("body = %s, want %s", gotBody, wantBody)
	}

	ts := gotReq.Header.Get("OK-ACCESS-TIMESTAMP")
	if ts == "" {
		t.Fatal("no OK-ACCESS-TIMESTAMP header")
	}
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(ts + "POST" + "/api/v5/account/position/margin-balance"))
	mac.Write(gotBody)
	wantSign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if got := gotReq.Header.Get("OK-ACCESS-SIGN"); got != wantSign {
		t.Errorf("signature = %q, want %q", got, wantSign)
	}
	if got := gotReq.Header.Get("OK-ACCESS-KEY"); got != "test-key" {
		t.Errorf("api key header = %q", got)
	}
	if got := gotReq.Header.Get("OK-ACCESS-PASSPHRASE"); got != "test-pass" {
		t.Errorf("passphrase header = %q", got)
	}
	if got := gotReq.Header.Get("x-simulated-trading"); got != "1" {
		t.Errorf("demo header = %q, want 1", got)
	}
}

func TestRequestQueryCanonical(t *testing.T) {
	var gotPath, gotQuery, gotSign, gotTS string

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotSign = r.Header.Get("OK-ACCESS-SIGN")
		gotTS = r.Header.Get("OK-ACCESS-TIMESTAMP")
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	})

	q := url.Values{}
	q.Set("instType", "SWAP")
	q.Set("instId", "ETH-USDT-SWAP")
	if _, apiErr := c.Request(context.Background(), http.MethodGet, "/api/v5/trade/orders-pending", q, nil, 0); apiErr != nil {
		t.Fatal(apiErr)
	}

	// Encode сортирует ключи.
	if gotQuery != "instId=ETH-USDT-SWAP&instType=SWAP" {
		t.Errorf("query = %q", gotQuery)
	}

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(gotTS + "GET" + gotPath + "?" + gotQuery))
	if want := base64.StdEncoding.EncodeToString(mac.Sum(nil)); gotSign != want {
		t.Errorf("signature over path+query = %q, want %q", gotSign, want)
	}
}

func TestRequestRetriesUndecodableServerError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream choked"))
			return
		}
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	})

	env, apiErr := c.Request(context.Background(), http.MethodGet, "/api/v5/market/ticker", nil, nil, 1)
	if apiErr != nil {
		t.Fatal(apiErr)
	}
	if !env.Ok() {
		t.Fatalf("envelope code %q", env.Code)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestRequestReturnsDecodableBusinessError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	})

	env, apiErr := c.Request(context.Background(), http.MethodPost, "/api/v5/trade/cancel-order", nil, map[string]string{"ordId": "1"}, 3)
	if apiErr != nil {
		t.Fatalf("decodable envelope must not be a transport error: %v", apiErr)
	}
	if env.Code != "51001" {
		t.Fatalf("code = %q", env.Code)
	}
	// Бизнес-код не ретраится.
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestRequestCredentialLatch(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"code":"50111","msg":"Invalid OK-ACCESS-KEY","data":[]}`))
	})

	var latchCode string
	var latched atomic.Int32
	c.OnCredentialsInvalid(func(code, msg string) {
		latchCode = code
		latched.Add(1)
	})

	_, apiErr := c.Request(context.Background(), http.MethodGet, "/api/v5/account/balance", nil, nil, 3)
	if apiErr == nil || apiErr.Kind != KindCredentialInvalid {
		t.Fatalf("want credential error, got %v", apiErr)
	}
	if !c.CredentialsInvalid() {
		t.Fatal("latch not set")
	}
	if latchCode != "50111" || latched.Load() != 1 {
		t.Fatalf("callback: code=%q fired=%d", latchCode, latched.Load())
	}

	// Защёлка: повторный запрос падает сразу, не трогая сеть.
	before := calls.Load()
	if _, apiErr = c.Request(context.Background(), http.MethodGet, "/api/v5/account/balance", nil, nil, 3); apiErr == nil {
		t.Fatal("latched client accepted a request")
	}
	if calls.Load() != before {
		t.Fatal("latched client hit the network")
	}

	// Новые ключи снимают защёлку.
	c.SetCredentials(config.Credentials{APIKey: "k2", SecretKey: "s2", Passphrase: "p2"})
	if c.CredentialsInvalid() {
		t.Fatal("SetCredentials did not reset the latch")
	}
}

func TestRequestCredentialLatchOn401(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("unauthorized"))
	})

	var latched atomic.Int32
	c.OnCredentialsInvalid(func(code, msg string) { latched.Add(1) })

	_, apiErr := c.Request(context.Background(), http.MethodGet, "/api/v5/account/balance", nil, nil, 3)
	if apiErr == nil || apiErr.Kind != KindCredentialInvalid {
		t.Fatalf("want credential error, got %v", apiErr)
	}
	if latched.Load() != 1 {
		t.Fatalf("callback fired %d times, want 1", latched.Load())
	}
}
