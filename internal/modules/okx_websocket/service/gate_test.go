package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"swap_bot/internal/models"
	"swap_bot/internal/modules/config"
	"swap_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func TestGateReadyOnlyWhenBoth(t *testing.T) {
	g := NewGate()
	if g.Ready() {
		t.Fatal("fresh gate must not be ready")
	}
	g.SetPublic(true)
	if g.Ready() {
		t.Fatal("public alone is not enough")
	}
	g.SetPrivate(true)
	if !g.Ready() {
		t.Fatal("both streams confirmed, gate must open")
	}
	g.SetPublic(false)
	if g.Ready() {
		t.Fatal("stream drop must close the gate")
	}
}

func TestGateAwaitBoth(t *testing.T) {
	g := NewGate()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.SetPublic(true)
		g.SetPrivate(true)
	}()
	if !g.AwaitBoth(context.Background(), 2*time.Second) {
		t.Fatal("AwaitBoth must return true once both streams are up")
	}
}

func TestGateAwaitBothTimeout(t *testing.T) {
	g := NewGate()
	g.SetPublic(true)

	start := time.Now()
	if g.AwaitBoth(context.Background(), 50*time.Millisecond) {
		t.Fatal("AwaitBoth must time out with only one stream")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout took far longer than requested")
	}
}

func TestGateAwaitBothCanceled(t *testing.T) {
	g := NewGate()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if g.AwaitBoth(ctx, 10*time.Second) {
		t.Fatal("canceled context must abort the wait")
	}
}

func TestLoginSign(t *testing.T) {
	// Подпись логина: ts + "GET" + "/users/self/verify", unix-секунды.
	secret := "test-secret"
	ts := "1700000000"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "GET" + "/users/self/verify"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if got := loginSign(secret, ts); got != want {
		t.Fatalf("loginSign = %q, want %q", got, want)
	}
}

func TestHandlePositionsFiltersSymbol(t *testing.T) {
	cfg := config.Defaults()
	s := NewPrivateStream(cfg, NewGate())

	var got []models.OpenPosition
	s.OnPositions(func(p []models.OpenPosition) { got = p })

	raw := []byte(`[
		{"instId":"ETH-USDT-SWAP","posSide":"long","pos":"5","avgPx":"2980.5","upl":"3.2","lever":"10","mgnMode":"cross","notionalUsd":"1490"},
		{"instId":"BTC-USDT-SWAP","posSide":"long","pos":"1","avgPx":"60000"}
	]`)
	s.handlePositions(raw)

	if len(got) != 1 {
		t.Fatalf("positions=%d, foreign symbol must be dropped", len(got))
	}
	p := got[0]
	if p.PosSide != "long" || p.Qty != 5 || p.AvgPx != 2980.5 || p.NotionalUsd != 1490 {
		t.Fatalf("parsed=%+v", p)
	}
}

func TestHandleAccountUSDTDetail(t *testing.T) {
	cfg := config.Defaults()
	s := NewPrivateStream(cfg, NewGate())

	var got AccountPush
	s.OnAccount(func(p AccountPush) { got = p })

	raw := []byte(`[{"totalEq":"1234.5","details":[
		{"ccy":"BTC","availBal":"0.5"},
		{"ccy":"USDT","availBal":"","availEq":"1100.25"}
	]}]`)
	s.handleAccount(raw)

	if got.TotalEquity != 1234.5 {
		t.Fatalf("totalEq=%v", got.TotalEquity)
	}
	if got.AvailableBalance != 1100.25 {
		t.Fatalf("avail=%v, want availEq fallback", got.AvailableBalance)
	}
}

func TestHandleOrdersParsesPush(t *testing.T) {
	cfg := config.Defaults()
	s := NewPrivateStream(cfg, NewGate())

	var got []models.PendingOrder
	s.OnOrder(func(o models.PendingOrder) { got = append(got, o) })

	raw := []byte(`[{"instId":"ETH-USDT-SWAP","ordId":"123","side":"buy","posSide":"long",
		"px":"2978","sz":"3","accFillSz":"1","state":"partially_filled","ordType":"limit",
		"reduceOnly":"false","cTime":"1700000000000"}]`)
	s.handleOrders(raw)

	if len(got) != 1 {
		t.Fatal("order push not delivered")
	}
	o := got[0]
	if o.OrdID != "123" || o.State != "partially_filled" || o.Px != 2978 || o.AccFillSz != 1 {
		t.Fatalf("parsed=%+v", o)
	}
	if o.ReduceOnly {
		t.Fatal("reduceOnly misparsed")
	}
	if o.CTime.UnixMilli() != 1700000000000 {
		t.Fatalf("cTime=%v", o.CTime)
	}
}
