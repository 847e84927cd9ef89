package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"swap_bot/internal/helper"
	"swap_bot/internal/models"
	"swap_bot/internal/modules/config"
	"swap_bot/pkg/logger"
)

const (
	livePrivateURL = "wss://ws.okx.com:8443/ws/v5/private"
	demoPrivateURL = "wss://wspap.okx.com:8443/ws/v5/private?brokerId=9999"

	loginTimeout = 10 * time.Second
)

// AccountPush — срез баланса из канала account.
type AccountPush struct {
	TotalEquity      float64
	AvailableBalance float64
}

// PrivateStream — positions + account после логина.
type PrivateStream struct {
	cfg  *config.Config
	gate *Gate

	mu        sync.Mutex
	conn      *websocket.Conn
	confirmed map[string]bool
	loggedIn  bool

	onPositions func([]models.OpenPosition)
	onAccount   func(AccountPush)
	onOrder     func(models.PendingOrder)
}

func NewPrivateStream(cfg *config.Config, gate *Gate) *PrivateStream {
	return &PrivateStream{cfg: cfg, gate: gate}
}

// Колбэки ставятся до Run, из одного потока.
func (s *PrivateStream) OnPositions(fn func([]models.OpenPosition)) { s.onPositions = fn }
func (s *PrivateStream) OnAccount(fn func(AccountPush))             { s.onAccount = fn }
func (s *PrivateStream) OnOrder(fn func(models.PendingOrder))       { s.onOrder = fn }

func (s *PrivateStream) Close() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *PrivateStream) url() string {
	if s.cfg.DemoMode {
		return demoPrivateURL
	}
	return livePrivateURL
}

func (s *PrivateStream) channels() []string { return []string{"positions", "account", "orders"} }

func loginSign(secret string, ts string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(ts + "GET" + "/users/self/verify"))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Run — логин, подписки, чтение до обрыва.
func (s *PrivateStream) Run(ctx context.Context) error {
	defer s.gate.SetPrivate(false)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url(), nil)
	if err != nil {
		return errors.Wrap(err, "private dial")
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.confirmed = map[string]bool{}
	s.loggedIn = false
	s.mu.Unlock()

	cr := s.cfg.ActiveCredentials()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	login := map[string]any{
		"op": "login",
		"args": []map[string]string{{
			"apiKey":     cr.APIKey,
			"passphrase": cr.Passphrase,
			"timestamp":  ts,
			"sign":       loginSign(cr.SecretKey, ts),
		}},
	}
	if err := conn.WriteJSON(login); err != nil {
		return errors.Wrap(err, "private login write")
	}

	stopPing := startKeepalive(ctx, conn)
	defer close(stopPing)

	_ = conn.SetReadDeadline(time.Now().Add(loginTimeout))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "private read")
		}
		if err := s.handle(conn, msg); err != nil {
			return err
		}
	}
}

func (s *PrivateStream) handle(conn *websocket.Conn, msg []byte) error {
	var f wsFrame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		return nil
	}

	switch f.Event {
	case "login":
		if f.Code != "0" {
			return errors.Errorf("private login failed: code=%s msg=%s", f.Code, f.Msg)
		}
		s.mu.Lock()
		s.loggedIn = true
		s.mu.Unlock()
		_ = conn.SetReadDeadline(time.Time{})

		args := []map[string]string{
			{"channel": "positions", "instType": "SWAP"},
			{"channel": "account"},
			{"channel": "orders", "instType": "SWAP"},
		}
		if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": args}); err != nil {
			return errors.Wrap(err, "private subscribe")
		}
		return nil
	case "subscribe":
		s.mu.Lock()
		s.confirmed[f.Arg.Channel] = true
		ready := s.loggedIn
		for _, ch := range s.channels() {
			if !s.confirmed[ch] {
				ready = false
			}
		}
		s.mu.Unlock()
		if ready {
			logger.Info("private stream ready")
			s.gate.SetPrivate(true)
		}
		return nil
	case "error":
		logger.Error("private stream error: code=%s msg=%s", f.Code, f.Msg)
		return nil
	}

	switch f.Arg.Channel {
	case "positions":
		s.handlePositions(f.Data)
	case "account":
		s.handleAccount(f.Data)
	case "orders":
		s.handleOrders(f.Data)
	}
	return nil
}

func (s *PrivateStream) handlePositions(raw []byte) {
	if s.onPositions == nil {
		return
	}
	var data []struct {
		InstID      string `json:"instId"`
		PosSide     string `json:"posSide"`
		Pos         string `json:"pos"`
		AvgPx       string `json:"avgPx"`
		LiqPx       string `json:"liqPx"`
		Upl         string `json:"upl"`
		Lever       string `json:"lever"`
		MgnMode     string `json:"mgnMode"`
		NotionalUsd string `json:"notionalUsd"`
	}
	if sonic.Unmarshal(raw, &data) != nil {
		return
	}
	res := make([]models.OpenPosition, 0, len(data))
	for _, d := range data {
		if d.InstID != s.cfg.Symbol {
			continue
		}
		res = append(res, models.OpenPosition{
			InstID:      d.InstID,
			PosSide:     d.PosSide,
			Qty:         helper.ParseFloat(d.Pos),
			AvgPx:       helper.ParseFloat(d.AvgPx),
			LiqPx:       helper.ParseFloat(d.LiqPx),
			Upl:         helper.ParseFloat(d.Upl),
			Lever:       helper.ParseFloat(d.Lever),
			MgnMode:     d.MgnMode,
			NotionalUsd: helper.ParseFloat(d.NotionalUsd),
		})
	}
	s.onPositions(res)
}

func (s *PrivateStream) handleAccount(raw []byte) {
	if s.onAccount == nil {
		return
	}
	var data []struct {
		TotalEq string `json:"totalEq"`
		Details []struct {
			Ccy      string `json:"ccy"`
			AvailBal string `json:"availBal"`
			AvailEq  string `json:"availEq"`
		} `json:"details"`
	}
	if sonic.Unmarshal(raw, &data) != nil || len(data) == 0 {
		return
	}
	p := AccountPush{TotalEquity: helper.ParseFloat(data[0].TotalEq)}
	for _, d := range data[0].Details {
		if d.Ccy != "USDT" {
			continue
		}
		p.AvailableBalance = helper.ParseFloat(d.AvailBal)
		if p.AvailableBalance == 0 {
			p.AvailableBalance = helper.ParseFloat(d.AvailEq)
		}
	}
	s.onAccount(p)
}

func (s *PrivateStream) handleOrders(raw []byte) {
	if s.onOrder == nil {
		return
	}
	var data []struct {
		OrdID      string `json:"ordId"`
		InstID     string `json:"instId"`
		Side       string `json:"side"`
		PosSide    string `json:"posSide"`
		Px         string `json:"px"`
		Sz         string `json:"sz"`
		AccFillSz  string `json:"accFillSz"`
		State      string `json:"state"`
		OrdType    string `json:"ordType"`
		ReduceOnly string `json:"reduceOnly"`
		CTime      string `json:"cTime"`
	}
	if sonic.Unmarshal(raw, &data) != nil {
		return
	}
	for _, d := range data {
		if d.InstID != s.cfg.Symbol {
			continue
		}
		var ctime time.Time
		if ms := helper.ParseFloat(d.CTime); ms > 0 {
			ctime = time.UnixMilli(int64(ms))
		}
		s.onOrder(models.PendingOrder{
			OrdID:      d.OrdID,
			InstID:     d.InstID,
			Side:       d.Side,
			PosSide:    d.PosSide,
			Px:         helper.ParseFloat(d.Px),
			Sz:         helper.ParseFloat(d.Sz),
			AccFillSz:  helper.ParseFloat(d.AccFillSz),
			State:      d.State,
			OrdType:    d.OrdType,
			ReduceOnly: d.ReduceOnly == "true",
			CTime:      ctime,
		})
	}
}
