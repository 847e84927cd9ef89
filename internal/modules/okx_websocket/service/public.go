package service

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"swap_bot/internal/helper"
	"swap_bot/internal/modules/config"
	"swap_bot/pkg/logger"
)

const (
	livePublicURL = "wss://ws.okx.com:8443/ws/v5/public"
	demoPublicURL = "wss://wspap.okx.com:8443/ws/v5/public?brokerId=9999"

	pingInterval = 20 * time.Second
)

type wsFrame struct {
	Event string `json:"event"`
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data sonicRaw `json:"data"`
}

type sonicRaw []byte

func (r *sonicRaw) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

// PublicStream — trades + tickers по торгуемому инструменту.
// Одна жизнь соединения на вызов Run; переподключение — забота супервизора.
type PublicStream struct {
	cfg  *config.Config
	gate *Gate

	mu         sync.Mutex
	conn       *websocket.Conn
	lastPrice  float64
	lastUpdate time.Time
	confirmed  map[string]bool
}

func NewPublicStream(cfg *config.Config, gate *Gate) *PublicStream {
	return &PublicStream{cfg: cfg, gate: gate}
}

// LastPrice — последняя цена и момент её обновления (monotonic-часы time.Now).
func (s *PublicStream) LastPrice() (float64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrice, s.lastUpdate
}

// Close — рвёт текущее соединение (сторож устаревания).
func (s *PublicStream) Close() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *PublicStream) url() string {
	if s.cfg.DemoMode {
		return demoPublicURL
	}
	return livePublicURL
}

func (s *PublicStream) channels() []string { return []string{"trades", "tickers"} }

// Run — подключиться, подписаться, читать до обрыва. Возвращает причину обрыва.
func (s *PublicStream) Run(ctx context.Context) error {
	defer s.gate.SetPublic(false)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url(), nil)
	if err != nil {
		return errors.Wrap(err, "public dial")
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.confirmed = map[string]bool{}
	s.mu.Unlock()

	args := make([]map[string]string, 0, 2)
	for _, ch := range s.channels() {
		args = append(args, map[string]string{"channel": ch, "instId": s.cfg.Symbol})
	}
	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": args}); err != nil {
		return errors.Wrap(err, "public subscribe")
	}

	stopPing := startKeepalive(ctx, conn)
	defer close(stopPing)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "public read")
		}
		s.handle(msg)
	}
}

func (s *PublicStream) handle(msg []byte) {
	var f wsFrame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		return
	}

	switch f.Event {
	case "subscribe":
		s.mu.Lock()
		s.confirmed[f.Arg.Channel] = true
		ready := true
		for _, ch := range s.channels() {
			if !s.confirmed[ch] {
				ready = false
			}
		}
		s.mu.Unlock()
		if ready {
			logger.Info("public stream ready: %s", s.cfg.Symbol)
			s.gate.SetPublic(true)
		}
		return
	case "error":
		logger.Error("public stream error: code=%s msg=%s", f.Code, f.Msg)
		return
	}

	switch f.Arg.Channel {
	case "trades":
		var data []struct {
			Px string `json:"px"`
		}
		if sonic.Unmarshal(f.Data, &data) != nil || len(data) == 0 {
			return
		}
		s.setPrice(helper.ParseFloat(data[0].Px))
	case "tickers":
		var data []struct {
			Last string `json:"last"`
		}
		if sonic.Unmarshal(f.Data, &data) != nil || len(data) == 0 {
			return
		}
		s.setPrice(helper.ParseFloat(data[0].Last))
	}
}

func (s *PublicStream) setPrice(px float64) {
	if px <= 0 {
		return
	}
	s.mu.Lock()
	s.lastPrice = px
	s.lastUpdate = time.Now()
	s.mu.Unlock()
}

// startKeepalive — ping каждые 20s, иначе OKX рвёт соединение.
func startKeepalive(ctx context.Context, conn *websocket.Conn) chan struct{} {
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			}
		}
	}()
	return stop
}
