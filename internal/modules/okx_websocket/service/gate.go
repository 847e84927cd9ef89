package service

import (
	"context"
	"sync"
	"time"
)

// Gate — общая готовность обоих стримов. Торговля не стартует, пока оба
// не подтвердили все подписки.
type Gate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	public  bool
	private bool
}

func NewGate() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *Gate) SetPublic(ok bool) {
	g.mu.Lock()
	g.public = ok
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *Gate) SetPrivate(ok bool) {
	g.mu.Lock()
	g.private = ok
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.public && g.private
}

// AwaitBoth — ждёт готовности обоих стримов либо истечения таймаута/контекста.
func (g *Gate) AwaitBoth(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		g.cond.Broadcast()
	}()

	g.mu.Lock()
	defer g.mu.Unlock()
	for !(g.public && g.private) {
		if ctx.Err() != nil || time.Now().After(deadline) {
			return false
		}
		// Будильник, чтобы переоценить дедлайн даже без Broadcast.
		t := time.AfterFunc(time.Second, g.cond.Broadcast)
		g.cond.Wait()
		t.Stop()
	}
	return true
}
