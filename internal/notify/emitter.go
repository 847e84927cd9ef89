package notify

import (
	"sync"

	"swap_bot/internal/models"
	"swap_bot/pkg/logger"
)

// Emitter — граница движок -> UI. Движок шлёт события и не знает, кто слушает.
type Emitter interface {
	Emit(event string, payload any)
}

// FanOut — рассылает событие всем подписчикам. Подписчики не должны блокировать.
type FanOut struct {
	mu    sync.RWMutex
	sinks []Emitter
}

func NewFanOut() *FanOut { return &FanOut{} }

func (f *FanOut) Attach(e Emitter) {
	f.mu.Lock()
	f.sinks = append(f.sinks, e)
	f.mu.Unlock()
}

func (f *FanOut) Emit(event string, payload any) {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()
	for _, s := range sinks {
		s.Emit(event, payload)
	}
}

// LogEmitter — запасной подписчик: события уходят в обычный лог.
type LogEmitter struct{}

func (LogEmitter) Emit(event string, payload any) {
	// console_log не дублируем, он сам порождён логом.
	if event == models.EventConsoleLog {
		return
	}
	logger.Debug("emit %s: %+v", event, payload)
}
