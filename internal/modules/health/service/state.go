package service

import (
	"sync/atomic"
	"time"
)

// State здоровье бота: готовность, связь с тикером, итоги последнего цикла.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected   atomic.Bool
	lastCycleUnix atomic.Int64 // unix seconds
	cycles        atomic.Int64
	priced        atomic.Int64
	priceFailures atomic.Int64
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

// RecordCycle итог цикла: сколько символов получили цену и по скольким цены нет.
func (s *State) RecordCycle(at time.Time, priced, failed int) {
	s.lastCycleUnix.Store(at.Unix())
	s.cycles.Add(1)
	s.priced.Store(int64(priced))
	s.priceFailures.Store(int64(failed))
}

func (s *State) LastCycle() time.Time {
	u := s.lastCycleUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Cycles() int64 { return s.cycles.Load() }

func (s *State) LastCycleCounts() (priced, failed int) {
	return int(s.priced.Load()), int(s.priceFailures.Load())
}

// Stale последний цикл старше maxAge. До первого цикла false: это закрывает Ready.
func (s *State) Stale(now time.Time, maxAge time.Duration) bool {
	last := s.LastCycle()
	if last.IsZero() || maxAge <= 0 {
		return false
	}
	return now.Sub(last) > maxAge
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
