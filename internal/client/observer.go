package client

import (
	"sync"

	"cipherlink/internal/domain"
)

// ObserverFuncs adapts plain functions to domain.Observer. Nil fields are
// skipped.
type ObserverFuncs struct {
	StateChanged  func(domain.State, error)
	RosterChanged func([]domain.Peer)
	Message       func(domain.PeerID, domain.Entry, domain.Delivery)
	Busy          func(bool)
}

func (o ObserverFuncs) OnStateChanged(s domain.State, err error) {
	if o.StateChanged != nil {
		o.StateChanged(s, err)
	}
}

func (o ObserverFuncs) OnRosterChanged(p []domain.Peer) {
	if o.RosterChanged != nil {
		o.RosterChanged(p)
	}
}

func (o ObserverFuncs) OnMessage(id domain.PeerID, e domain.Entry, d domain.Delivery) {
	if o.Message != nil {
		o.Message(id, e, d)
	}
}

func (o ObserverFuncs) OnBusy(b bool) {
	if o.Busy != nil {
		o.Busy(b)
	}
}

// fanout delivers every notification to each registered observer in
// registration order.
type fanout struct {
	mu        sync.RWMutex
	observers []domain.Observer
}

func (f *fanout) add(o domain.Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, o)
}

func (f *fanout) each(fn func(domain.Observer)) {
	f.mu.RLock()
	obs := append([]domain.Observer(nil), f.observers...)
	f.mu.RUnlock()
	for _, o := range obs {
		fn(o)
	}
}

func (f *fanout) OnStateChanged(s domain.State, err error) {
	f.each(func(o domain.Observer) { o.OnStateChanged(s, err) })
}

func (f *fanout) OnRosterChanged(p []domain.Peer) {
	f.each(func(o domain.Observer) { o.OnRosterChanged(p) })
}

func (f *fanout) OnMessage(id domain.PeerID, e domain.Entry, d domain.Delivery) {
	f.each(func(o domain.Observer) { o.OnMessage(id, e, d) })
}

func (f *fanout) OnBusy(b bool) {
	f.each(func(o domain.Observer) { o.OnBusy(b) })
}

var (
	_ domain.Observer = ObserverFuncs{}
	_ domain.Observer = (*fanout)(nil)
)
