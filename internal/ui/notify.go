package ui

import "sync"

// pinger fans out refresh signals to connected event streams. Payloads
// carry no data; a listener that receives a ping re-queries the store.
type pinger struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newPinger() *pinger {
	return &pinger{subs: make(map[chan struct{}]struct{})}
}

// subscribe registers a listener and returns its channel along with a
// cancel function that must be called when the listener goes away.
func (p *pinger) subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
	}
	return ch, cancel
}

// ping signals every listener. A listener with a pending ping is
// skipped; one queued signal is enough to trigger a refresh.
func (p *pinger) ping() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
