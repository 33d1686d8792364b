// Package connectivity tracks whether the remote authoritative tier is
// reachable. The tiered store consults the signal on every operation
// instead of caching a decision, so tier selection follows connectivity
// flips immediately.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Signal reports the current connectivity state of the remote tier.
type Signal interface {
	Online() bool
}

// Flag is a settable Signal, used directly in tests and embedded by the
// monitor as its state cell.
type Flag struct {
	online atomic.Bool
}

func (f *Flag) Online() bool { return f.online.Load() }

func (f *Flag) Set(online bool) { f.online.Store(online) }

// PingFunc probes the remote tier, returning nil when it is reachable.
type PingFunc func(ctx context.Context) error

// Monitor runs a standing ping loop against the remote tier and exposes
// the result as an observable flag.
type Monitor struct {
	Flag

	ping     PingFunc
	interval time.Duration

	mu     sync.Mutex
	subs   map[int]chan bool
	nextID int

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a monitor; call Start to begin probing.
func NewMonitor(ping PingFunc, interval time.Duration) *Monitor {
	return &Monitor{
		ping:     ping,
		interval: interval,
		subs:     make(map[int]chan bool),
		stop:     make(chan struct{}),
	}
}

// Start probes once immediately, then on every interval tick until Stop
// is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.probe(ctx)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.probe(ctx)
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the ping loop.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Subscribe registers for state-change notifications. The returned
// function unsubscribes.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	online := m.ping(probeCtx) == nil
	previous := m.Online()
	m.Set(online)

	if online == previous {
		return
	}

	log.Info().Bool("online", online).Msg("Remote tier connectivity changed")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default:
		}
	}
}
