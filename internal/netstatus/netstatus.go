// Package netstatus tracks whether the remote backend is reachable.
//
// A Monitor holds the current online/offline signal and notifies
// subscribers on transitions. Probe performs the active check used before
// each remote round trip: a HEAD request with a short timeout.
package netstatus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// ErrUnreachable is returned by Probe when the remote does not answer.
var ErrUnreachable = errors.New("remote unreachable")

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 3 * time.Second

// Monitor is the connectivity signal.
type Monitor struct {
	url     string
	timeout time.Duration
	client  *http.Client
	logger  *log.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]chan bool
	nextID int
}

// Config configures a Monitor.
type Config struct {
	// ProbeURL is requested with HEAD. Empty disables active probing and
	// Probe reports the last Set value.
	ProbeURL string

	// Timeout bounds each probe (default: 3s)
	Timeout time.Duration

	// Logger for transitions
	Logger *log.Logger
}

// New creates a monitor that starts online.
func New(cfg Config) *Monitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[netstatus] ", log.LstdFlags)
	}
	return &Monitor{
		url:     cfg.ProbeURL,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
		online:  true,
		subs:    make(map[int]chan bool),
	}
}

// Online returns the current signal.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set updates the signal and notifies subscribers on a change. Slow
// subscribers miss intermediate values, never the latest one.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	if online {
		m.logger.Println("Back online")
	} else {
		m.logger.Println("Offline")
	}
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Subscribe returns a channel receiving each transition and a func that
// unsubscribes and closes it.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Probe checks reachability and updates the signal. Any HTTP response,
// whatever its status, counts as reachable.
func (m *Monitor) Probe(ctx context.Context) error {
	if m.url == "" {
		if m.Online() {
			return nil
		}
		return ErrUnreachable
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.Set(false)
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	resp.Body.Close()
	m.Set(true)
	return nil
}
