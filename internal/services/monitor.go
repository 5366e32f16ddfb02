package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetbuddy/internal/log"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore"
)

// MonitorConfig holds configuration for the connectivity monitor
type MonitorConfig struct {
	// PollInterval is how often the record store is probed (default: 15s)
	PollInterval time.Duration

	// ProbeTimeout bounds a single Ping (default: 5s)
	ProbeTimeout time.Duration
}

// DefaultMonitorConfig returns sensible defaults
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval: 15 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Monitor probes the record store and drives the reconciler's connectivity
// transitions.
type Monitor struct {
	pinger     recordstore.Pinger
	reconciler *Reconciler
	queue      *offline.Queue
	config     MonitorConfig
	logger     *log.Logger

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	stopping bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewMonitor(pinger recordstore.Pinger, reconciler *Reconciler, queue *offline.Queue, config MonitorConfig, logger *log.Logger) *Monitor {
	defaults := DefaultMonitorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = defaults.ProbeTimeout
	}
	if logger == nil {
		logger = log.Default(log.ComponentMonitor)
	}
	return &Monitor{
		pinger:     pinger,
		reconciler: reconciler,
		queue:      queue,
		config:     config,
		logger:     logger,
	}
}

// Start begins the probe loop. Returns an error if already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("connectivity monitor is already running")
	}
	m.running = true
	m.stopping = false
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.runLoop(ctx)

	m.logger.InfoContext(ctx, "Connectivity monitor started", "poll_interval", m.config.PollInterval)
	return nil
}

// Stop gracefully stops the monitor and waits for completion. It may be
// called again after a timeout, and concurrently.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	if !m.stopping {
		m.stopping = true
		close(m.stopCh)
	}
	doneCh := m.doneCh
	m.mu.Unlock()

	select {
	case <-doneCh:
		m.logger.InfoContext(ctx, "Connectivity monitor stopped gracefully")
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "Connectivity monitor stop timed out")
		return ctx.Err()
	}

	m.mu.Lock()
	if m.doneCh == doneCh {
		m.running = false
	}
	m.mu.Unlock()

	return nil
}

// IsRunning returns whether the monitor is currently running
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) runLoop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	// Probe immediately on startup
	m.Probe(ctx)

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe pings the store once and applies the resulting transition.
func (m *Monitor) Probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	err := m.pinger.Ping(pingCtx)
	cancel()

	if err != nil {
		if m.reconciler.Online() {
			m.logger.WarnContext(ctx, "Record store unreachable", log.FieldError, err)
			m.reconciler.GoOffline(ctx)
		}
		return
	}

	if !m.reconciler.Online() {
		m.logger.InfoContext(ctx, "Record store reachable again, reconciling")
		if _, err := m.reconciler.GoOnline(ctx); err != nil {
			m.logger.WarnContext(ctx, "Reconciliation failed", log.FieldError, err)
		}
		return
	}

	n, err := m.queue.Len(ctx)
	if err != nil || n == 0 {
		return
	}
	if _, err := m.reconciler.Reconcile(ctx); err != nil {
		m.logger.WarnContext(ctx, "Reconciliation failed", log.FieldError, err)
	}
}
