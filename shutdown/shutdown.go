package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager coordinates graceful shutdown. Components register functions
// with a priority; on shutdown they run sequentially in priority order
// (lower first) under a bounded timeout, so the server stops accepting
// work before persistence flushes and the final snapshot is written.
type Manager struct {
	mu      sync.Mutex
	funcs   []hookFunc
	timeout time.Duration
	log     *logrus.Entry

	once       sync.Once
	shutdownCh chan struct{}
}

type hookFunc struct {
	name     string
	priority int
	fn       func(ctx context.Context) error
}

// NewManager creates a shutdown manager with the given overall timeout
func NewManager(timeout time.Duration, log *logrus.Entry) *Manager {
	return &Manager{
		timeout:    timeout,
		log:        log,
		shutdownCh: make(chan struct{}),
	}
}

// Register adds a shutdown function; lower priorities run first
func (m *Manager) Register(name string, priority int, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, hookFunc{name: name, priority: priority, fn: fn})
}

// Listen starts the signal handler for SIGINT and SIGTERM
func (m *Manager) Listen() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		m.log.WithField("signal", sig.String()).Info("shutdown signal received")
		m.Shutdown()
	}()
}

// Shutdown runs the registered functions once, in priority order
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.execute()
		close(m.shutdownCh)
	})
}

// Wait blocks until shutdown has completed
func (m *Manager) Wait() {
	<-m.shutdownCh
}

func (m *Manager) execute() {
	m.log.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	funcs := make([]hookFunc, len(m.funcs))
	copy(funcs, m.funcs)
	m.mu.Unlock()

	sort.SliceStable(funcs, func(i, j int) bool {
		return funcs[i].priority < funcs[j].priority
	})

	for _, hook := range funcs {
		if ctx.Err() != nil {
			m.log.WithField("component", hook.name).Warn("shutdown timeout reached, skipping")
			continue
		}
		start := time.Now()
		if err := hook.fn(ctx); err != nil {
			m.log.WithError(err).WithField("component", hook.name).Error("shutdown step failed")
			continue
		}
		m.log.WithFields(logrus.Fields{
			"component": hook.name,
			"took":      time.Since(start).String(),
		}).Info("component stopped")
	}

	m.log.Info("graceful shutdown complete")
}

// StartupManager runs registered startup functions sequentially in
// priority order, aborting on the first failure.
type StartupManager struct {
	mu      sync.Mutex
	funcs   []hookFunc
	timeout time.Duration
	log     *logrus.Entry
}

// NewStartupManager creates a startup manager with the given timeout
func NewStartupManager(timeout time.Duration, log *logrus.Entry) *StartupManager {
	return &StartupManager{timeout: timeout, log: log}
}

// Register adds a startup function; lower priorities run first
func (m *StartupManager) Register(name string, priority int, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, hookFunc{name: name, priority: priority, fn: fn})
}

// Start executes the registered functions in priority order
func (m *StartupManager) Start(ctx context.Context) error {
	startCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	funcs := make([]hookFunc, len(m.funcs))
	copy(funcs, m.funcs)
	m.mu.Unlock()

	sort.SliceStable(funcs, func(i, j int) bool {
		return funcs[i].priority < funcs[j].priority
	})

	for _, hook := range funcs {
		start := time.Now()
		if err := hook.fn(startCtx); err != nil {
			m.log.WithError(err).WithField("component", hook.name).Error("startup step failed")
			return err
		}
		m.log.WithFields(logrus.Fields{
			"component": hook.name,
			"took":      time.Since(start).String(),
		}).Info("component started")
	}
	return nil
}
