package inference

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of the managed backend.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	// StateFailed is terminal until Reset: the init retry budget was
	// exhausted and every call surfaces the stored error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures Manager retry and keep-alive behavior.
type Options struct {
	InitRetries       int
	InitRetryDelay    time.Duration
	KeepaliveInterval time.Duration // 0 disables the keep-alive loop
	IdleThreshold     time.Duration
}

// DefaultOptions returns the standard manager configuration.
func DefaultOptions() Options {
	return Options{
		InitRetries:       3,
		InitRetryDelay:    5 * time.Second,
		KeepaliveInterval: 60 * time.Second,
		IdleThreshold:     5 * time.Minute,
	}
}

// Manager hides cold-start, failure, and staleness of a Backend behind a
// single Ask capability. Backend calls are serialized; the backend holds
// internal mutable state and is not safe for concurrent use.
type Manager struct {
	backend Backend
	opts    Options

	mu       sync.Mutex // guards state, initErr, lastUsed
	state    State
	initErr  error
	lastUsed time.Time

	askMu  sync.Mutex // serializes all backend calls
	flight singleflight.Group

	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a manager for the given backend and starts the
// keep-alive loop when configured.
func NewManager(backend Backend, opts Options) *Manager {
	if opts.InitRetries <= 0 {
		opts.InitRetries = 1
	}
	m := &Manager{
		backend: backend,
		opts:    opts,
		done:    make(chan struct{}),
	}
	if opts.KeepaliveInterval > 0 {
		go m.keepaliveLoop()
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureReady initializes the backend if needed. Concurrent callers during
// initialization await the same in-flight attempt.
func (m *Manager) EnsureReady(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateReady:
		m.mu.Unlock()
		return nil
	case StateFailed:
		err := m.initErr
		m.mu.Unlock()
		return fmt.Errorf("inference backend failed permanently (reset required): %w", err)
	}
	m.mu.Unlock()

	_, err, _ := m.flight.Do("init", func() (any, error) {
		return nil, m.initialize(ctx)
	})
	return err
}

func (m *Manager) initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateReady {
		m.mu.Unlock()
		return nil
	}
	if m.state == StateFailed {
		err := m.initErr
		m.mu.Unlock()
		return fmt.Errorf("inference backend failed permanently (reset required): %w", err)
	}
	m.state = StateInitializing
	m.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= m.opts.InitRetries; attempt++ {
		err := m.backend.Init(ctx)
		if err == nil {
			m.mu.Lock()
			m.state = StateReady
			m.initErr = nil
			m.lastUsed = time.Now()
			m.mu.Unlock()
			return nil
		}
		lastErr = err
		log.Printf("Inference init attempt %d/%d failed: %v", attempt, m.opts.InitRetries, err)

		if attempt < m.opts.InitRetries {
			select {
			case <-ctx.Done():
				// Cancellation is not a backend failure; leave the state
				// recoverable for the next caller.
				m.mu.Lock()
				m.state = StateUninitialized
				m.mu.Unlock()
				return ctx.Err()
			case <-time.After(m.opts.InitRetryDelay):
			}
		}
	}

	m.mu.Lock()
	m.state = StateFailed
	m.initErr = lastErr
	m.mu.Unlock()
	return fmt.Errorf("inference initialization exhausted %d attempts: %w", m.opts.InitRetries, lastErr)
}

// Ask answers a question against the given context text. On a mid-call
// backend failure it makes exactly one recovery attempt (reinitialize,
// retry the same call) before surfacing the error.
func (m *Manager) Ask(ctx context.Context, question, contextText string) (Answer, error) {
	if err := m.EnsureReady(ctx); err != nil {
		return Answer{}, err
	}

	m.askMu.Lock()
	defer m.askMu.Unlock()

	answer, err := m.backend.Ask(ctx, question, contextText)
	if err == nil {
		m.touch()
		return answer, nil
	}

	log.Printf("Inference call failed, attempting recovery: %v", err)
	if initErr := m.backend.Init(ctx); initErr != nil {
		m.demote()
		return Answer{}, fmt.Errorf("inference recovery failed: %w", initErr)
	}

	answer, err = m.backend.Ask(ctx, question, contextText)
	if err != nil {
		m.demote()
		return Answer{}, fmt.Errorf("inference call failed after recovery: %w", err)
	}
	m.touch()
	return answer, nil
}

// Reset clears a terminal failure so the next call re-initializes.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUninitialized
	m.initErr = nil
}

// Close stops the keep-alive loop and releases the backend.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.backend.Close()
	})
}

func (m *Manager) touch() {
	m.mu.Lock()
	m.lastUsed = time.Now()
	m.mu.Unlock()
}

// demote drops the state back to Uninitialized so the next real call
// re-initializes instead of failing outright.
func (m *Manager) demote() {
	m.mu.Lock()
	m.state = StateUninitialized
	m.mu.Unlock()
}

func (m *Manager) keepaliveLoop() {
	ticker := time.NewTicker(m.opts.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.keepaliveTick(time.Now())
		}
	}
}

// keepaliveTick probes the backend when it has been idle beyond the
// threshold, avoiding cold-start latency on the next real call.
func (m *Manager) keepaliveTick(now time.Time) {
	m.mu.Lock()
	idle := m.state == StateReady && now.Sub(m.lastUsed) >= m.opts.IdleThreshold
	m.mu.Unlock()
	if !idle {
		return
	}

	m.askMu.Lock()
	defer m.askMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.backend.Ping(ctx); err != nil {
		log.Printf("Inference keepalive failed, demoting: %v", err)
		m.demote()
		return
	}
	m.touch()
}

// CreateBackend creates an inference backend based on configuration.
func CreateBackend(provider, model, ollamaURL, openaiModel, apiKeyEnv string) Backend {
	if strings.ToLower(provider) == "openai" {
		log.Printf("Using OpenAI with model: %s", openaiModel)
		return NewOpenAIBackend(openaiModel, apiKeyEnv)
	}
	log.Printf("Using Ollama with model: %s", model)
	return NewOllamaBackend(model, ollamaURL)
}
