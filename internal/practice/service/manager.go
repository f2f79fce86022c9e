// Package service owns practice sessions: question selection, dataset
// resolution, engine preparation, previews and code execution.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"practicelab/internal/engine/analytic"
	"practicelab/internal/engine/interp"
	"practicelab/internal/practice/fetcher"
	"practicelab/internal/prep"
	"practicelab/internal/preview"
	pkgerrors "practicelab/pkg/errors"
	"practicelab/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultIdleTTL          = 30 * time.Minute
	defaultJanitorInterval  = time.Minute
	defaultMaxSessions      = 256
	defaultMaxResultRows    = 500
	defaultStatementTimeout = 10 * time.Second
	defaultLoadTimeout      = 10 * time.Second
	defaultMaxCodeBytes     = 64 << 10
)

// Config holds session settings.
type Config struct {
	Engine           analytic.SQLiteConfig `yaml:"engine"`
	Interpreter      interp.LuaConfig      `yaml:"interpreter"`
	StatementTimeout time.Duration         `yaml:"statementTimeout"`
	MaxResultRows    int                   `yaml:"maxResultRows"`
	LoadTimeout      time.Duration         `yaml:"loadTimeout"`
	RunSetupScripts  bool                  `yaml:"runSetupScripts"`
	MaxCodeBytes     int                   `yaml:"maxCodeBytes"`
	IdleTTL          time.Duration         `yaml:"idleTTL"`
	JanitorInterval  time.Duration         `yaml:"janitorInterval"`
	MaxSessions      int                   `yaml:"maxSessions"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.StatementTimeout <= 0 {
		c.StatementTimeout = defaultStatementTimeout
	}
	if c.MaxResultRows <= 0 {
		c.MaxResultRows = defaultMaxResultRows
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = defaultLoadTimeout
	}
	if c.MaxCodeBytes <= 0 {
		c.MaxCodeBytes = defaultMaxCodeBytes
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = defaultIdleTTL
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = defaultJanitorInterval
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = defaultMaxSessions
	}
}

// Manager creates, looks up and evicts sessions.
type Manager struct {
	cfg      Config
	fetcher  fetcher.Fetcher
	resolver *preview.Resolver

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config, f fetcher.Fetcher) (*Manager, error) {
	cfg.ApplyDefaults()
	if f == nil {
		f = fetcher.Nop{}
	}
	return &Manager{
		cfg:      cfg,
		fetcher:  f,
		resolver: preview.NewResolver(preview.SQLiteOpener(analytic.SQLiteConfig{BusyTimeout: cfg.Engine.BusyTimeout})),
		sessions: make(map[string]*Session),
	}, nil
}

// Create opens a session with its own engines.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	full := len(m.sessions) >= m.cfg.MaxSessions
	m.mu.Unlock()
	if full {
		return nil, pkgerrors.New(pkgerrors.SessionLimitReached)
	}

	id := uuid.NewString()
	engine, err := analytic.OpenSQLite(ctx, m.cfg.Engine)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("open engine failed: %w", err), pkgerrors.EngineOpenFailed)
	}
	runtime, err := interp.NewLua(m.cfg.Interpreter)
	if err != nil {
		_ = engine.Close()
		return nil, pkgerrors.Wrap(fmt.Errorf("create interpreter failed: %w", err), pkgerrors.InterpreterNotReady)
	}

	reporter := logReporter{}
	coordinator, err := prep.NewCoordinator(prep.CoordinatorConfig{
		Engine:           engine,
		Reporter:         reporter,
		StatementTimeout: m.cfg.StatementTimeout,
		MaxResultRows:    m.cfg.MaxResultRows,
	})
	if err != nil {
		_ = engine.Close()
		runtime.Close()
		return nil, pkgerrors.Wrap(err, pkgerrors.InternalServerError)
	}
	bridge, err := prep.NewBridge(prep.BridgeConfig{
		Runtime:         runtime,
		Reporter:        reporter,
		LoadTimeout:     m.cfg.LoadTimeout,
		RunSetupScripts: m.cfg.RunSetupScripts,
	})
	if err != nil {
		_ = engine.Close()
		runtime.Close()
		return nil, pkgerrors.Wrap(err, pkgerrors.InternalServerError)
	}

	s := &Session{
		id:           id,
		engine:       engine,
		runtime:      runtime,
		coordinator:  coordinator,
		bridge:       bridge,
		previews:     preview.NewCache(),
		resolver:     m.resolver,
		fetcher:      m.fetcher,
		maxCodeBytes: m.cfg.MaxCodeBytes,
	}
	s.lastUsed.Store(time.Now().UnixNano())

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	logger.Info(withSession(ctx, id), "practice session created")
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.SessionNotFound).WithDetail("session_id", id)
	}
	return s, nil
}

// Close releases a session and its engines.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return pkgerrors.New(pkgerrors.SessionNotFound).WithDetail("session_id", id)
	}
	s.close()
	logger.Info(withSession(ctx, id), "practice session closed")
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle closes sessions unused for longer than IdleTTL and returns how
// many were closed.
func (m *Manager) EvictIdle(ctx context.Context) int {
	cutoff := time.Now().Add(-m.cfg.IdleTTL)
	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
		logger.Info(withSession(ctx, s.id), "idle practice session evicted")
	}
	return len(idle)
}

// Run evicts idle sessions every JanitorInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle(ctx)
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
	logger.Info(ctx, "practice sessions closed", zap.Int("count", len(sessions)))
}
