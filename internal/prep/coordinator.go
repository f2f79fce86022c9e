package prep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"practicelab/internal/dataset/model"
	"practicelab/internal/dataset/script"
	"practicelab/internal/engine/analytic"
	"practicelab/internal/engine/result"
	appErr "practicelab/pkg/errors"
	"practicelab/pkg/utils/logger"

	"go.uber.org/zap"
)

var errStale = errors.New("preparation superseded by a newer question")

// CoordinatorConfig holds coordinator dependencies and settings.
type CoordinatorConfig struct {
	Engine           analytic.Engine
	Reporter         PhaseReporter
	StatementTimeout time.Duration
	MaxResultRows    int
}

// Coordinator owns the analytical engine session of one learner. Every
// question switch resets the session and loads the question's datasets.
// Passes are serialised, and a pass whose question is no longer current
// stops at its next checkpoint without committing anything.
type Coordinator struct {
	engine      analytic.Engine
	reporter    PhaseReporter
	stmtTimeout time.Duration
	maxRows     int

	passMu sync.Mutex
	token  atomic.Uint64

	mu          sync.RWMutex
	state       SessionState
	lastToken   uint64
	lastQID     string
	lastRecords []*model.DatasetRecord
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	return &Coordinator{
		engine:      cfg.Engine,
		reporter:    cfg.Reporter,
		stmtTimeout: cfg.StatementTimeout,
		maxRows:     cfg.MaxResultRows,
		state: SessionState{
			Phase:   PhaseIdle,
			Tables:  []string{},
			Mapping: map[string][]string{},
		},
	}, nil
}

// Prepare makes questionID current and loads records into a freshly reset
// session. The returned snapshot is the state after the pass, or the state of
// a newer question if this one was superseded.
func (c *Coordinator) Prepare(ctx context.Context, questionID string, records []*model.DatasetRecord) SessionState {
	return c.Run(ctx, c.Begin(questionID, records))
}

// Begin makes questionID current without running the pass and returns the
// pass token. Any pass with an older token becomes stale.
func (c *Coordinator) Begin(questionID string, records []*model.DatasetRecord) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := c.token.Add(1)
	c.lastToken = token
	c.lastQID = questionID
	c.lastRecords = records
	return token
}

// Run executes the pass started by Begin. A superseded token returns the
// current state without touching the engine.
func (c *Coordinator) Run(ctx context.Context, token uint64) SessionState {
	c.mu.RLock()
	questionID, records, current := c.lastQID, c.lastRecords, c.lastToken == token
	c.mu.RUnlock()
	if !current {
		return c.State()
	}
	return c.run(ctx, token, questionID, records)
}

// Retry re-runs the preparation pass of the current question.
func (c *Coordinator) Retry(ctx context.Context) SessionState {
	c.mu.Lock()
	token := c.token.Add(1)
	c.lastToken = token
	c.mu.Unlock()
	return c.Run(ctx, token)
}

// State returns a snapshot of the session.
func (c *Coordinator) State() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Mapping returns the tables attributed to a dataset key in the current session.
func (c *Coordinator) Mapping(datasetKey string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.state.Mapping[datasetKey]...)
}

// Execute runs learner code against the session. It is refused unless the
// session is ready and questionID is still current.
func (c *Coordinator) Execute(ctx context.Context, questionID, code string) (result.QueryResult, error) {
	snapshot := c.State()
	if questionID != "" && snapshot.QuestionID != questionID {
		return result.QueryResult{}, appErr.New(appErr.QuestionStale)
	}
	if snapshot.Phase != PhaseReady {
		return result.QueryResult{}, notReadyError(snapshot)
	}

	c.passMu.Lock()
	defer c.passMu.Unlock()
	if c.token.Load() != snapshot.Token {
		return result.QueryResult{}, appErr.New(appErr.QuestionStale)
	}
	return analytic.Run(ctx, c.engine, code, c.maxRows), nil
}

func notReadyError(state SessionState) error {
	if state.Phase == PhaseFailed && state.Error != "" {
		return appErr.Newf(appErr.EngineNotReady, "Engine session failed: %s", state.Error)
	}
	return appErr.New(appErr.EngineNotReady).WithDetail("phase", string(state.Phase))
}

func (c *Coordinator) run(ctx context.Context, token uint64, questionID string, records []*model.DatasetRecord) SessionState {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	if c.stale(token) {
		return c.State()
	}
	c.commit(ctx, token, func(s *SessionState) {
		*s = SessionState{
			QuestionID: questionID,
			Token:      token,
			Phase:      PhaseResetting,
			Tables:     []string{},
			Mapping:    map[string][]string{},
		}
	})

	if err := c.reset(ctx, token); err != nil {
		return c.finish(ctx, token, nil, err)
	}
	c.commit(ctx, token, func(s *SessionState) { s.Phase = PhaseLoading })

	mapping := make(map[string][]string)
	for i, rec := range records {
		if rec == nil {
			continue
		}
		tables, err := c.loadRecord(ctx, token, i, rec)
		if len(tables) > 0 {
			mapping[rec.ID] = appendUnique(mapping[rec.ID], tables...)
		}
		if err != nil {
			if !errors.Is(err, errStale) {
				logger.Warn(ctx, "dataset preparation failed",
					zap.String("question_id", questionID),
					zap.String("dataset", rec.ID),
					zap.Error(err))
			}
			return c.finish(ctx, token, mapping, err)
		}
	}
	return c.finish(ctx, token, mapping, nil)
}

// finish commits the final phase together with the tables present in the
// engine, so a failed pass still exposes what was created before the failure.
func (c *Coordinator) finish(ctx context.Context, token uint64, mapping map[string][]string, err error) SessionState {
	if errors.Is(err, errStale) || c.stale(token) {
		return c.State()
	}
	tables, listErr := c.engine.ListTables(ctx)
	if listErr != nil && err == nil {
		err = listErr
	}
	c.commit(ctx, token, func(s *SessionState) {
		s.Tables = analytic.TableNames(tables)
		if mapping != nil {
			s.Mapping = mapping
		}
		if err != nil {
			s.Phase = PhaseFailed
			s.Error = analytic.ErrorMessage(err)
			return
		}
		s.Phase = PhaseReady
		s.Error = ""
	})
	return c.State()
}

// reset drops every user table and view. Views go first since they may
// depend on tables.
func (c *Coordinator) reset(ctx context.Context, token uint64) error {
	tables, err := c.engine.ListTables(ctx)
	if err != nil {
		return err
	}
	ordered := make([]analytic.Table, 0, len(tables))
	for _, t := range tables {
		if t.Kind == analytic.KindView {
			ordered = append(ordered, t)
		}
	}
	for _, t := range tables {
		if t.Kind != analytic.KindView {
			ordered = append(ordered, t)
		}
	}
	for _, t := range ordered {
		if c.stale(token) {
			return errStale
		}
		if err := c.engine.DropTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// loadRecord runs a dataset's setup script, attributing the newly created
// tables to it, or loads its rows into a table when there is no script.
func (c *Coordinator) loadRecord(ctx context.Context, token uint64, index int, rec *model.DatasetRecord) ([]string, error) {
	before, err := c.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	if rec.SQLScript != "" {
		for _, stmt := range script.Statements(rec.SQLScript) {
			if c.stale(token) {
				return nil, errStale
			}
			if err := c.exec(ctx, stmt); err != nil {
				after, _ := c.tableNames(ctx)
				return difference(after, before), err
			}
		}
		if c.stale(token) {
			return nil, errStale
		}
		after, err := c.tableNames(ctx)
		if err != nil {
			return nil, err
		}
		created := difference(after, before)
		if len(created) == 0 {
			for _, declared := range rec.DeclaredTables() {
				if name, ok := findFold(after, declared); ok {
					created = append(created, name)
				}
			}
		}
		if len(created) > 0 || !rec.HasRows() {
			return created, nil
		}
	}

	if !rec.HasRows() {
		return nil, nil
	}
	if c.stale(token) {
		return nil, errStale
	}
	name := generatedTableName(rec, index, before)
	if err := c.engine.LoadTable(ctx, name, rec.Columns, rec.Rows); err != nil {
		return nil, err
	}
	logger.Debug(ctx, "dataset rows loaded", zap.String("dataset", rec.ID), zap.String("table", name), zap.Int("rows", len(rec.Rows)))
	return []string{name}, nil
}

func (c *Coordinator) exec(ctx context.Context, stmt string) error {
	if c.stmtTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.stmtTimeout)
		defer cancel()
	}
	return c.engine.Exec(ctx, stmt)
}

func (c *Coordinator) tableNames(ctx context.Context) ([]string, error) {
	tables, err := c.engine.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	return analytic.TableNames(tables), nil
}

func (c *Coordinator) stale(token uint64) bool {
	return c.token.Load() != token
}

// commit applies fn to the state only while token is current.
func (c *Coordinator) commit(ctx context.Context, token uint64, fn func(*SessionState)) {
	c.mu.Lock()
	if c.stale(token) {
		c.mu.Unlock()
		return
	}
	fn(&c.state)
	update := PhaseUpdate{QuestionID: c.state.QuestionID, Token: token, Phase: c.state.Phase, Error: c.state.Error}
	c.mu.Unlock()

	logger.Debug(ctx, "engine session phase", zap.String("question_id", update.QuestionID), zap.String("phase", string(update.Phase)))
	if c.reporter != nil {
		c.reporter.ReportPhase(ctx, update)
	}
}

// generatedTableName names a table for row-only data: the declared name,
// else the sanitized display name, else dataset_N; made unique against the
// session's existing tables.
func generatedTableName(rec *model.DatasetRecord, index int, existing []string) string {
	name := ""
	if declared := rec.DeclaredTables(); len(declared) > 0 {
		name = declared[0]
	} else {
		name = SanitizeIdentifier(rec.Name)
	}
	if name == "" {
		name = fmt.Sprintf("dataset_%d", index+1)
	}
	used := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		used[strings.ToLower(t)] = struct{}{}
	}
	return uniqueName(name, used)
}

func difference(after, before []string) []string {
	seen := make(map[string]struct{}, len(before))
	for _, t := range before {
		seen[t] = struct{}{}
	}
	var out []string
	for _, t := range after {
		if _, ok := seen[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func findFold(names []string, target string) (string, bool) {
	for _, n := range names {
		if strings.EqualFold(n, target) {
			return n, true
		}
	}
	return "", false
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if _, ok := findFold(list, item); !ok {
			list = append(list, item)
		}
	}
	return list
}
