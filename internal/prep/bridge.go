package prep

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"practicelab/internal/dataset/model"
	"practicelab/internal/dataset/script"
	"practicelab/internal/engine/interp"
	"practicelab/internal/engine/result"
	appErr "practicelab/pkg/errors"
	"practicelab/pkg/utils/logger"

	"go.uber.org/zap"
)

const noRowsMessage = "Dataset has no rows available to load."

// BridgeConfig holds interpreter bridge dependencies and settings.
type BridgeConfig struct {
	Runtime     interp.Runtime
	Reporter    LoadReporter
	LoadTimeout time.Duration
	// RunSetupScripts runs a dataset's interpreter setup script after its
	// frame is bound.
	RunSetupScripts bool
}

type bridgeEntry struct {
	record *model.DatasetRecord
	load   DatasetLoad
}

// Bridge binds the active question's datasets into the interpreter runtime
// and tracks a load state per dataset.
type Bridge struct {
	runtime     interp.Runtime
	reporter    LoadReporter
	loadTimeout time.Duration
	runSetup    bool

	token atomic.Uint64
	// loadMu serialises loads so a retried dataset is never bound twice at once.
	loadMu sync.Mutex

	mu         sync.RWMutex
	questionID string
	order      []string
	entries    map[string]*bridgeEntry
}

func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	return &Bridge{
		runtime:     cfg.Runtime,
		reporter:    cfg.Reporter,
		loadTimeout: cfg.LoadTimeout,
		runSetup:    cfg.RunSetupScripts,
		entries:     make(map[string]*bridgeEntry),
	}, nil
}

// Activate rebuilds the load map for questionID and assigns every dataset a
// unique variable name. Nothing is loaded yet.
func (b *Bridge) Activate(questionID string, records []*model.DatasetRecord) []DatasetLoad {
	b.token.Add(1)

	used := make(map[string]struct{})
	order := make([]string, 0, len(records))
	entries := make(map[string]*bridgeEntry, len(records))
	for i, rec := range records {
		if rec == nil {
			continue
		}
		if _, dup := entries[rec.ID]; dup {
			continue
		}
		entries[rec.ID] = &bridgeEntry{
			record: rec,
			load: DatasetLoad{
				DatasetID: rec.ID,
				Name:      rec.DisplayName(),
				Variable:  VariableName(preferredVariable(rec), i, used),
				State:     LoadIdle,
				Rows:      len(rec.Rows),
			},
		}
		order = append(order, rec.ID)
	}

	b.mu.Lock()
	b.questionID = questionID
	b.order = order
	b.entries = entries
	b.mu.Unlock()
	return b.States()
}

// preferredVariable picks the declared table, else the first table the setup
// script creates, else the display name.
func preferredVariable(rec *model.DatasetRecord) string {
	if declared := rec.DeclaredTables(); len(declared) > 0 {
		return declared[0]
	}
	if names := script.ExtractTableNames(rec.SQLScript); len(names) > 0 {
		return names[0]
	}
	return rec.Name
}

// LoadAll loads every dataset of the active question in order.
func (b *Bridge) LoadAll(ctx context.Context) []DatasetLoad {
	b.mu.RLock()
	ids := append([]string(nil), b.order...)
	b.mu.RUnlock()
	for _, id := range ids {
		if _, err := b.Load(ctx, id); err != nil {
			break
		}
	}
	return b.States()
}

// Load binds one dataset. Loading an already loaded dataset is a no-op and
// retrying a failed one starts over.
func (b *Bridge) Load(ctx context.Context, datasetID string) (DatasetLoad, error) {
	token := b.token.Load()

	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	b.mu.RLock()
	entry, ok := b.entries[datasetID]
	questionID := b.questionID
	var current DatasetLoad
	if ok {
		current = entry.load
	}
	b.mu.RUnlock()
	if !ok {
		return DatasetLoad{}, appErr.Newf(appErr.DatasetNotFound, "Dataset %s is not part of the active question", datasetID)
	}
	if b.token.Load() != token {
		return current, appErr.New(appErr.QuestionStale)
	}
	if current.State == LoadLoaded {
		return current, nil
	}

	rec := entry.record
	if !rec.HasRows() {
		return b.transition(ctx, token, questionID, datasetID, LoadFailed, noRowsMessage), nil
	}
	b.transition(ctx, token, questionID, datasetID, LoadLoading, "")

	loadCtx := ctx
	if b.loadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, b.loadTimeout)
		defer cancel()
	}
	if err := b.runtime.Bind(loadCtx, current.Variable, interp.NewFrame(rec.Columns, rec.Rows)); err != nil {
		logger.Warn(ctx, "bind dataset failed", zap.String("dataset", datasetID), zap.Error(err))
		return b.transition(ctx, token, questionID, datasetID, LoadFailed, err.Error()), nil
	}
	if b.runSetup && rec.InterpreterScript != "" {
		res, err := b.runtime.Run(loadCtx, rec.InterpreterScript)
		if err != nil {
			return b.transition(ctx, token, questionID, datasetID, LoadFailed, err.Error()), nil
		}
		if res.Failed() {
			return b.transition(ctx, token, questionID, datasetID, LoadFailed, res.Error), nil
		}
	}
	return b.transition(ctx, token, questionID, datasetID, LoadLoaded, ""), nil
}

// transition commits a load state while token is current and returns the
// dataset's state afterwards.
func (b *Bridge) transition(ctx context.Context, token uint64, questionID, datasetID string, state LoadState, message string) DatasetLoad {
	b.mu.Lock()
	entry, ok := b.entries[datasetID]
	if !ok || b.token.Load() != token {
		b.mu.Unlock()
		return DatasetLoad{DatasetID: datasetID, State: state, Message: message}
	}
	entry.load.State = state
	entry.load.Message = message
	load := entry.load
	b.mu.Unlock()

	logger.Debug(ctx, "interpreter dataset state",
		zap.String("question_id", questionID),
		zap.String("dataset", datasetID),
		zap.String("state", string(state)))
	if b.reporter != nil {
		b.reporter.ReportLoad(ctx, questionID, load)
	}
	return load
}

// States returns the load state of every dataset in activation order.
func (b *Bridge) States() []DatasetLoad {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]DatasetLoad, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.entries[id].load)
	}
	return out
}

// QuestionID returns the active question.
func (b *Bridge) QuestionID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.questionID
}

// Execute runs learner code in the interpreter for questionID.
func (b *Bridge) Execute(ctx context.Context, questionID, code string) (result.ScriptResult, error) {
	if questionID != "" && b.QuestionID() != questionID {
		return result.ScriptResult{}, appErr.New(appErr.QuestionStale)
	}
	res, err := b.runtime.Run(ctx, code)
	if err != nil {
		return result.ScriptResult{}, appErr.Wrap(err, appErr.InterpreterNotReady)
	}
	return res, nil
}
