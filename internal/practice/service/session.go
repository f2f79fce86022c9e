package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	dsmodel "practicelab/internal/dataset/model"
	"practicelab/internal/dataset/variant"
	"practicelab/internal/engine/analytic"
	"practicelab/internal/engine/interp"
	"practicelab/internal/export"
	"practicelab/internal/practice/fetcher"
	"practicelab/internal/practice/model"
	"practicelab/internal/prep"
	"practicelab/internal/preview"
	pkgerrors "practicelab/pkg/errors"
	"practicelab/pkg/utils/contextkey"
	"practicelab/pkg/utils/logger"

	"go.uber.org/zap"
)

// Result is an execution result of either engine.
type Result interface {
	Failed() bool
}

// VariantView is one entry of the dataset picker.
type VariantView struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	TableName string `json:"table_name,omitempty"`
}

// QuestionView is returned when a question is selected.
type QuestionView struct {
	ID       string           `json:"id"`
	Type     string           `json:"type,omitempty"`
	Engine   model.EngineKind `json:"engine"`
	Variants []VariantView    `json:"variants"`
	State    StateView        `json:"state"`
}

// StateView is the engine state of a session.
type StateView struct {
	SessionID  string             `json:"session_id"`
	QuestionID string             `json:"question_id,omitempty"`
	Engine     model.EngineKind   `json:"engine,omitempty"`
	Analytic   *prep.SessionState `json:"analytic,omitempty"`
	Datasets   []prep.DatasetLoad `json:"datasets,omitempty"`
}

// Session is one learner's practice workspace: a private analytical engine,
// an interpreter runtime and the preview cache of the current scope.
type Session struct {
	id           string
	engine       analytic.Engine
	runtime      interp.Runtime
	coordinator  *prep.Coordinator
	bridge       *prep.Bridge
	previews     *preview.Cache
	resolver     *preview.Resolver
	fetcher      fetcher.Fetcher
	maxCodeBytes int

	lastUsed atomic.Int64

	mu       sync.RWMutex
	question *model.Question
	records  []*dsmodel.DatasetRecord
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// SelectQuestion makes payload the active question, resolves its datasets and
// prepares the matching engine.
func (s *Session) SelectQuestion(ctx context.Context, payload any) (QuestionView, error) {
	s.touch()
	q, err := model.ParseQuestion(payload)
	if err != nil {
		return QuestionView{}, err
	}
	ctx = withSession(ctx, s.id)
	records := resolveRecords(ctx, q, s.fetcher)
	logger.Info(ctx, "question selected",
		zap.String("question_id", q.ID),
		zap.String("engine", string(q.Engine)),
		zap.Int("datasets", len(records)))

	s.mu.Lock()
	s.question = q
	s.records = records
	s.previews.SetScope(preview.ScopeKey(q.ExerciseID, q.SubjectID, q.ID))
	var token uint64
	if q.Engine == model.EngineAnalytic {
		token = s.coordinator.Begin(q.ID, records)
	} else {
		s.bridge.Activate(q.ID, records)
	}
	s.mu.Unlock()

	if q.Engine == model.EngineAnalytic {
		s.coordinator.Run(ctx, token)
	} else {
		s.bridge.LoadAll(ctx)
	}

	return QuestionView{
		ID:       q.ID,
		Type:     q.Type,
		Engine:   q.Engine,
		Variants: s.Variants(),
		State:    s.State(),
	}, nil
}

func withSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextkey.SessionID, id)
}

func (s *Session) current() (*model.Question, []*dsmodel.DatasetRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.question, s.records
}

func (s *Session) variants() []dsmodel.DatasetVariant {
	q, records := s.current()
	if q == nil {
		return nil
	}
	var mapped func(string) []string
	if q.Engine == model.EngineAnalytic && s.coordinator.State().QuestionID == q.ID {
		mapped = s.coordinator.Mapping
	}
	return variant.ExpandAll(records, mapped)
}

// Variants lists the selectable dataset variants of the active question.
func (s *Session) Variants() []VariantView {
	s.touch()
	vs := s.variants()
	out := make([]VariantView, 0, len(vs))
	for _, v := range vs {
		out = append(out, VariantView{ID: v.ID, Label: v.Label, TableName: v.TableName})
	}
	return out
}

func (s *Session) findVariant(id string) (dsmodel.DatasetVariant, error) {
	q, _ := s.current()
	if q == nil {
		return dsmodel.DatasetVariant{}, pkgerrors.New(pkgerrors.QuestionNotSelected)
	}
	vs := s.variants()
	if len(vs) == 0 {
		return dsmodel.DatasetVariant{}, pkgerrors.New(pkgerrors.PreviewUnavailable)
	}
	if id == "" {
		return vs[0], nil
	}
	for _, v := range vs {
		if v.ID == id {
			return v, nil
		}
	}
	// Mapping may not be known yet; fall back to the record part of the id.
	recordID, table := variant.SplitID(id)
	for _, v := range vs {
		if v.Record.ID == recordID && (table == "" || v.TableName == "") {
			return v, nil
		}
	}
	return dsmodel.DatasetVariant{}, pkgerrors.Newf(pkgerrors.VariantNotFound, "Dataset variant %s not found", id)
}

// Preview returns the capped sample of a variant; "" selects the first one.
func (s *Session) Preview(ctx context.Context, variantID string) (preview.Preview, error) {
	s.touch()
	v, err := s.findVariant(variantID)
	if err != nil {
		return preview.Preview{}, err
	}
	return s.previews.GetOrResolve(ctx, v.ID, func(ctx context.Context) (preview.Preview, error) {
		return s.resolver.Resolve(ctx, v)
	})
}

// Export renders a variant preview as a workbook and returns its file name.
func (s *Session) Export(ctx context.Context, variantID string) ([]byte, string, error) {
	v, err := s.findVariant(variantID)
	if err != nil {
		return nil, "", err
	}
	p, err := s.Preview(ctx, v.ID)
	if err != nil {
		return nil, "", err
	}
	data, err := export.Workbook(v.Label, p)
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, pkgerrors.ExportFailed)
	}
	return data, export.FileName(v.Label), nil
}

// Execute runs learner code against the active question's engine.
func (s *Session) Execute(ctx context.Context, code string) (Result, error) {
	s.touch()
	q, _ := s.current()
	if q == nil {
		return nil, pkgerrors.New(pkgerrors.QuestionNotSelected)
	}
	if s.maxCodeBytes > 0 && len(code) > s.maxCodeBytes {
		return nil, pkgerrors.New(pkgerrors.CodeTooLarge).WithDetail("max_bytes", s.maxCodeBytes)
	}
	if q.Engine == model.EngineInterpreter {
		return s.bridge.Execute(ctx, q.ID, code)
	}
	return s.coordinator.Execute(ctx, q.ID, code)
}

// State reports the session's engine state for the active question.
func (s *Session) State() StateView {
	q, _ := s.current()
	view := StateView{SessionID: s.id}
	if q == nil {
		return view
	}
	view.QuestionID = q.ID
	view.Engine = q.Engine
	if q.Engine == model.EngineInterpreter {
		view.Datasets = s.bridge.States()
		return view
	}
	state := s.coordinator.State()
	view.Analytic = &state
	return view
}

// Retry re-runs preparation of the active question. Interpreter datasets
// that are already loaded are left alone.
func (s *Session) Retry(ctx context.Context) (StateView, error) {
	s.touch()
	ctx = withSession(ctx, s.id)
	q, _ := s.current()
	if q == nil {
		return StateView{}, pkgerrors.New(pkgerrors.QuestionNotSelected)
	}
	if q.Engine == model.EngineInterpreter {
		s.bridge.LoadAll(ctx)
	} else {
		s.coordinator.Retry(ctx)
	}
	return s.State(), nil
}

func (s *Session) close() {
	if err := s.engine.Close(); err != nil {
		logger.Warn(context.Background(), "close engine failed", zap.String("session_id", s.id), zap.Error(err))
	}
	s.runtime.Close()
}
