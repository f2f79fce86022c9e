package prep_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"practicelab/internal/dataset/model"
	"practicelab/internal/engine/interp"
	"practicelab/internal/engine/result"
	"practicelab/internal/prep"
	appErr "practicelab/pkg/errors"
)

type fakeRuntime struct {
	mu      sync.Mutex
	binds   map[string]int
	failFor map[string]error
	ran     []string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{binds: map[string]int{}, failFor: map[string]error{}}
}

func (r *fakeRuntime) Bind(_ context.Context, variable string, _ interp.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[variable]; err != nil {
		return err
	}
	r.binds[variable]++
	return nil
}

func (r *fakeRuntime) Run(_ context.Context, code string) (result.ScriptResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, code)
	if code == "boom" {
		return result.ScriptError("boom failed"), nil
	}
	return result.ScriptResult{Output: "ok\n"}, nil
}

func (r *fakeRuntime) Close() {}

type loadRecorder struct {
	mu    sync.Mutex
	loads []prep.DatasetLoad
}

func (r *loadRecorder) ReportLoad(_ context.Context, _ string, load prep.DatasetLoad) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads = append(r.loads, load)
}

func newBridge(t *testing.T, rt interp.Runtime, reporter prep.LoadReporter, runSetup bool) *prep.Bridge {
	t.Helper()
	b, err := prep.NewBridge(prep.BridgeConfig{Runtime: rt, Reporter: reporter, RunSetupScripts: runSetup})
	if err != nil {
		t.Fatalf("create bridge failed: %v", err)
	}
	return b
}

func rowsRecord(id, name string) *model.DatasetRecord {
	return &model.DatasetRecord{
		ID:      id,
		Name:    name,
		Columns: []string{"a"},
		Rows:    []model.Row{{"a": int64(1)}},
	}
}

func TestBridgeActivateAssignsVariables(t *testing.T) {
	b := newBridge(t, newFakeRuntime(), nil, false)
	loads := b.Activate("q1", []*model.DatasetRecord{
		rowsRecord("a", "Sales Data"),
		rowsRecord("b", "sales-data"),
		rowsRecord("c", "table"),
		rowsRecord("d", "!!!"),
		{ID: "e", TableName: "Orders", Columns: []string{"a"}, Rows: []model.Row{{"a": nil}}},
	})
	want := []string{"sales_data", "sales_data_2", "table_data", "dataset_4", "orders"}
	if len(loads) != len(want) {
		t.Fatalf("expected %d loads, got %d", len(want), len(loads))
	}
	for i, load := range loads {
		if load.Variable != want[i] {
			t.Fatalf("load %d: expected variable %q, got %q", i, want[i], load.Variable)
		}
		if load.State != prep.LoadIdle {
			t.Fatalf("load %d: expected idle, got %s", i, load.State)
		}
	}
}

func TestBridgeZeroRowsFailsWithoutLoading(t *testing.T) {
	ctx := context.Background()
	rt := newFakeRuntime()
	reporter := &loadRecorder{}
	b := newBridge(t, rt, reporter, false)
	b.Activate("q1", []*model.DatasetRecord{{ID: "empty", Name: "empty", Columns: []string{"a"}}})

	load, err := b.Load(ctx, "empty")
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if load.State != prep.LoadFailed || load.Message == "" {
		t.Fatalf("expected failed with message, got %+v", load)
	}
	if len(rt.binds) != 0 {
		t.Fatalf("expected no bind attempt, got %v", rt.binds)
	}
	for _, l := range reporter.loads {
		if l.State == prep.LoadLoading {
			t.Fatalf("zero-row dataset must not enter loading")
		}
	}
}

func TestBridgeLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rt := newFakeRuntime()
	rt.failFor["sales"] = errors.New("bind failed")
	b := newBridge(t, rt, nil, false)
	b.Activate("q1", []*model.DatasetRecord{rowsRecord("s", "sales")})

	load, err := b.Load(ctx, "s")
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if load.State != prep.LoadFailed || load.Message != "bind failed" {
		t.Fatalf("expected bind failure, got %+v", load)
	}

	delete(rt.failFor, "sales")
	for i := 0; i < 2; i++ {
		load, err = b.Load(ctx, "s")
		if err != nil {
			t.Fatalf("retry returned error: %v", err)
		}
		if load.State != prep.LoadLoaded || load.Message != "" {
			t.Fatalf("expected loaded, got %+v", load)
		}
	}
	if rt.binds["sales"] != 1 {
		t.Fatalf("expected exactly one successful bind, got %d", rt.binds["sales"])
	}
}

func TestBridgeSetupScripts(t *testing.T) {
	ctx := context.Background()
	rt := newFakeRuntime()
	b := newBridge(t, rt, nil, true)
	ok := rowsRecord("ok", "ok")
	ok.InterpreterScript = "print(ok.n)"
	bad := rowsRecord("bad", "bad")
	bad.InterpreterScript = "boom"
	b.Activate("q1", []*model.DatasetRecord{ok, bad})

	loads := b.LoadAll(ctx)
	if loads[0].State != prep.LoadLoaded {
		t.Fatalf("expected first loaded, got %+v", loads[0])
	}
	if loads[1].State != prep.LoadFailed || loads[1].Message != "boom failed" {
		t.Fatalf("expected setup failure, got %+v", loads[1])
	}
}

func TestBridgeLoadUnknownDataset(t *testing.T) {
	b := newBridge(t, newFakeRuntime(), nil, false)
	b.Activate("q1", nil)
	if _, err := b.Load(context.Background(), "missing"); !appErr.Is(err, appErr.DatasetNotFound) {
		t.Fatalf("expected dataset not found, got %v", err)
	}
}

func TestBridgeExecute(t *testing.T) {
	ctx := context.Background()
	rt, err := interp.NewLua(interp.LuaConfig{})
	if err != nil {
		t.Fatalf("create runtime failed: %v", err)
	}
	defer rt.Close()
	b := newBridge(t, rt, nil, false)
	b.Activate("q1", []*model.DatasetRecord{rowsRecord("s", "Sales")})
	b.LoadAll(ctx)

	res, err := b.Execute(ctx, "q1", "print(sales.n)")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.Output != "1\n" {
		t.Fatalf("unexpected output: %q", res.Output)
	}

	b.Activate("q2", nil)
	if _, err := b.Execute(ctx, "q1", "print(1)"); !appErr.Is(err, appErr.QuestionStale) {
		t.Fatalf("expected stale error, got %v", err)
	}
}
