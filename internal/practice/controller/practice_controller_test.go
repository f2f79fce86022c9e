package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"practicelab/internal/export"
	"practicelab/internal/practice/controller"
	"practicelab/internal/practice/service"
	pkgerrors "practicelab/pkg/errors"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Code    pkgerrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	manager, err := service.NewManager(service.Config{}, nil)
	if err != nil {
		t.Fatalf("create manager failed: %v", err)
	}
	t.Cleanup(func() {
		// Mirrors t.Context() (Go 1.24+), which is already canceled when cleanups run.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		manager.Shutdown(ctx)
	})

	h := controller.NewPracticeController(manager)
	router := gin.New()
	router.GET("/healthz", h.Health)
	h.RegisterRoutes(router.Group("/api/v1/practice"))
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response failed: %v (%s)", err, w.Body.String())
		}
	}
	return w, env
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	w, env := do(t, router, http.MethodPost, "/api/v1/practice/sessions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("create session status %d: %s", w.Code, w.Body.String())
	}
	var data controller.CreateSessionResponse
	if err := json.Unmarshal(env.Data, &data); err != nil || data.SessionID == "" {
		t.Fatalf("unexpected create payload: %s", env.Data)
	}
	return data.SessionID
}

func TestPracticeFlow(t *testing.T) {
	router := newRouter(t)
	id := createSession(t, router)
	base := "/api/v1/practice/sessions/" + id

	w, env := do(t, router, http.MethodPost, base+"/question", `{
		"id": "q1",
		"question_type": "sql",
		"dataset": {"table_name": "pets", "columns": ["name", "age"], "rows": [["Rex", 3], ["Tom", 5]]}
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("select status %d: %s", w.Code, w.Body.String())
	}
	var view service.QuestionView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view failed: %v", err)
	}
	if len(view.Variants) != 1 || view.State.Analytic == nil || view.State.Analytic.Phase != "ready" {
		t.Fatalf("unexpected view: %s", env.Data)
	}

	w, env = do(t, router, http.MethodGet, base+"/preview?variant="+url.QueryEscape(view.Variants[0].ID), "")
	if w.Code != http.StatusOK || !bytes.Contains(env.Data, []byte(`"Rex"`)) {
		t.Fatalf("unexpected preview %d: %s", w.Code, w.Body.String())
	}

	w, env = do(t, router, http.MethodPost, base+"/execute", `{"code": "SELECT name FROM pets WHERE age > 4"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("execute status %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil || len(res.Rows) != 1 || res.Rows[0][0] != "Tom" {
		t.Fatalf("unexpected execute payload: %s", env.Data)
	}

	w, env = do(t, router, http.MethodPost, base+"/execute", `{"code": "SELECT * FROM missing"}`)
	if w.Code != http.StatusOK || !bytes.Contains(env.Data, []byte(`"error"`)) {
		t.Fatalf("expected error result, got %d: %s", w.Code, w.Body.String())
	}

	w, _ = do(t, router, http.MethodGet, base+"/preview/export", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != export.ContentType {
		t.Fatalf("unexpected export response %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "pets.xlsx") {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}

	w, _ = do(t, router, http.MethodGet, base+"/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("state status %d", w.Code)
	}
	w, _ = do(t, router, http.MethodPost, base+"/retry", "")
	if w.Code != http.StatusOK {
		t.Fatalf("retry status %d", w.Code)
	}

	w, _ = do(t, router, http.MethodDelete, base, "")
	if w.Code != http.StatusOK {
		t.Fatalf("close status %d", w.Code)
	}
	w, env = do(t, router, http.MethodGet, base+"/state", "")
	if w.Code != http.StatusNotFound || env.Code != pkgerrors.SessionNotFound {
		t.Fatalf("expected session not found, got %d %d", w.Code, env.Code)
	}
}

func TestPreviewUnavailable(t *testing.T) {
	router := newRouter(t)
	base := "/api/v1/practice/sessions/" + createSession(t, router)

	do(t, router, http.MethodPost, base+"/question", `{"id": "q1", "dataset": "Just a description"}`)
	w, env := do(t, router, http.MethodGet, base+"/preview", "")
	if w.Code != http.StatusOK {
		t.Fatalf("preview status %d", w.Code)
	}
	var data controller.PreviewUnavailableResponse
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Available || data.Message == "" {
		t.Fatalf("unexpected payload: %s", env.Data)
	}
}

func TestRequestErrors(t *testing.T) {
	router := newRouter(t)
	base := "/api/v1/practice/sessions/" + createSession(t, router)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   pkgerrors.ErrorCode
	}{
		{"invalid json", http.MethodPost, base + "/question", `{`, http.StatusBadRequest, pkgerrors.InvalidParams},
		{"oversized payload", http.MethodPost, base + "/question", `{"id": "q1", "dataset": "` + strings.Repeat("a", 4<<20) + `"}`, http.StatusRequestEntityTooLarge, pkgerrors.PayloadTooLarge},
		{"missing id", http.MethodPost, base + "/question", `{"type": "sql"}`, http.StatusBadRequest, pkgerrors.ValidationFailed},
		{"no question", http.MethodPost, base + "/execute", `{"code": "SELECT 1"}`, http.StatusConflict, pkgerrors.QuestionNotSelected},
		{"missing code", http.MethodPost, base + "/execute", `{}`, http.StatusBadRequest, pkgerrors.InvalidParams},
		{"unknown session", http.MethodGet, "/api/v1/practice/sessions/nope/variants", "", http.StatusNotFound, pkgerrors.SessionNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := do(t, router, tc.method, tc.path, tc.body)
			if w.Code != tc.status || env.Code != tc.code {
				t.Fatalf("expected %d/%d, got %d/%d: %s", tc.status, tc.code, w.Code, env.Code, w.Body.String())
			}
		})
	}
}

func TestHealth(t *testing.T) {
	router := newRouter(t)
	w, _ := do(t, router, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
}
