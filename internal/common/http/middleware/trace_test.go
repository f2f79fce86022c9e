package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	commonmw "practicelab/internal/common/http/middleware"
	"practicelab/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
)

type contextResponse struct {
	TraceID      string `json:"trace_id"`
	RequestID    string `json:"request_id"`
	SessionID    string `json:"session_id"`
	CtxTraceID   string `json:"ctx_trace_id"`
	CtxSessionID string `json:"ctx_session_id"`
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(commonmw.TraceContextMiddleware())
	handler := func(c *gin.Context) {
		ctx := c.Request.Context()
		c.JSON(http.StatusOK, contextResponse{
			TraceID:      c.GetString("trace_id"),
			RequestID:    c.GetString("request_id"),
			SessionID:    c.GetString("session_id"),
			CtxTraceID:   toString(ctx.Value(contextkey.TraceID)),
			CtxSessionID: toString(ctx.Value(contextkey.SessionID)),
		})
	}
	router.GET("/trace", handler)
	router.GET("/sessions/:id", commonmw.SessionContextMiddleware("id"), handler)
	return router
}

func TestTraceContextMiddleware(t *testing.T) {
	router := newRouter()

	cases := []struct {
		name            string
		path            string
		headers         map[string]string
		expectedTraceID string
		expectedSession string
	}{
		{name: "generate ids", path: "/trace"},
		{
			name:            "preserve trace id",
			path:            "/trace",
			headers:         map[string]string{"X-Trace-Id": "trace-123", "X-Request-Id": "req-1"},
			expectedTraceID: "trace-123",
		},
		{name: "session id from route", path: "/sessions/abc", expectedSession: "abc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for key, value := range tc.headers {
				req.Header.Set(key, value)
			}
			router.ServeHTTP(rec, req)

			var resp contextResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response failed: %v", err)
			}
			if resp.TraceID == "" || resp.RequestID == "" || resp.CtxTraceID != resp.TraceID {
				t.Fatalf("expected trace ids in gin and request context, got %+v", resp)
			}
			if tc.expectedTraceID != "" && resp.TraceID != tc.expectedTraceID {
				t.Fatalf("expected trace id %s, got %s", tc.expectedTraceID, resp.TraceID)
			}
			if rec.Header().Get("X-Trace-Id") != resp.TraceID {
				t.Fatalf("expected trace id header")
			}
			if resp.SessionID != tc.expectedSession || resp.CtxSessionID != tc.expectedSession {
				t.Fatalf("expected session id %q, got %+v", tc.expectedSession, resp)
			}
		})
	}
}

func toString(value interface{}) string {
	if v, ok := value.(string); ok {
		return v
	}
	return ""
}
