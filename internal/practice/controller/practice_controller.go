package controller

import (
	"io"
	"net/http"

	commonmw "practicelab/internal/common/http/middleware"
	dsmodel "practicelab/internal/dataset/model"
	"practicelab/internal/export"
	"practicelab/internal/practice/service"
	pkgerrors "practicelab/pkg/errors"
	"practicelab/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const maxQuestionBytes = 4 << 20

// PracticeController handles practice session HTTP endpoints.
type PracticeController struct {
	manager *service.Manager
}

// NewPracticeController creates a new PracticeController.
func NewPracticeController(manager *service.Manager) *PracticeController {
	return &PracticeController{manager: manager}
}

// RegisterRoutes mounts the session endpoints on api.
func (h *PracticeController) RegisterRoutes(api gin.IRouter) {
	api.POST("/sessions", h.CreateSession)

	sessions := api.Group("/sessions/:id", commonmw.SessionContextMiddleware("id"))
	sessions.DELETE("", h.CloseSession)
	sessions.POST("/question", h.SelectQuestion)
	sessions.GET("/variants", h.Variants)
	sessions.GET("/preview", h.Preview)
	sessions.GET("/preview/export", h.Export)
	sessions.POST("/execute", h.Execute)
	sessions.GET("/state", h.State)
	sessions.POST("/retry", h.Retry)
}

// CreateSession opens a new practice session.
func (h *PracticeController) CreateSession(c *gin.Context) {
	session, err := h.manager.Create(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, CreateSessionResponse{SessionID: session.ID()})
}

// CloseSession releases a session.
func (h *PracticeController) CloseSession(c *gin.Context) {
	if err := h.manager.Close(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// SelectQuestion activates a question payload in the session.
func (h *PracticeController) SelectQuestion(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxQuestionBytes+1))
	if err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if len(body) > maxQuestionBytes {
		response.Error(c, pkgerrors.Newf(pkgerrors.PayloadTooLarge, "question payload exceeds %d bytes", maxQuestionBytes))
		return
	}
	payload, err := dsmodel.DecodeJSON(body)
	if err != nil {
		response.BadRequest(c, "Question payload must be JSON")
		return
	}
	view, err := session.SelectQuestion(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Variants lists the dataset variants of the active question.
func (h *PracticeController) Variants(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, session.Variants())
}

// Preview returns a variant preview, or an unavailable marker.
func (h *PracticeController) Preview(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	p, err := session.Preview(c.Request.Context(), c.Query("variant"))
	if pkgerrors.Is(err, pkgerrors.PreviewUnavailable) {
		response.Success(c, PreviewUnavailableResponse{Available: false, Message: pkgerrors.GetError(err).Error()})
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Export downloads a variant preview as a workbook.
func (h *PracticeController) Export(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	data, filename, err := session.Export(c.Request.Context(), c.Query("variant"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, export.ContentType, data)
}

// Execute runs learner code against the active question.
func (h *PracticeController) Execute(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	res, err := session.Execute(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// State returns the engine state of the session.
func (h *PracticeController) State(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, session.State())
}

// Retry re-runs preparation of the active question.
func (h *PracticeController) Retry(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	state, err := session.Retry(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, state)
}

// Health reports liveness with the live session count.
func (h *PracticeController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.manager.Len()})
}

func (h *PracticeController) session(c *gin.Context) (*service.Session, bool) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid session id")
		return nil, false
	}
	session, err := h.manager.Get(id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return session, true
}

// CreateSessionResponse defines session creation payload.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// ExecuteRequest defines code execution payload.
type ExecuteRequest struct {
	Code string `json:"code" binding:"required"`
}

// PreviewUnavailableResponse is returned when a variant has nothing to show.
type PreviewUnavailableResponse struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}
