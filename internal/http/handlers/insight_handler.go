// AI insight HTTP handlers.
//
// This file exposes the asynchronous insight endpoints:
//   - GET  /ai/insights         (cache hit: 200 with the document;
//     miss: 202 with the queued task to poll)
//   - POST /ai/insights         (force regeneration: expire cache, enqueue)
//   - GET  /ai/insights/status  (most recent generation task)
//
// Generation runs in the background worker; these handlers only read the
// cache and schedule work.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/services"
	"github.com/debtease/go-debtease-backend/internal/utils"
)

// RegenerateInsightsRequest is the JSON payload for forcing regeneration.
// The web client sends the DTI flag camelCased, so the tag follows suit.
type RegenerateInsightsRequest struct {
	IncludeDTI    bool    `json:"includeDti"`
	MonthlyIncome float64 `json:"monthly_income" example:"5200"`
}

// TaskResponse describes a queued generation task to a polling client.
type TaskResponse struct {
	TaskID      string `json:"task_id"`
	Status      string `json:"status" example:"queued"`
	Priority    int    `json:"priority" example:"5"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts" example:"3"`
	CreatedAt   string `json:"created_at"`
	Error       string `json:"error,omitempty"`
	Result      any    `json:"result,omitempty"`
}

func taskResponse(t *domain.QueueTask) TaskResponse {
	resp := TaskResponse{
		TaskID:      t.ID,
		Status:      string(t.Status),
		Priority:    t.Priority,
		Attempts:    t.Attempts,
		MaxAttempts: t.MaxAttempts,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.ErrorLog != nil {
		resp.Error = *t.ErrorLog
	}
	if len(t.Result) > 0 {
		resp.Result = json.RawMessage(t.Result)
	}
	return resp
}

// GetInsights godoc
// @ID          getInsights
// @Summary     Get AI debt insights
// @Description Returns the cached insight document for the user's current
// @Description portfolio. On a cache miss a background generation task is
// @Description scheduled (or an already pending one reused) and 202 is
// @Description returned with the task to poll.
// @Tags        Insights
// @Produce     json
//
// @Param       includeDti      query  bool    false "Include debt-to-income analysis"
// @Param       monthly_income  query  number  false "Monthly income for DTI"  minimum(0)
//
// @Success     200  {object}  services.InsightResponse
// @Success     202  {object}  handlers.TaskResponse  "Generation scheduled"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /ai/insights [get]
func (h *Handlers) GetInsights(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	doc, err := h.insights.Get(ctx, uid)
	if err == nil {
		ok(c, http.StatusOK, doc)
		return
	}
	if !errors.Is(err, services.ErrCacheMiss) {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	includeDTI := c.Query("includeDti") == "true"
	income := utils.ParseFloatDefault(c.Query("monthly_income"), 0)

	task, err := h.insights.Request(ctx, uid, includeDTI, income, false)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusAccepted, taskResponse(task))
}

// RegenerateInsights godoc
// @ID          regenerateInsights
// @Summary     Regenerate AI debt insights
// @Description Expires the live cache for the current portfolio and schedules
// @Description a fresh generation task.
// @Tags        Insights
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegenerateInsightsRequest  false  "Generation options"
//
// @Success     202  {object}  handlers.TaskResponse  "Generation scheduled"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /ai/insights [post]
func (h *Handlers) RegenerateInsights(c *gin.Context) {
	var req RegenerateInsightsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	task, err := h.insights.Request(c.Request.Context(), userID(c), req.IncludeDTI, req.MonthlyIncome, true)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusAccepted, taskResponse(task))
}

// InsightsStatus godoc
// @ID          insightsStatus
// @Summary     Insight generation status
// @Description Returns the most recent generation task for the current user.
// @Tags        Insights
// @Produce     json
//
// @Success     200  {object}  handlers.TaskResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "No task on record"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /ai/insights/status [get]
func (h *Handlers) InsightsStatus(c *gin.Context) {
	task, err := h.insights.Status(c.Request.Context(), userID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no insight task on record")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, taskResponse(task))
}
