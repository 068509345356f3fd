// Repayment plan HTTP handlers.
//
// This file exposes REST endpoints for repayment plans:
//   - POST  /plans       (create; becomes the active plan)
//   - GET   /plans       (list)
//   - GET   /plans/{id}  (fetch)
//   - PATCH /plans/{id}  (partial update; activating deactivates the rest)
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/services"
)

//
// DTOs
//

// CreatePlanRequest is the JSON payload for creating a repayment plan.
type CreatePlanRequest struct {
	Strategy               string          `json:"strategy" binding:"required" example:"avalanche"`
	MonthlyPaymentAmount   *float64        `json:"monthly_payment_amount,omitempty" example:"800"`
	DebtOrder              json.RawMessage `json:"debt_order,omitempty" swaggertype:"array,string"`
	PaymentSchedule        json.RawMessage `json:"payment_schedule,omitempty" swaggertype:"object"`
	TotalInterestSaved     *float64        `json:"total_interest_saved,omitempty"`
	ExpectedCompletionDate *string         `json:"expected_completion_date,omitempty" example:"2028-01-01"`
	BlockchainID           *string         `json:"blockchain_id,omitempty"`
}

// UpdatePlanRequest is the JSON payload for patching a plan. Absent fields
// are left unchanged.
type UpdatePlanRequest struct {
	Strategy               *string         `json:"strategy,omitempty"`
	MonthlyPaymentAmount   *float64        `json:"monthly_payment_amount,omitempty"`
	DebtOrder              json.RawMessage `json:"debt_order,omitempty" swaggertype:"array,string"`
	PaymentSchedule        json.RawMessage `json:"payment_schedule,omitempty" swaggertype:"object"`
	TotalInterestSaved     *float64        `json:"total_interest_saved,omitempty"`
	ExpectedCompletionDate *string         `json:"expected_completion_date,omitempty"`
	IsActive               *bool           `json:"is_active,omitempty"`
	BlockchainID           *string         `json:"blockchain_id,omitempty"`
}

// ListPlansResponse wraps a plan list.
type ListPlansResponse struct {
	Plans []domain.RepaymentPlan `json:"plans"`
	Total int                    `json:"total"`
}

//
// Handlers
//

// CreatePlan godoc
// @ID          createPlan
// @Summary     Create a repayment plan
// @Description Creates a repayment plan for the current user. The new plan
// @Description becomes the active one; all other plans are deactivated.
// @Tags        Plans
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreatePlanRequest  true  "Plan payload"
//
// @Success     201  {object}  domain.RepaymentPlan
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /plans [post]
func (h *Handlers) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.plans.Create(c.Request.Context(), userID(c), services.PlanInput{
		Strategy:               domain.StrategyType(req.Strategy),
		MonthlyPaymentAmount:   req.MonthlyPaymentAmount,
		DebtOrder:              datatypes.JSON(req.DebtOrder),
		PaymentSchedule:        datatypes.JSON(req.PaymentSchedule),
		TotalInterestSaved:     req.TotalInterestSaved,
		ExpectedCompletionDate: req.ExpectedCompletionDate,
		BlockchainID:           req.BlockchainID,
	})
	if err != nil {
		if failValidation(c, err) {
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListPlans godoc
// @ID          listPlans
// @Summary     List repayment plans
// @Description Returns the user's repayment plans, newest first.
// @Tags        Plans
// @Produce     json
//
// @Success     200  {object}  handlers.ListPlansResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /plans [get]
func (h *Handlers) ListPlans(c *gin.Context) {
	items, err := h.plans.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListPlansResponse{Plans: items, Total: len(items)})
}

// GetPlan godoc
// @ID          getPlan
// @Summary     Fetch a repayment plan
// @Description Returns one plan owned by the current user.
// @Tags        Plans
// @Produce     json
//
// @Param       id  path  string  true  "Plan ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.RepaymentPlan
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Plan not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /plans/{id} [get]
func (h *Handlers) GetPlan(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "plan id must be a UUID")
		return
	}
	p, err := h.plans.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrPlanNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "repayment plan not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePlan godoc
// @ID          updatePlan
// @Summary     Update a repayment plan
// @Description Applies a partial update to a plan owned by the current user.
// @Description Setting is_active to true deactivates the user's other plans.
// @Tags        Plans
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Plan ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdatePlanRequest  true  "Fields to change"
//
// @Success     200  {object}  domain.RepaymentPlan
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Plan not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /plans/{id} [patch]
func (h *Handlers) UpdatePlan(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "plan id must be a UUID")
		return
	}
	var req UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	upd := services.PlanUpdate{
		MonthlyPaymentAmount:   req.MonthlyPaymentAmount,
		DebtOrder:              datatypes.JSON(req.DebtOrder),
		PaymentSchedule:        datatypes.JSON(req.PaymentSchedule),
		TotalInterestSaved:     req.TotalInterestSaved,
		ExpectedCompletionDate: req.ExpectedCompletionDate,
		IsActive:               req.IsActive,
		BlockchainID:           req.BlockchainID,
	}
	if req.Strategy != nil {
		s := domain.StrategyType(*req.Strategy)
		upd.Strategy = &s
	}

	p, err := h.plans.Update(c.Request.Context(), userID(c), id, upd)
	if err != nil {
		switch {
		case failValidation(c, err):
		case errors.Is(err, services.ErrPlanNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "repayment plan not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, p)
}
