// Debt HTTP handlers.
//
// This file exposes REST endpoints for the debt portfolio:
//   - POST   /debts        (create)
//   - GET    /debts        (list, paginated, ETag support)
//   - GET    /debts/{id}   (fetch)
//   - PATCH  /debts/{id}   (partial update)
//   - DELETE /debts/{id}   (soft delete)
//
// Handlers are transport-thin: they validate input, call the debt service,
// and translate results into HTTP responses (including conditional ones).
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/repo"
	"github.com/debtease/go-debtease-backend/internal/services"
)

//
// DTOs
//

// CreateDebtRequest is the JSON payload for creating a debt.
type CreateDebtRequest struct {
	Name                string          `json:"name" binding:"required" example:"Chase Sapphire"`
	DebtType            string          `json:"debt_type" binding:"required" example:"credit_card"`
	PrincipalAmount     float64         `json:"principal_amount" binding:"required" example:"5000"`
	CurrentBalance      float64         `json:"current_balance" example:"4200.50"`
	InterestRate        float64         `json:"interest_rate" example:"22.9"`
	IsVariableRate      bool            `json:"is_variable_rate"`
	MinimumPayment      float64         `json:"minimum_payment" binding:"required" example:"125"`
	DueDate             *string         `json:"due_date,omitempty" example:"2026-09-15"`
	Lender              string          `json:"lender" binding:"required" example:"Chase"`
	RemainingTermMonths *int            `json:"remaining_term_months,omitempty" example:"48"`
	IsTaxDeductible     bool            `json:"is_tax_deductible"`
	PaymentFrequency    string          `json:"payment_frequency" example:"monthly"`
	IsHighPriority      bool            `json:"is_high_priority"`
	Notes               *string         `json:"notes,omitempty"`
	Details             json.RawMessage `json:"details,omitempty" swaggertype:"object"`
}

// UpdateDebtRequest is the JSON payload for patching a debt. Absent fields
// are left unchanged.
type UpdateDebtRequest struct {
	Name                *string         `json:"name,omitempty"`
	CurrentBalance      *float64        `json:"current_balance,omitempty"`
	InterestRate        *float64        `json:"interest_rate,omitempty"`
	IsVariableRate      *bool           `json:"is_variable_rate,omitempty"`
	MinimumPayment      *float64        `json:"minimum_payment,omitempty"`
	DueDate             *string         `json:"due_date,omitempty"`
	Lender              *string         `json:"lender,omitempty"`
	RemainingTermMonths *int            `json:"remaining_term_months,omitempty"`
	IsTaxDeductible     *bool           `json:"is_tax_deductible,omitempty"`
	PaymentFrequency    *string         `json:"payment_frequency,omitempty"`
	IsHighPriority      *bool           `json:"is_high_priority,omitempty"`
	Notes               *string         `json:"notes,omitempty"`
	Details             json.RawMessage `json:"details,omitempty" swaggertype:"object"`
}

// ListDebtsResponse wraps a page of debts and pagination information.
type ListDebtsResponse struct {
	Debts      []domain.Debt `json:"debts"`
	Pagination Pagination    `json:"pagination"`
}

//
// Handlers
//

// CreateDebt godoc
// @ID          createDebt
// @Summary     Add a debt
// @Description Creates a debt in the current user's portfolio. Any cached AI
// @Description insights for the portfolio are invalidated.
// @Tags        Debts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateDebtRequest  true  "Debt payload"
//
// @Success     201  {object}  domain.Debt
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /debts [post]
func (h *Handlers) CreateDebt(c *gin.Context) {
	var req CreateDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	in := services.DebtInput{
		Name:                req.Name,
		DebtType:            domain.DebtType(req.DebtType),
		PrincipalAmount:     req.PrincipalAmount,
		CurrentBalance:      req.CurrentBalance,
		InterestRate:        req.InterestRate,
		IsVariableRate:      req.IsVariableRate,
		MinimumPayment:      req.MinimumPayment,
		DueDate:             req.DueDate,
		Lender:              req.Lender,
		RemainingTermMonths: req.RemainingTermMonths,
		IsTaxDeductible:     req.IsTaxDeductible,
		PaymentFrequency:    domain.PaymentFrequency(req.PaymentFrequency),
		IsHighPriority:      req.IsHighPriority,
		Notes:               req.Notes,
		Details:             []byte(req.Details),
	}

	d, err := h.debts.Create(c.Request.Context(), userID(c), in)
	if err != nil {
		if failValidation(c, err) {
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, d)
}

// ListDebts godoc
// @ID          listDebts
// @Summary     List debts (paginated)
// @Description Returns a page of the user's debts. Supports weak ETag via
// @Description If-None-Match and may return 304.
// @Tags        Debts
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListDebtsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /debts [get]
func (h *Handlers) ListDebts(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := repo.DebtsStats(ctx, h.debts.DB, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"debts:%s:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.debts.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListDebtsResponse{
		Debts: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetDebt godoc
// @ID          getDebt
// @Summary     Fetch a debt
// @Description Returns a single debt owned by the current user.
// @Tags        Debts
// @Produce     json
//
// @Param       id  path  string  true  "Debt ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Debt
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Debt not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /debts/{id} [get]
func (h *Handlers) GetDebt(c *gin.Context) {
	debtID := c.Param("id")
	if _, err := uuid.Parse(debtID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debt id must be a UUID")
		return
	}

	d, err := h.debts.Get(c.Request.Context(), userID(c), debtID)
	if err != nil {
		if errors.Is(err, services.ErrDebtNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "debt not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, d)
}

// UpdateDebt godoc
// @ID          updateDebt
// @Summary     Update a debt
// @Description Applies a partial update to a debt owned by the current user.
// @Description Absent fields are left unchanged; cached AI insights are
// @Description invalidated on success.
// @Tags        Debts
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Debt ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateDebtRequest  true  "Fields to change"
//
// @Success     200  {object}  domain.Debt
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Debt not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /debts/{id} [patch]
func (h *Handlers) UpdateDebt(c *gin.Context) {
	debtID := c.Param("id")
	if _, err := uuid.Parse(debtID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debt id must be a UUID")
		return
	}

	var req UpdateDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	patch, errMsg := debtPatch(req)
	if errMsg != "" {
		fail(c, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	if len(patch) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no fields to update")
		return
	}

	d, err := h.debts.Update(c.Request.Context(), userID(c), debtID, patch)
	if err != nil {
		if errors.Is(err, services.ErrDebtNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "debt not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, d)
}

// DeleteDebt godoc
// @ID          deleteDebt
// @Summary     Delete a debt
// @Description Soft-deletes a debt owned by the current user and invalidates
// @Description cached AI insights.
// @Tags        Debts
// @Produce     json
//
// @Param       id  path  string  true  "Debt ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Debt not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /debts/{id} [delete]
func (h *Handlers) DeleteDebt(c *gin.Context) {
	debtID := c.Param("id")
	if _, err := uuid.Parse(debtID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debt id must be a UUID")
		return
	}

	if err := h.debts.Delete(c.Request.Context(), userID(c), debtID); err != nil {
		if errors.Is(err, services.ErrDebtNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "debt not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// debtPatch converts the present fields of an UpdateDebtRequest into a column
// patch, validating values along the way. Returns a non-empty message on the
// first invalid field.
func debtPatch(req UpdateDebtRequest) (map[string]any, string) {
	patch := map[string]any{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, "name must not be blank"
		}
		patch["name"] = strings.TrimSpace(*req.Name)
	}
	if req.CurrentBalance != nil {
		if *req.CurrentBalance < 0 {
			return nil, "current_balance must not be negative"
		}
		patch["current_balance"] = *req.CurrentBalance
	}
	if req.InterestRate != nil {
		if *req.InterestRate < 0 || *req.InterestRate > 100 {
			return nil, "interest_rate must be between 0 and 100"
		}
		patch["interest_rate"] = *req.InterestRate
	}
	if req.IsVariableRate != nil {
		patch["is_variable_rate"] = *req.IsVariableRate
	}
	if req.MinimumPayment != nil {
		if *req.MinimumPayment <= 0 {
			return nil, "minimum_payment must be greater than zero"
		}
		patch["minimum_payment"] = *req.MinimumPayment
	}
	if req.DueDate != nil {
		patch["due_date"] = *req.DueDate
	}
	if req.Lender != nil {
		if strings.TrimSpace(*req.Lender) == "" {
			return nil, "lender must not be blank"
		}
		patch["lender"] = strings.TrimSpace(*req.Lender)
	}
	if req.RemainingTermMonths != nil {
		if *req.RemainingTermMonths <= 0 {
			return nil, "remaining_term_months must be greater than zero"
		}
		patch["remaining_term_months"] = *req.RemainingTermMonths
	}
	if req.IsTaxDeductible != nil {
		patch["is_tax_deductible"] = *req.IsTaxDeductible
	}
	if req.PaymentFrequency != nil {
		patch["payment_frequency"] = *req.PaymentFrequency
	}
	if req.IsHighPriority != nil {
		patch["is_high_priority"] = *req.IsHighPriority
	}
	if req.Notes != nil {
		patch["notes"] = *req.Notes
	}
	if len(req.Details) > 0 {
		patch["details"] = datatypes.JSON(req.Details)
	}
	return patch, ""
}
