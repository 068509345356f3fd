// Payment HTTP handlers.
//
// This file exposes REST endpoints for recording and reading payments:
//   - POST /debts/{id}/payments  (record, Idempotency-Key aware)
//   - GET  /debts/{id}/payments  (list for one debt)
//   - GET  /payments             (list all)
//   - GET  /payments/{id}        (fetch)
//   - PUT  /payments/{id}/status (settlement status change)
//
// Recording supports safe retries: when the client resends the same
// Idempotency-Key for the same debt, the originally created payment is
// returned instead of a duplicate being written.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/http/middleware"
	"github.com/debtease/go-debtease-backend/internal/repo"
	"github.com/debtease/go-debtease-backend/internal/services"
)

//
// DTOs
//

// RecordPaymentRequest is the JSON payload for recording a payment.
type RecordPaymentRequest struct {
	Amount           float64         `json:"amount" binding:"required" example:"250"`
	PaymentDate      string          `json:"payment_date" binding:"required" example:"2026-08-29"`
	PrincipalPortion *float64        `json:"principal_portion,omitempty" example:"200"`
	InterestPortion  *float64        `json:"interest_portion,omitempty" example:"50"`
	Status           string          `json:"status,omitempty" example:"confirmed"`
	Notes            *string         `json:"notes,omitempty"`
	ExtraDetails     json.RawMessage `json:"extra_details,omitempty" swaggertype:"object"`
	BlockchainID     *string         `json:"blockchain_id,omitempty"`
}

// UpdatePaymentStatusRequest is the JSON payload for a status change.
type UpdatePaymentStatusRequest struct {
	Status string `json:"status" binding:"required" example:"cancelled"`
}

// ListPaymentsResponse wraps a payment list.
type ListPaymentsResponse struct {
	Payments []domain.Payment `json:"payments"`
	Total    int              `json:"total"`
}

//
// Handlers
//

// RecordPayment godoc
// @ID          recordPayment
// @Summary     Record a payment
// @Description Records a payment against a debt owned by the current user. A
// @Description confirmed payment reduces the debt balance and notifies the
// @Description user. Send an Idempotency-Key header to make retries safe: a
// @Description replay returns the original payment with 200 instead of 201.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       id               path    string  true  "Debt ID (UUID)"  format(uuid)
// @Param       Idempotency-Key  header  string  false "Retry-safe request key"
// @Param       body             body    handlers.RecordPaymentRequest  true  "Payment payload"
//
// @Success     200  {object}  domain.Payment  "Idempotent replay"
// @Success     201  {object}  domain.Payment
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Debt not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /debts/{id}/payments [post]
func (h *Handlers) RecordPayment(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	debtID := c.Param("id")
	if _, err := uuid.Parse(debtID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debt id must be a UUID")
		return
	}

	// Replay: serve the previously recorded payment.
	if key, has := middleware.GetIdempotencyKey(c); has && middleware.IsReplay(c) {
		rec, err := repo.GetIdempotency(ctx, h.payments.DB, uid, debtID, key, timeNow())
		if err == nil && rec != nil {
			if p, err := h.payments.Get(ctx, uid, rec.PaymentID); err == nil {
				ok(c, http.StatusOK, p)
				return
			}
		}
		// Stored record unusable: fall through and record normally.
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.payments.Record(ctx, uid, services.PaymentInput{
		DebtID:           debtID,
		Amount:           req.Amount,
		PaymentDate:      req.PaymentDate,
		PrincipalPortion: req.PrincipalPortion,
		InterestPortion:  req.InterestPortion,
		Status:           domain.PaymentStatus(req.Status),
		Notes:            req.Notes,
		ExtraDetails:     datatypes.JSON(req.ExtraDetails),
		BlockchainID:     req.BlockchainID,
	})
	if err != nil {
		switch {
		case failValidation(c, err):
		case errors.Is(err, services.ErrDebtNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "debt not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Persist the idempotency record so retries can replay. Best effort.
	if key, has := middleware.GetIdempotencyKey(c); has {
		_, _ = repo.CreateIdempotency(ctx, h.payments.DB, uid, debtID, key, p.ID, http.StatusCreated, h.idempotencyTTL())
	}

	ok(c, http.StatusCreated, p)
}

// ListDebtPayments godoc
// @ID          listDebtPayments
// @Summary     List payments for a debt
// @Description Returns the payments recorded against one debt, newest first.
// @Tags        Payments
// @Produce     json
//
// @Param       id  path  string  true  "Debt ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.ListPaymentsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /debts/{id}/payments [get]
func (h *Handlers) ListDebtPayments(c *gin.Context) {
	debtID := c.Param("id")
	if _, err := uuid.Parse(debtID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debt id must be a UUID")
		return
	}
	items, err := h.payments.List(c.Request.Context(), userID(c), debtID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListPaymentsResponse{Payments: items, Total: len(items)})
}

// ListPayments godoc
// @ID          listPayments
// @Summary     List all payments
// @Description Returns every payment of the current user, newest first.
// @Tags        Payments
// @Produce     json
//
// @Success     200  {object}  handlers.ListPaymentsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /payments [get]
func (h *Handlers) ListPayments(c *gin.Context) {
	items, err := h.payments.List(c.Request.Context(), userID(c), "")
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListPaymentsResponse{Payments: items, Total: len(items)})
}

// GetPayment godoc
// @ID          getPayment
// @Summary     Fetch a payment
// @Description Returns one payment owned by the current user.
// @Tags        Payments
// @Produce     json
//
// @Param       id  path  string  true  "Payment ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Payment
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Payment not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /payments/{id} [get]
func (h *Handlers) GetPayment(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "payment id must be a UUID")
		return
	}
	p, err := h.payments.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrPaymentNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "payment not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePaymentStatus godoc
// @ID          updatePaymentStatus
// @Summary     Change payment status
// @Description Moves a payment to a new settlement status (pending,
// @Description confirmed, failed, cancelled).
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Payment ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdatePaymentStatusRequest  true  "New status"
//
// @Success     200  {object}  domain.Payment
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Payment not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /payments/{id}/status [put]
func (h *Handlers) UpdatePaymentStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "payment id must be a UUID")
		return
	}
	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.payments.UpdateStatus(c.Request.Context(), userID(c), id, domain.PaymentStatus(req.Status))
	if err != nil {
		switch {
		case failValidation(c, err):
		case errors.Is(err, services.ErrPaymentNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "payment not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, p)
}
