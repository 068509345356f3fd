// Verifiable credential HTTP handlers.
//
// This file exposes the credential endpoints:
//   - POST   /credentials              (issue)
//   - GET    /credentials              (list)
//   - GET    /credentials/{id}         (fetch)
//   - DELETE /credentials/{id}         (revoke)
//   - POST   /credentials/verify       (verify a presented token)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/services"
)

//
// DTOs
//

// IssueCredentialRequest is the JSON payload for issuing a credential.
type IssueCredentialRequest struct {
	Type   string  `json:"type" binding:"required" example:"debt_paid_off"`
	DebtID *string `json:"debt_id,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// VerifyCredentialRequest is the JSON payload for verifying a token.
type VerifyCredentialRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyCredentialResponse reports the verification outcome.
type VerifyCredentialResponse struct {
	Valid          bool    `json:"valid"`
	CredentialType string  `json:"credential_type,omitempty"`
	Subject        string  `json:"subject,omitempty"`
	DebtID         *string `json:"debt_id,omitempty"`
}

// ListCredentialsResponse wraps a credential list.
type ListCredentialsResponse struct {
	Credentials []domain.VerifiableCredential `json:"credentials"`
	Total       int                           `json:"total"`
}

//
// Handlers
//

// IssueCredential godoc
// @ID          issueCredential
// @Summary     Issue a verifiable credential
// @Description Signs and stores a credential attesting to the user's debt
// @Description standing, optionally scoped to one debt.
// @Tags        Credentials
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.IssueCredentialRequest  true  "Credential payload"
//
// @Success     201  {object}  domain.VerifiableCredential
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credentials [post]
func (h *Handlers) IssueCredential(c *gin.Context) {
	var req IssueCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	cred, err := h.credentials.Issue(c.Request.Context(), userID(c), req.Type, req.DebtID)
	if err != nil {
		if failValidation(c, err) {
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, cred)
}

// ListCredentials godoc
// @ID          listCredentials
// @Summary     List credentials
// @Description Returns the user's credentials, newest first.
// @Tags        Credentials
// @Produce     json
//
// @Success     200  {object}  handlers.ListCredentialsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credentials [get]
func (h *Handlers) ListCredentials(c *gin.Context) {
	items, err := h.credentials.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListCredentialsResponse{Credentials: items, Total: len(items)})
}

// GetCredential godoc
// @ID          getCredential
// @Summary     Fetch a credential
// @Description Returns one credential owned by the current user.
// @Tags        Credentials
// @Produce     json
//
// @Param       id  path  string  true  "Credential ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.VerifiableCredential
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Credential not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credentials/{id} [get]
func (h *Handlers) GetCredential(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "credential id must be a UUID")
		return
	}
	cred, err := h.credentials.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrCredentialNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "credential not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, cred)
}

// RevokeCredential godoc
// @ID          revokeCredential
// @Summary     Revoke a credential
// @Description Marks an issued credential revoked. The row is kept so
// @Description verifiers can check status by id.
// @Tags        Credentials
// @Produce     json
//
// @Param       id  path  string  true  "Credential ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.VerifiableCredential
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Credential not found or already revoked"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credentials/{id} [delete]
func (h *Handlers) RevokeCredential(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "credential id must be a UUID")
		return
	}
	cred, err := h.credentials.Revoke(c.Request.Context(), userID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrCredentialNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "credential not found or already revoked")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, cred)
}

// VerifyCredential godoc
// @ID          verifyCredential
// @Summary     Verify a credential token
// @Description Validates a presented credential JWT against the signing key
// @Description and revocation state. Always returns 200; the body carries the
// @Description verdict.
// @Tags        Credentials
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.VerifyCredentialRequest  true  "Token to verify"
//
// @Success     200  {object}  handlers.VerifyCredentialResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /credentials/verify [post]
func (h *Handlers) VerifyCredential(c *gin.Context) {
	var req VerifyCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	claims, err := h.credentials.Verify(c.Request.Context(), req.Token)
	if err != nil {
		ok(c, http.StatusOK, VerifyCredentialResponse{Valid: false})
		return
	}
	ok(c, http.StatusOK, VerifyCredentialResponse{
		Valid:          true,
		CredentialType: claims.CredentialType,
		Subject:        claims.Subject,
		DebtID:         claims.DebtID,
	})
}
