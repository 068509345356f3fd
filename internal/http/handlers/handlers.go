// Handler wiring shared by all endpoint files.
//
// Handlers groups the HTTP endpoints and the services they call. Handlers are
// transport-thin: they bind and validate input, call a service, and translate
// the result (including sentinel errors) into HTTP responses.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/debtease/go-debtease-backend/internal/services"
	"github.com/debtease/go-debtease-backend/internal/utils"
)

// Handlers groups HTTP endpoints for auth, debts, payments, plans,
// notifications, credentials, and AI insights.
type Handlers struct {
	auth          *services.AuthService
	debts         *services.DebtService
	payments      *services.PaymentService
	plans         *services.PlanService
	notifications *services.NotificationService
	credentials   *services.CredentialService
	insights      *services.InsightService

	// IdempotencyTTL bounds how long a stored Idempotency-Key replay stays
	// valid. Zero means the 24h default.
	IdempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(
	auth *services.AuthService,
	debts *services.DebtService,
	payments *services.PaymentService,
	plans *services.PlanService,
	notifications *services.NotificationService,
	credentials *services.CredentialService,
	insights *services.InsightService,
) *Handlers {
	return &Handlers{
		auth:          auth,
		debts:         debts,
		payments:      payments,
		plans:         plans,
		notifications: notifications,
		credentials:   credentials,
		insights:      insights,
	}
}

// idempotencyTTL returns the configured replay window, defaulting to 24h.
func (h *Handlers) idempotencyTTL() time.Duration {
	if h.IdempotencyTTL > 0 {
		return h.IdempotencyTTL
	}
	return 24 * time.Hour
}

// timeNow returns the current UTC time. Kept as a helper so handler code
// reads uniformly alongside the clock-injected services.
func timeNow() time.Time { return time.Now().UTC() }

// userID returns the authenticated user id placed in the Gin context by the
// session middleware. Protected routes always have it; an empty string means
// the middleware was not installed on the route.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
