// Package services defines the business logic for authentication, debts,
// payments, repayment plans, notifications, credentials, the insight cache,
// and the processing queue. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Authentication errors.
var (
	// ErrEmailTaken is returned when registering with an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned when a login attempt fails. The same
	// value covers unknown emails and wrong passwords on purpose.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrSessionExpired is returned when a session token is unknown or past
	// its expiry.
	ErrSessionExpired = errors.New("session expired or invalid")
)

// Resource errors.
var (
	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDebtNotFound indicates that the requested debt does not exist or is
	// not accessible to the current user.
	ErrDebtNotFound = errors.New("debt not found")

	// ErrPaymentNotFound indicates that the requested payment does not exist
	// or is not accessible to the current user.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrPlanNotFound indicates that the requested repayment plan does not
	// exist or is not accessible to the current user.
	ErrPlanNotFound = errors.New("repayment plan not found")

	// ErrNotificationNotFound indicates that the requested notification does
	// not exist or is not accessible to the current user.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrCredentialNotFound indicates that the requested credential does not
	// exist, is not accessible, or is already revoked.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrReference indicates that a write pointed at a missing parent row
	// (foreign key violation surfaced as a domain error).
	ErrReference = errors.New("referenced record does not exist")
)

// Queue and cache errors.
var (
	// ErrCacheMiss signals that no live cache entry exists for the requested
	// key. Non-fatal: the caller is expected to trigger a recompute.
	ErrCacheMiss = errors.New("insight cache miss")

	// ErrInvalidState is returned for illegal queue transitions, e.g.
	// completing a task that is not currently processing.
	ErrInvalidState = errors.New("invalid task state transition")

	// ErrExhaustedRetries is returned when a task has failed max_attempts
	// times and cannot be retried.
	ErrExhaustedRetries = errors.New("task retries exhausted")
)
