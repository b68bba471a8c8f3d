package admission

import "errors"

// Admission failures are terminal for the request; nothing is retried
// server-side. The HTTP layer maps each sentinel to a status code and a
// short user-facing message. Internal detail is logged, never returned.
var (
	ErrUnauthenticated    = errors.New("admission: unauthenticated")
	ErrTokenRequired      = errors.New("admission: verification token required")
	ErrBotCheckFailed     = errors.New("admission: bot verification failed")
	ErrQuotaExceeded      = errors.New("admission: daily call limit reached")
	ErrSpendLimitReached  = errors.New("admission: spending limit reached")
	ErrProvisioningFailed = errors.New("admission: call provisioning failed")
)
