package provider

import (
	"fmt"
	"net/http"

	"github.com/triggerline/triggerline/internal/domain"
)

// ClassifyStatus maps a provider HTTP status to the domain error taxonomy.
// Timeouts are handled by ClassifyCallError before status is available.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status == http.StatusNotFound, status == http.StatusUnprocessableEntity:
		return domain.ErrInvalidResource
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrRefreshDenied
	case status >= 500:
		return domain.ErrTransientFailure
	default:
		return fmt.Errorf("%w: unexpected status %d", domain.ErrTransientFailure, status)
	}
}

// ClassifyCallError normalizes transport-level failures. Timeouts and
// connection errors are all transient; they never corrupt local state.
func ClassifyCallError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrTransientFailure, err)
}
