package ghapp

import (
	"errors"

	"github.com/google/go-github/v57/github"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/provider"
)

// classifyAPIError maps go-github client errors onto the domain taxonomy.
// Rate-limit errors carry their own types and never reach the generic
// status mapping.
func classifyAPIError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return domain.ErrRateLimited
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return domain.ErrRateLimited
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return provider.ClassifyStatus(respErr.Response.StatusCode)
	}
	return provider.ClassifyCallError(err)
}
