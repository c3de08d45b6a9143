package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v62/github"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

// classify wraps a go-github error in exactly one domain error.
func classify(msg string, err error) error {
	if errors.Is(err, errRetrySuppressed) {
		return fmt.Errorf("%w: %s: %w", domain.ErrRateLimited, msg, err)
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %s: %w", domain.ErrRateLimited, msg, err)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %s: %w", domain.ErrRateLimited, msg, err)
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return fmt.Errorf("%w: %s: %w", sentinelForStatus(errResp.Response.StatusCode), msg, err)
	}

	return fmt.Errorf("%w: %s: %w", domain.ErrUpstream, msg, err)
}

// classifyGraphQL maps GraphQL client errors, which only carry the status and
// upstream message as text.
func classifyGraphQL(msg string, err error) error {
	text := err.Error()
	lower := strings.ToLower(text)

	sentinel := domain.ErrUpstream
	switch {
	case errors.Is(err, errRetrySuppressed):
		sentinel = domain.ErrRateLimited
	case strings.Contains(text, "401 Unauthorized"):
		sentinel = domain.ErrAuthentication
	case strings.Contains(text, "Could not resolve to a Repository"), strings.Contains(text, "404 Not Found"):
		sentinel = domain.ErrNotFound
	case strings.Contains(lower, "rate limit"), strings.Contains(text, "429 Too Many Requests"):
		sentinel = domain.ErrRateLimited
	}
	return fmt.Errorf("%w: %s: %w", sentinel, msg, err)
}

func sentinelForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return domain.ErrAuthentication
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return domain.ErrUpstream
	}
}
