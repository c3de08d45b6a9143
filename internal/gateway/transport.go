package gateway

import (
	"context"
	"errors"
	"net/http"
)

// errRetrySuppressed is returned when the rate-limit waiter tries to resend a request.
var errRetrySuppressed = errors.New("retry of rate-limited request suppressed")

type attemptsKey struct{}

// singleAttempt sits above the rate-limit waiter and gives every request its own attempt counter.
type singleAttempt struct {
	next http.RoundTripper
}

func (t singleAttempt) RoundTrip(req *http.Request) (*http.Response, error) {
	attempts := 0
	ctx := context.WithValue(req.Context(), attemptsKey{}, &attempts)
	return t.next.RoundTrip(req.WithContext(ctx))
}

// attemptLimit sits below the waiter and lets each marked request reach GitHub once.
type attemptLimit struct {
	base http.RoundTripper
}

func (t attemptLimit) RoundTrip(req *http.Request) (*http.Response, error) {
	if attempts, ok := req.Context().Value(attemptsKey{}).(*int); ok {
		*attempts++
		if *attempts > 1 {
			if req.Body != nil {
				req.Body.Close()
			}
			return nil, errRetrySuppressed
		}
	}
	return t.base.RoundTrip(req)
}
