package domain

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrAuthentication = errors.New("authentication failed")
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrUpstream       = errors.New("upstream request failed")
	ErrSummarization  = errors.New("summarization failed")
)
