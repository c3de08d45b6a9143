package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// HostingDomain is the only host accepted in repository URLs.
const HostingDomain = "github.com"

// RepositoryRef identifies a repository by owner and name.
type RepositoryRef struct {
	Owner string
	Name  string
}

// NewRepositoryRef validates an owner/name pair that is already split.
func NewRepositoryRef(owner, name string) (RepositoryRef, error) {
	if owner == "" || name == "" {
		return RepositoryRef{}, fmt.Errorf("%w: owner and repo are required", ErrInvalidInput)
	}
	if strings.Contains(owner, "/") || strings.Contains(name, "/") {
		return RepositoryRef{}, fmt.Errorf("%w: owner and repo must not contain '/'", ErrInvalidInput)
	}
	return RepositoryRef{Owner: owner, Name: name}, nil
}

// ParseRepositoryRef accepts "owner/repo" or a github.com URL such as
// https://github.com/owner/repo/issues and returns the owner/repo pair.
func ParseRepositoryRef(s string) (RepositoryRef, error) {
	s = strings.TrimSpace(s)

	if strings.Contains(s, "://") {
		return parseRepositoryURL(s)
	}

	if strings.Count(s, "/") == 1 {
		owner, name, _ := strings.Cut(s, "/")
		return NewRepositoryRef(owner, name)
	}

	return RepositoryRef{}, fmt.Errorf("%w: %q is not in owner/repo form", ErrInvalidInput, s)
}

func parseRepositoryURL(s string) (RepositoryRef, error) {
	u, err := url.Parse(s)
	if err != nil {
		return RepositoryRef{}, fmt.Errorf("%w: malformed URL %q: %w", ErrInvalidInput, s, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != HostingDomain {
		return RepositoryRef{}, fmt.Errorf("%w: only %s URLs are supported, got %q", ErrInvalidInput, HostingDomain, u.Host)
	}

	var segments []string
	for _, part := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}
	if len(segments) < 2 {
		return RepositoryRef{}, fmt.Errorf("%w: URL %q does not name a repository", ErrInvalidInput, s)
	}

	return NewRepositoryRef(segments[0], strings.TrimSuffix(segments[1], ".git"))
}

// FullName returns "owner/repo".
func (r RepositoryRef) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r RepositoryRef) String() string {
	return r.FullName()
}

// IssueState filters issue and pull request listings.
type IssueState string

const (
	StateOpen   IssueState = "open"
	StateClosed IssueState = "closed"
	StateAll    IssueState = "all"
)

// ParseIssueState maps a query value to an IssueState. The empty string means open.
func ParseIssueState(s string) (IssueState, error) {
	switch IssueState(strings.ToLower(strings.TrimSpace(s))) {
	case "", StateOpen:
		return StateOpen, nil
	case StateClosed:
		return StateClosed, nil
	case StateAll:
		return StateAll, nil
	default:
		return "", fmt.Errorf("%w: state must be one of open, closed, all; got %q", ErrInvalidInput, s)
	}
}
