package main

import (
	"errors"

	"github.com/codebaseqa/cqa/internal/api"
	"github.com/codebaseqa/cqa/internal/github"
)

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (invalid config file or values)
	ExitNotFound    = 3 // Repository, session or snapshot not found
	ExitRateLimited = 4 // Backend or GitHub rate limit
	ExitNetwork     = 5 // Backend unreachable
	ExitInvalidData = 6 // Malformed backend response or input file
)

// exitCodeFor maps a client error to an exit code.
func exitCodeFor(err error) int {
	switch {
	case api.IsNotFound(err), errors.Is(err, github.ErrRepoNotFound), errors.Is(err, errNoSnapshot):
		return ExitNotFound
	case api.IsRateLimited(err), errors.Is(err, github.ErrRateLimited):
		return ExitRateLimited
	case api.IsNetwork(err), errors.Is(err, github.ErrNetworkError):
		return ExitNetwork
	case errors.Is(err, api.ErrInvalidResponse), errors.Is(err, github.ErrInvalidURL):
		return ExitInvalidData
	default:
		return ExitError
	}
}
