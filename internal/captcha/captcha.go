// Package captcha defines the pluggable challenge-resolution boundary. The
// orchestrator only invokes a Resolver; concrete solving lives elsewhere.
package captcha

import (
	"context"
	"errors"
)

// ErrUnattended is returned when no interactive or automated solver is wired.
var ErrUnattended = errors.New("captcha: no resolver available")

// Challenge is a risk-control challenge presented by the remote service.
type Challenge struct {
	GT          string `json:"gt"`
	ChallengeID string `json:"challenge"`
	Prompt      string `json:"prompt,omitempty"`
}

// Token is the validation proof produced by a solved challenge.
type Token struct {
	Validate string `json:"validate"`
	Seccode  string `json:"seccode"`
}

// Resolver solves a challenge synchronously within a purchase attempt. A
// failed or timed-out Solve counts as a transient failure for retry purposes.
type Resolver interface {
	Solve(ctx context.Context, c Challenge) (Token, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, c Challenge) (Token, error)

func (f ResolverFunc) Solve(ctx context.Context, c Challenge) (Token, error) {
	return f(ctx, c)
}

// Unattended always fails; headless runs burn retry budget instead of hanging
// on a challenge nobody can answer.
func Unattended() Resolver {
	return ResolverFunc(func(ctx context.Context, c Challenge) (Token, error) {
		return Token{}, ErrUnattended
	})
}
