package trade

import (
	"errors"
	"fmt"

	"github.com/TsubakiDev/btr/internal/captcha"
)

// Transient outcomes: retried under the executor's backoff budget.
var (
	ErrRateLimited  = errors.New("rate limited by remote service")
	ErrStaleSession = errors.New("session stale, refresh required")
	ErrNotOnSale    = errors.New("sale has not opened yet")
)

// Hard outcomes: terminal, no retry.
var (
	ErrSoldOut        = errors.New("ticket sold out")
	ErrBuyerRejected  = errors.New("buyer rejected by remote service")
	ErrSessionInvalid = errors.New("session permanently invalid")
)

// RiskChallengeError reports that the remote service wants a challenge solved
// before the attempt may proceed.
type RiskChallengeError struct {
	Challenge captcha.Challenge
}

func (e *RiskChallengeError) Error() string {
	return fmt.Sprintf("risk control challenge presented: %s", e.Challenge.Prompt)
}

// PermanentError marks an error that must NOT be retried.
type PermanentError struct{ Err error }

func (e PermanentError) Error() string { return e.Err.Error() }
func (e PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe PermanentError
	return errors.As(err, &pe)
}

func AsRiskChallenge(err error) (*RiskChallengeError, bool) {
	var rc *RiskChallengeError
	if errors.As(err, &rc) {
		return rc, true
	}
	return nil, false
}
