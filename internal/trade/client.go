// Package trade is the boundary to the remote ticket service. The executor
// drives the prepare→confirm workflow through the Client interface; the HTTP
// implementation maps remote error codes onto the package's error taxonomy.
package trade

import (
	"context"
	"time"

	"github.com/TsubakiDev/btr/internal/captcha"
	"github.com/TsubakiDev/btr/internal/session"
)

// Order identifies what to buy and for whom.
type Order struct {
	ProjectID string
	ScreenID  string
	TicketID  string
	Count     int
	BuyerIDs  []int64
	Contact   struct {
		Name string
		Tel  string
	}
}

// PrepareResult is the short-lived order token handed out by the remote
// service before confirmation. Prompt, when non-empty, is a disambiguation
// dialog the buyer would normally have to dismiss.
type PrepareResult struct {
	Token     string
	Prompt    string
	ExpiresAt time.Time
}

// Confirmation is the remote acknowledgement that the order was placed.
type Confirmation struct {
	OrderID   string
	PayURL    string
	CreatedAt time.Time
}

// Client executes the purchase workflow against the remote service using the
// shared session's current credentials.
type Client interface {
	// Prepare reserves an order token. May fail with a RiskChallengeError,
	// in which case the attempt solves the challenge and calls Prepare again
	// with the token.
	Prepare(ctx context.Context, s *session.Handle, o Order, tok *captcha.Token) (*PrepareResult, error)

	// Confirm places the order. Success is irrevocable from the
	// orchestrator's point of view.
	Confirm(ctx context.Context, s *session.Handle, o Order, p *PrepareResult) (*Confirmation, error)
}
