package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/TsubakiDev/btr/internal/captcha"
	"github.com/TsubakiDev/btr/internal/notify"
	"github.com/TsubakiDev/btr/internal/session"
)

// ErrInvalidRequest wraps every submission-time validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// IDBind mirrors the remote service's real-name binding modes.
type IDBind int

const (
	BindNone    IDBind = 0 // unverified contact, no buyer records
	BindSingle  IDBind = 1 // one buyer regardless of count
	BindPerSeat IDBind = 2 // one buyer per ticket
)

// Mode selects the purchase strategy.
type Mode string

const (
	ModeDirect Mode = "direct" // buy immediately
	ModeTimed  Mode = "timed"  // wait for the sale-opening instant
	ModeQueue  Mode = "queue"  // keep retrying through the opening rush
)

// Buyer is one verified real-name buyer record.
type Buyer struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	IDType     int    `json:"id_type"`
	PersonalID string `json:"personal_id"`
	Tel        string `json:"tel"`
}

// Contact is the unverified purchaser used for non-real-name sales.
type Contact struct {
	Name string `json:"name"`
	Tel  string `json:"tel"`
}

// Request is the tagged union of submittable work.
type Request interface {
	Kind() Kind
	Validate() error
}

// GrabRequest is a fully-resolved purchase intent.
type GrabRequest struct {
	ProjectID string
	ScreenID  string
	TicketID  string
	Count     int
	IDBind    IDBind
	Buyers    []Buyer
	Contact   Contact
	Mode      Mode
	StartTime *time.Time

	// Session is shared by reference across every task for the same account.
	Session *session.Handle
	Captcha captcha.Resolver

	// SkipWords auto-dismiss disambiguation prompts that contain one of them.
	SkipWords []string
}

func (r *GrabRequest) Kind() Kind { return KindGrab }

func (r *GrabRequest) Validate() error {
	if r.ProjectID == "" || r.ScreenID == "" || r.TicketID == "" {
		return fmt.Errorf("%w: project, screen and ticket ids are required", ErrInvalidRequest)
	}
	if r.Count < 1 || r.Count > 10 {
		return fmt.Errorf("%w: count must be 1..10, got %d", ErrInvalidRequest, r.Count)
	}
	if r.Session == nil {
		return fmt.Errorf("%w: session handle is required", ErrInvalidRequest)
	}
	switch r.IDBind {
	case BindNone:
		if r.Contact.Name == "" || r.Contact.Tel == "" {
			return fmt.Errorf("%w: contact name and tel are required for non-real-name sales", ErrInvalidRequest)
		}
	case BindSingle:
		if len(r.Buyers) != 1 {
			return fmt.Errorf("%w: exactly one buyer is required, got %d", ErrInvalidRequest, len(r.Buyers))
		}
	case BindPerSeat:
		if len(r.Buyers) != r.Count {
			return fmt.Errorf("%w: buyer count %d must equal ticket count %d", ErrInvalidRequest, len(r.Buyers), r.Count)
		}
	default:
		return fmt.Errorf("%w: unknown id_bind mode %d", ErrInvalidRequest, r.IDBind)
	}
	return nil
}

// NotifyRequest fans a message out to the configured channels. Config is a
// value snapshot: a later configuration edit never changes an in-flight send.
type NotifyRequest struct {
	Title   string
	Message string
	JumpURL string
	Config  notify.Config
}

func (r *NotifyRequest) Kind() Kind { return KindNotify }

func (r *NotifyRequest) Validate() error {
	if r.Title == "" && r.Message == "" {
		return fmt.Errorf("%w: notification needs a title or a message", ErrInvalidRequest)
	}
	return nil
}
