// Package session holds the shared authenticated identity used for remote
// purchase calls. One Handle per account, referenced (never owned) by every
// task submitted for that account.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNoRefresher is returned when a stale session cannot be renewed.
var ErrNoRefresher = errors.New("session: no refresher configured")

// Credentials is the read-mostly network identity: cookie jar contents plus
// the request fingerprint that has to stay consistent with them.
type Credentials struct {
	Cookie    string
	UserAgent string
	CSRF      string
}

// Refresher renews credentials. The acquisition mechanics (QR login, cookie
// import, ...) are external collaborators.
type Refresher interface {
	Refresh(ctx context.Context, old Credentials) (Credentials, error)
}

// Handle is the shared mutable session for one account. Reads are cheap and
// concurrent; refresh is deduplicated so concurrent tasks observing a stale
// session block on a single in-flight renewal, not on each other.
type Handle struct {
	UID int64

	mu    sync.RWMutex
	creds Credentials

	refresher Refresher
	group     singleflight.Group
}

func NewHandle(uid int64, creds Credentials, r Refresher) *Handle {
	return &Handle{UID: uid, creds: creds, refresher: r}
}

// Credentials returns the current credential snapshot.
func (h *Handle) Credentials() Credentials {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.creds
}

// Apply stamps the current credentials onto an outgoing request.
func (h *Handle) Apply(req *http.Request) {
	c := h.Credentials()
	if c.Cookie != "" {
		req.Header.Set("Cookie", c.Cookie)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
}

// Refresh renews the credentials. Concurrent callers share one renewal.
func (h *Handle) Refresh(ctx context.Context) error {
	_, err, _ := h.group.Do("refresh", func() (any, error) {
		if h.refresher == nil {
			return nil, ErrNoRefresher
		}
		old := h.Credentials()
		fresh, err := h.refresher.Refresh(ctx, old)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.creds = fresh
		h.mu.Unlock()
		return nil, nil
	})
	return err
}
