package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ChannelTimeout bounds every individual channel send.
const ChannelTimeout = 20 * time.Second

// Message is the payload delivered to every channel.
type Message struct {
	Title   string
	Body    string
	JumpURL string
}

// Channel is one independently configured transport. Adding a channel means
// adding one table entry plus one Send implementation.
type Channel interface {
	Name() string
	Configured(cfg Config) bool
	Send(ctx context.Context, msg Message, cfg Config) error
}

var channels = []Channel{
	barkChannel{},
	pushPlusChannel{},
	serverChanChannel{},
	dingTalkChannel{},
	weComChannel{},
	gotifyChannel{},
	smtpChannel{},
}

// Dispatch sends msg through every configured channel concurrently. One
// channel's failure never prevents the others from being attempted; all sends
// complete (or time out) before Dispatch returns. The bool is true iff at
// least one channel succeeded.
func Dispatch(ctx context.Context, msg Message, cfg Config) (bool, string) {
	configured := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Configured(cfg) {
			configured = append(configured, ch)
		}
	}
	if len(configured) == 0 {
		return false, "no channels configured"
	}

	var (
		mu       sync.Mutex
		failures []string
	)

	g, ctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for _, ch := range configured {
		ch := ch
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, ChannelTimeout)
			defer cancel()
			if err := ch.Send(sendCtx, msg, cfg); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %s", ch.Name(), err))
				mu.Unlock()
			}
			return nil // failures are collected, never short-circuited
		})
	}
	_ = g.Wait()

	succeeded := len(configured) - len(failures)
	if succeeded == 0 {
		sort.Strings(failures)
		return false, fmt.Sprintf("0 succeeded / %d failed: %s", len(failures), strings.Join(failures, "; "))
	}
	if len(failures) > 0 {
		sort.Strings(failures)
		return true, fmt.Sprintf("%d succeeded / %d failed: %s", succeeded, len(failures), strings.Join(failures, "; "))
	}
	return true, fmt.Sprintf("all %d channels succeeded", succeeded)
}
