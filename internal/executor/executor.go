// Package executor runs one submitted task to its terminal state: scheduled
// wait, attempt loop with retry/backoff, result recording, notification.
// Errors never cross the task boundary; everything terminal becomes a
// human-readable result message on the task.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TsubakiDev/btr/internal/captcha"
	"github.com/TsubakiDev/btr/internal/notify"
	"github.com/TsubakiDev/btr/internal/observability"
	"github.com/TsubakiDev/btr/internal/registry"
	"github.com/TsubakiDev/btr/internal/task"
	"github.com/TsubakiDev/btr/internal/trade"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Submitter is the slice of the task manager executors need: grab tasks
// submit their result notification as a follow-up task.
type Submitter interface {
	Submit(req task.Request) (string, error)
}

// Options is the retry budget. Whichever of MaxAttempts / Deadline is reached
// first converts a retrying task to failed.
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Deadline    time.Duration
}

type Executor struct {
	entry     *registry.Entry
	trade     trade.Client
	logger    *zap.Logger
	opts      Options
	submitter Submitter
	pushCfg   func() notify.Config
}

func New(entry *registry.Entry, tc trade.Client, logger *zap.Logger, opts Options, sub Submitter, pushCfg func() notify.Config) *Executor {
	if pushCfg == nil {
		pushCfg = func() notify.Config { return notify.Config{} }
	}
	return &Executor{
		entry:     entry,
		trade:     tc,
		logger:    logger,
		opts:      opts,
		submitter: sub,
		pushCfg:   pushCfg,
	}
}

// Run drives the task to a terminal state. ctx is the task's own context,
// cancelled by the manager on a cancel request or process shutdown.
func (e *Executor) Run(ctx context.Context) {
	t := e.entry.Task()
	switch req := t.Request.(type) {
	case *task.GrabRequest:
		e.runGrab(ctx, t.ID, req)
	case *task.NotifyRequest:
		e.runNotify(ctx, t.ID, req)
	default:
		_ = e.entry.SetStatus(task.StatusAttempting)
		e.finish(t.ID, t.Kind, task.StatusFailed, fmt.Sprintf("unknown request type %T", t.Request))
	}
}

func (e *Executor) runGrab(ctx context.Context, id string, req *task.GrabRequest) {
	t := e.entry.Task()

	if t.StartTime != nil {
		if wait := time.Until(*t.StartTime); wait > 0 {
			if err := e.entry.SetStatus(task.StatusWaiting); err != nil {
				e.logger.Error("status update failed", zap.String("task_id", id), zap.Error(err))
				return
			}
			e.logger.Info("waiting for sale open",
				zap.String("task_id", id),
				zap.Time("start_time", *t.StartTime),
			)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				// Cancelled during the wait: no remote call was ever made.
				e.finish(id, task.KindGrab, task.StatusCancelled, "cancelled before sale open")
				return
			case <-timer.C:
			}
		}
	}

	if err := e.entry.SetStatus(task.StatusAttempting); err != nil {
		e.logger.Error("status update failed", zap.String("task_id", id), zap.Error(err))
		return
	}

	deadline := time.Now().Add(e.opts.Deadline)
	var lastErr error

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil || e.entry.CancelRequested() {
			e.finishAndNotify(id, req, task.StatusCancelled, "cancelled by caller")
			return
		}

		e.entry.IncAttempts()
		conf, err := e.attempt(ctx, id, req, attempt)
		if err == nil {
			msg := fmt.Sprintf("order placed: order_id=%s", conf.OrderID)
			if conf.PayURL != "" {
				msg += ", pay within the payment window"
			}
			e.finishAndNotifyURL(id, req, task.StatusSucceeded, msg, conf.PayURL)
			return
		}
		lastErr = err

		if trade.IsPermanent(err) {
			e.finishAndNotify(id, req, task.StatusFailed, err.Error())
			return
		}

		e.logger.Warn("attempt failed, will retry",
			zap.String("task_id", id),
			zap.Int("attempt", attempt),
			zap.String("error", err.Error()),
		)

		if attempt >= e.opts.MaxAttempts {
			e.finishAndNotify(id, req, task.StatusFailed,
				fmt.Sprintf("retry budget exhausted after %d attempts, last error: %s", attempt, lastErr))
			return
		}
		if time.Now().After(deadline) {
			e.finishAndNotify(id, req, task.StatusFailed,
				fmt.Sprintf("deadline exceeded after %d attempts, last error: %s", attempt, lastErr))
			return
		}

		delay := backoffDelay(e.opts.BackoffBase, e.opts.BackoffMax, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.finishAndNotify(id, req, task.StatusCancelled, "cancelled by caller")
			return
		case <-timer.C:
		}
	}
}

// attempt runs one prepare→confirm round trip. The remote calls deliberately
// run on a context detached from task cancellation: an in-flight call is
// allowed to complete so the remote side is never left ambiguous. The trade
// client's own timeout bounds each call.
func (e *Executor) attempt(ctx context.Context, id string, req *task.GrabRequest, attempt int) (*trade.Confirmation, error) {
	tr := otel.Tracer("btr/executor")
	spanCtx, span := tr.Start(context.WithoutCancel(ctx), "btr.grab_attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", id),
		attribute.Int("task.attempt", attempt),
		attribute.String("grab.project_id", req.ProjectID),
	)

	start := time.Now()
	conf, err := e.attemptOnce(spanCtx, req)
	outcome := "success"
	if err != nil {
		outcome = "transient"
		if trade.IsPermanent(err) {
			outcome = "permanent"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	observability.GrabAttemptsTotal.WithLabelValues(outcome).Inc()
	observability.AttemptDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return conf, err
}

func (e *Executor) attemptOnce(ctx context.Context, req *task.GrabRequest) (*trade.Confirmation, error) {
	order := buildOrder(req)

	prep, err := e.trade.Prepare(ctx, req.Session, order, nil)
	if rc, ok := trade.AsRiskChallenge(err); ok {
		tok, solveErr := e.solve(ctx, req, rc.Challenge)
		if solveErr != nil {
			return nil, fmt.Errorf("captcha resolution failed: %w", solveErr)
		}
		prep, err = e.trade.Prepare(ctx, req.Session, order, &tok)
	}
	if errors.Is(err, trade.ErrStaleSession) {
		if refreshErr := req.Session.Refresh(ctx); refreshErr != nil {
			return nil, fmt.Errorf("session refresh failed: %w", refreshErr)
		}
		return nil, trade.ErrStaleSession
	}
	if err != nil {
		return nil, err
	}

	if prep.Prompt != "" && !matchesSkipWord(prep.Prompt, req.SkipWords) {
		return nil, fmt.Errorf("unhandled confirmation prompt: %s", prep.Prompt)
	}

	// Confirmation is the irrevocable side effect: refuse cancellation while
	// it is in flight, and permanently once it went through.
	e.entry.SetCommitted(true)
	conf, err := e.trade.Confirm(ctx, req.Session, order, prep)
	if err != nil {
		e.entry.SetCommitted(false)
		return nil, err
	}
	return conf, nil
}

func (e *Executor) solve(ctx context.Context, req *task.GrabRequest, c captcha.Challenge) (captcha.Token, error) {
	if c.Prompt != "" && matchesSkipWord(c.Prompt, req.SkipWords) {
		// Prompt the user opted to skip: dismiss with an empty token.
		return captcha.Token{}, nil
	}
	resolver := req.Captcha
	if resolver == nil {
		resolver = captcha.Unattended()
	}
	return resolver.Solve(ctx, c)
}

func buildOrder(req *task.GrabRequest) trade.Order {
	o := trade.Order{
		ProjectID: req.ProjectID,
		ScreenID:  req.ScreenID,
		TicketID:  req.TicketID,
		Count:     req.Count,
	}
	for _, b := range req.Buyers {
		o.BuyerIDs = append(o.BuyerIDs, b.ID)
	}
	o.Contact.Name = req.Contact.Name
	o.Contact.Tel = req.Contact.Tel
	return o
}

func matchesSkipWord(prompt string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(prompt, w) {
			return true
		}
	}
	return false
}

func (e *Executor) runNotify(ctx context.Context, id string, req *task.NotifyRequest) {
	if err := e.entry.SetStatus(task.StatusAttempting); err != nil {
		e.logger.Error("status update failed", zap.String("task_id", id), zap.Error(err))
		return
	}

	msg := notify.Message{Title: req.Title, Body: req.Message, JumpURL: req.JumpURL}
	ok, summary := notify.Dispatch(ctx, msg, req.Config)

	outcome := "success"
	status := task.StatusSucceeded
	if !ok {
		outcome = "failure"
		status = task.StatusFailed
	}
	observability.NotifySendsTotal.WithLabelValues(outcome).Inc()
	e.finish(id, task.KindNotify, status, summary)
}

// finishAndNotify records the terminal state, then unconditionally attempts
// to notify unless notifications are globally disabled. Notification errors
// never become the grab task's own failure.
func (e *Executor) finishAndNotify(id string, req *task.GrabRequest, status task.Status, result string) {
	e.finishAndNotifyURL(id, req, status, result, "")
}

func (e *Executor) finishAndNotifyURL(id string, req *task.GrabRequest, status task.Status, result string, jumpURL string) {
	e.finish(id, task.KindGrab, status, result)

	if status == task.StatusCancelled || e.submitter == nil {
		return
	}
	cfg := e.pushCfg()
	if !cfg.Enabled || cfg.Empty() {
		return
	}

	title := "Ticket grab failed"
	if status == task.StatusSucceeded {
		title = "Ticket grab succeeded"
	}
	body := fmt.Sprintf("project %s screen %s ticket %s x%d: %s",
		req.ProjectID, req.ScreenID, req.TicketID, req.Count, result)

	if _, err := e.submitter.Submit(&task.NotifyRequest{
		Title:   title,
		Message: body,
		JumpURL: jumpURL,
		Config:  cfg,
	}); err != nil {
		e.logger.Error("submit result notification failed",
			zap.String("task_id", id),
			zap.Error(err),
		)
	}
}

func (e *Executor) finish(id string, kind task.Kind, status task.Status, result string) {
	if err := e.entry.Finish(status, result); err != nil {
		e.logger.Error("finish failed", zap.String("task_id", id), zap.Error(err))
		return
	}
	observability.TasksFinishedTotal.WithLabelValues(string(kind), string(status)).Inc()

	field := e.logger.Info
	if status == task.StatusFailed {
		field = e.logger.Warn
	}
	field("task finished",
		zap.String("task_id", id),
		zap.String("kind", string(kind)),
		zap.String("status", string(status)),
		zap.String("result", result),
	)
}
