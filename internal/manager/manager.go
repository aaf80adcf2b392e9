// Package manager is the thin synchronized facade in front of the registry
// and the executors: it validates, allocates identifiers, spawns the per-task
// executor and answers status/cancel queries. It never blocks the caller
// beyond validation.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TsubakiDev/btr/internal/executor"
	"github.com/TsubakiDev/btr/internal/notify"
	"github.com/TsubakiDev/btr/internal/observability"
	"github.com/TsubakiDev/btr/internal/registry"
	"github.com/TsubakiDev/btr/internal/task"
	"github.com/TsubakiDev/btr/internal/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager is the submission contract. Callers depend on this interface so a
// fake can stand in for tests.
type Manager interface {
	Submit(req task.Request) (string, error)
	Status(id string) (task.Snapshot, bool)
	Cancel(id string) error
	List() []task.Snapshot
}

type TaskManager struct {
	baseCtx context.Context
	reg     *registry.Registry
	trade   trade.Client
	logger  *zap.Logger
	opts    executor.Options

	pushMu  sync.RWMutex
	pushCfg notify.Config

	wg sync.WaitGroup
}

var _ Manager = (*TaskManager)(nil)

// New builds a manager. baseCtx is the process-lifetime context; shutting it
// down cancels every running executor.
func New(baseCtx context.Context, reg *registry.Registry, tc trade.Client, logger *zap.Logger, opts executor.Options) *TaskManager {
	return &TaskManager{
		baseCtx: baseCtx,
		reg:     reg,
		trade:   tc,
		logger:  logger,
		opts:    opts,
	}
}

// SetPushConfig installs a fresh notification config value. Requests already
// holding a snapshot are unaffected.
func (m *TaskManager) SetPushConfig(cfg notify.Config) {
	m.pushMu.Lock()
	m.pushCfg = cfg
	m.pushMu.Unlock()
}

func (m *TaskManager) PushConfig() notify.Config {
	m.pushMu.RLock()
	defer m.pushMu.RUnlock()
	return m.pushCfg
}

// Submit validates the request, allocates an identifier, inserts a pending
// entry and hands it to a new executor. A NotifyRequest whose configuration
// is disabled or empty is a silent no-op: success with an empty identifier,
// zero network calls.
func (m *TaskManager) Submit(req task.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if nr, ok := req.(*task.NotifyRequest); ok {
		if !nr.Config.Enabled || nr.Config.Empty() {
			return "", nil
		}
	}

	id := uuid.NewString()
	now := time.Now()
	t := &task.Task{
		ID:        id,
		Kind:      req.Kind(),
		Request:   req,
		Status:    task.StatusPending,
		CreatedAt: now,
	}
	if gr, ok := req.(*task.GrabRequest); ok {
		t.StartTime = gr.StartTime
	}

	taskCtx, cancel := context.WithCancel(m.baseCtx)
	entry, err := m.reg.Insert(t, cancel)
	if err != nil {
		cancel()
		return "", fmt.Errorf("submit task: %w", err)
	}

	observability.TasksSubmittedTotal.WithLabelValues(string(req.Kind())).Inc()
	m.logger.Info("task submitted",
		zap.String("task_id", id),
		zap.String("kind", string(req.Kind())),
	)

	ex := executor.New(entry, m.trade, m.logger, m.opts, m, m.PushConfig)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ex.Run(taskCtx)
	}()
	return id, nil
}

// Status never blocks; it reads current registry state.
func (m *TaskManager) Status(id string) (task.Snapshot, bool) {
	return m.reg.Snapshot(id)
}

func (m *TaskManager) List() []task.Snapshot {
	return m.reg.List()
}

// Cancel signals cooperative cancellation. Past the point of an irrevocable
// remote side effect it returns registry.ErrTooLate and the task finishes
// naturally.
func (m *TaskManager) Cancel(id string) error {
	err := m.reg.Cancel(id)
	if err == nil {
		m.logger.Info("task cancellation requested", zap.String("task_id", id))
	}
	return err
}

// RunSweeper evicts observed terminal tasks past their retention window until
// ctx is done.
func (m *TaskManager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.reg.Sweep(time.Now()); n > 0 {
				m.logger.Debug("registry swept", zap.Int("evicted", n))
			}
		}
	}
}

// Wait blocks until every spawned executor has returned. Shutdown helper.
func (m *TaskManager) Wait() {
	m.wg.Wait()
}
