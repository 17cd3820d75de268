package sys_manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xpanvictor/hearken/pkg/Logger"
)

// SystemTask is a background job run on a fixed interval.
type SystemTask interface {
	Execute(ctx context.Context) error
	GetName() string
	GetInterval() time.Duration
}

var ErrAlreadyRunning = errors.New("system manager is already running")

// SystemManager runs each registered task on its own ticker until stopped.
type SystemManager struct {
	tasks       []SystemTask
	logger      *Logger.Logger
	taskTimeout time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewSystemManager(logger *Logger.Logger) *SystemManager {
	if logger == nil {
		logger = Logger.Nop()
	}
	return &SystemManager{logger: logger, taskTimeout: 30 * time.Second}
}

// RegisterTask adds a task; tasks registered after Start wait for the next Start.
func (sm *SystemManager) RegisterTask(task SystemTask) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.tasks = append(sm.tasks, task)
	sm.logger.Infof("registered system task %s (every %s)", task.GetName(), task.GetInterval())
}

// Start runs every task once immediately and then on its interval. Tasks
// stop when ctx is cancelled or Stop is called.
func (sm *SystemManager) Start(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.running {
		return ErrAlreadyRunning
	}

	ctx, sm.cancel = context.WithCancel(ctx)
	sm.running = true
	for _, task := range sm.tasks {
		sm.wg.Add(1)
		go sm.runTask(ctx, task)
	}
	sm.logger.Infof("system manager started with %d tasks", len(sm.tasks))
	return nil
}

func (sm *SystemManager) Stop() {
	sm.mu.Lock()
	if !sm.running {
		sm.mu.Unlock()
		return
	}
	sm.cancel()
	sm.running = false
	sm.mu.Unlock()

	sm.wg.Wait()
	sm.logger.Info("system manager stopped")
}

func (sm *SystemManager) IsRunning() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.running
}

func (sm *SystemManager) GetTaskCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.tasks)
}

func (sm *SystemManager) runTask(ctx context.Context, task SystemTask) {
	defer sm.wg.Done()

	ticker := time.NewTicker(task.GetInterval())
	defer ticker.Stop()

	sm.executeTask(ctx, task)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.executeTask(ctx, task)
		}
	}
}

func (sm *SystemManager) executeTask(ctx context.Context, task SystemTask) {
	start := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, sm.taskTimeout)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		sm.logger.Errorf("system task %s failed after %s: %v", task.GetName(), time.Since(start), err)
		return
	}
	sm.logger.Debugf("system task %s completed in %s", task.GetName(), time.Since(start))
}
