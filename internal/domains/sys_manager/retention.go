package sys_manager

import (
	"context"
	"fmt"
	"time"

	"github.com/xpanvictor/hearken/pkg/Logger"
)

// Pruner deletes records older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionTask drops stored transcripts older than the retention window.
type RetentionTask struct {
	pruner    Pruner
	retention time.Duration
	interval  time.Duration
	logger    *Logger.Logger
	now       func() time.Time
}

func NewRetentionTask(pruner Pruner, retention, interval time.Duration, logger *Logger.Logger) *RetentionTask {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = Logger.Nop()
	}
	return &RetentionTask{pruner: pruner, retention: retention, interval: interval, logger: logger, now: time.Now}
}

func (t *RetentionTask) Execute(ctx context.Context) error {
	if t.retention <= 0 {
		return nil
	}
	n, err := t.pruner.PruneBefore(ctx, t.now().Add(-t.retention))
	if err != nil {
		return fmt.Errorf("pruning transcripts: %w", err)
	}
	if n > 0 {
		t.logger.Infof("pruned %d transcripts older than %s", n, t.retention)
	}
	return nil
}

func (t *RetentionTask) GetName() string            { return "TranscriptRetention" }
func (t *RetentionTask) GetInterval() time.Duration { return t.interval }
