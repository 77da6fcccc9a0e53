package service

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// TrashPurger permanently deletes trashed tasks older than a cutoff.
type TrashPurger interface {
	PurgeTrash(ctx context.Context, olderThan time.Time) (int64, error)
}

// TrashRetentionService empties trash entries that have outlived the retention period.
type TrashRetentionService struct {
	store     TrashPurger
	retention time.Duration
	now       func() time.Time
}

// NewTrashRetentionService creates a retention service. A zero retention disables it.
func NewTrashRetentionService(store TrashPurger, retention time.Duration) *TrashRetentionService {
	return &TrashRetentionService{store: store, retention: retention, now: time.Now}
}

// Job returns the scheduler job, with an empty schedule when retention is disabled.
func (t *TrashRetentionService) Job(schedule string) Job {
	if t.retention <= 0 {
		schedule = ""
	}
	return Job{Name: "trash-retention", Schedule: schedule, Run: func(ctx context.Context) error {
		_, err := t.RunOnce(ctx)
		return err
	}}
}

// RunOnce purges expired trash and returns the number of deleted tasks.
func (t *TrashRetentionService) RunOnce(ctx context.Context) (int64, error) {
	if t.retention <= 0 {
		return 0, nil
	}
	cutoff := t.now().Add(-t.retention)
	n, err := t.store.PurgeTrash(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge trash: %w", err)
	}
	if n > 0 {
		log.Info("Trash retention purged tasks", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}
