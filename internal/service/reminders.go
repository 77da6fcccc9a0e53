package service

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/model"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
)

// ReminderStore is the subset of the task store used by DueReminderService.
type ReminderStore interface {
	DueTasks(ctx context.Context, now time.Time, window time.Duration, limit int) ([]model.Task, error)
	MarkDueReminderSent(ctx context.Context, taskID string, at time.Time) (bool, error)
	CreateNotification(ctx context.Context, req registrystore.CreateNotificationRequest) (*model.Notification, error)
}

// DueReminderService notifies assignees of tasks that fall due within a window.
// Each task is reminded at most once.
type DueReminderService struct {
	store     ReminderStore
	window    time.Duration
	batchSize int
	now       func() time.Time
}

// NewDueReminderService creates a reminder service.
func NewDueReminderService(store ReminderStore, window time.Duration) *DueReminderService {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &DueReminderService{store: store, window: window, batchSize: 200, now: time.Now}
}

// Job returns the scheduler job for this service.
func (r *DueReminderService) Job(schedule string) Job {
	return Job{Name: "due-reminders", Schedule: schedule, Run: func(ctx context.Context) error {
		_, err := r.RunOnce(ctx)
		return err
	}}
}

// RunOnce sends reminders for every currently due task and returns how many
// tasks were reminded.
func (r *DueReminderService) RunOnce(ctx context.Context) (int, error) {
	now := r.now()
	reminded := 0
	for {
		tasks, err := r.store.DueTasks(ctx, now, r.window, r.batchSize)
		if err != nil {
			return reminded, fmt.Errorf("list due tasks: %w", err)
		}
		if len(tasks) == 0 {
			break
		}
		for _, task := range tasks {
			claimed, err := r.store.MarkDueReminderSent(ctx, task.ID, now)
			if err != nil {
				return reminded, fmt.Errorf("mark reminder for task %s: %w", task.ID, err)
			}
			if !claimed {
				continue
			}
			r.notify(ctx, task)
			reminded++
		}
		if len(tasks) < r.batchSize {
			break
		}
	}
	if reminded > 0 {
		log.Info("Due reminders sent", "tasks", reminded, "window", r.window)
	}
	return reminded, nil
}

func (r *DueReminderService) notify(ctx context.Context, task model.Task) {
	msg := fmt.Sprintf("Task due %s: %s", task.DueDate.Format("Jan 2 15:04"), task.Title)
	for _, userID := range task.AssignedTo {
		_, err := r.store.CreateNotification(ctx, registrystore.CreateNotificationRequest{
			AssignedTo:  []string{userID},
			Message:     msg,
			Type:        model.NotificationTaskDue,
			RelatedTask: task.ID,
			CreatedBy:   task.CreatedBy,
		})
		if err != nil {
			log.Error("Due reminder notification failed", "taskID", task.ID, "userID", userID, "err", err)
		}
	}
}
