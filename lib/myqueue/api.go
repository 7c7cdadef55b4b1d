package myqueue

import (
	"context"
	"time"
)

type Task struct {
	// UID makes enqueueing idempotent: a second task with the same UID is ignored
	UID            string
	WebhookURLPath string
	Payload        []byte
	ScheduleAfter  time.Duration
}

type QueueName struct {
	ProjectID  string
	LocationID string
	Queue      string
}

var New func(c context.Context, name QueueName) (TaskQueuer, func(), error)

//go:generate mockgen -source=api.go -package myqueue -destination queuer_mock.go TaskQueuer
type TaskQueuer interface {
	Enqueue(c context.Context, task Task) error
}
