package service

import (
	"context"
	"time"
)

const (
	EventTaskStatus = "task.status"
	EventJobStatus  = "job.status"
)

type Event struct {
	Type   string    `json:"type"`
	ID     string    `json:"id"`
	TaskID string    `json:"taskId,omitempty"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Publisher delivers status events. Delivery is best effort and never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func appendLog(logs, text string) string {
	if logs == "" {
		return text
	}
	return logs + "\n" + text
}
