// Package queue hands acknowledged webhook payloads to background workers, either
// in-process or through RabbitMQ.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("queue full")
	ErrClosed    = errors.New("queue closed")
)

// Job is one raw webhook payload waiting to be processed.
type Job struct {
	ID         string
	Payload    []byte
	ReceivedAt time.Time
}

func NewJob(payload []byte) Job {
	return Job{ID: uuid.NewString(), Payload: payload, ReceivedAt: time.Now().UTC()}
}

type Handler func(ctx context.Context, job Job) error

// Queue accepts payloads without blocking the caller on processing.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	// Close stops accepting work and waits for in-flight jobs until ctx expires.
	Close(ctx context.Context) error
}
