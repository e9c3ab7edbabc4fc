package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"
)

const (
	// lmstfy keeps unconsumed jobs for a day.
	lmstfyJobTTLSeconds = 24 * 60 * 60
	lmstfyTries         = 3
	maxLmstfyDelaySecs  = 7 * 24 * 60 * 60
)

// Job is a message pulled from a consumer queue.
type Job struct {
	ID   string
	Body []byte
}

// LmstfyClient publishes and consumes consultation jobs on an lmstfy queue.
type LmstfyClient struct {
	cli   *client.LmstfyClient
	queue string
}

// NewLmstfyClient constructs an lmstfy-backed queue client.
func NewLmstfyClient(host string, port int, namespace, token, queue string) (*LmstfyClient, error) {
	if host == "" || namespace == "" || queue == "" {
		return nil, fmt.Errorf("lmstfy host, namespace and queue are required")
	}
	return &LmstfyClient{
		cli:   client.NewLmstfyClient(host, port, namespace, token),
		queue: queue,
	}, nil
}

// Queue returns the queue name jobs are published to.
func (l *LmstfyClient) Queue() string {
	return l.queue
}

// Send publishes msg, delayed by delay rounded up to whole seconds.
func (l *LmstfyClient) Send(ctx context.Context, msg Message, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode lmstfy message: %w", err)
	}
	secs := uint32(delaySeconds(delay, maxLmstfyDelaySecs))
	if _, err := l.cli.Publish(l.queue, payload, lmstfyJobTTLSeconds, lmstfyTries, secs); err != nil {
		return fmt.Errorf("lmstfy publish failed: %w", err)
	}
	return nil
}

// Consume waits up to timeout for a job. It returns nil when none arrived.
// ttr is how long the job stays reserved before lmstfy redelivers it.
func (l *LmstfyClient) Consume(ctx context.Context, timeout, ttr time.Duration) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	job, err := l.cli.Consume(l.queue, uint32(ttr.Seconds()), uint32(timeout.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("lmstfy consume failed: %w", err)
	}
	if job == nil {
		return nil, nil
	}
	return &Job{ID: job.ID, Body: job.Data}, nil
}

// Ack removes a finished job from the queue.
func (l *LmstfyClient) Ack(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.cli.Ack(l.queue, jobID); err != nil {
		return fmt.Errorf("lmstfy ack failed: %w", err)
	}
	return nil
}

var _ Client = (*LmstfyClient)(nil)
