package main

import (
	"context"
	"errors"
	"time"

	"skincare-backend/internal/bootstrap"
	"skincare-backend/internal/queue"
	"skincare-backend/internal/shared/metrics"
	"skincare-backend/internal/shared/telemetry"
)

const (
	lmstfyConsumeTimeout = 10 * time.Second
	lmstfyErrorBackoff   = 2 * time.Second
)

type lmstfyAPI interface {
	Consume(ctx context.Context, timeout, ttr time.Duration) (*queue.Job, error)
	Ack(ctx context.Context, jobID string) error
}

func pollLmstfy(ctx context.Context, app *bootstrap.App, client lmstfyAPI, ttr time.Duration, p *pool) {
	for ctx.Err() == nil {
		job, err := client.Consume(ctx, lmstfyConsumeTimeout, ttr)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			telemetry.Error("worker.lmstfy.consume_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(lmstfyErrorBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}
		metrics.IncJobsReceived()
		j := job
		if !p.submit(ctx, func() { handleLmstfyJob(ctx, app, client, j) }) {
			return
		}
	}
}

// handleLmstfyJob acks handled or unrecoverable jobs. Unacked jobs are
// redelivered once their ttr lapses.
func handleLmstfyJob(ctx context.Context, app *bootstrap.App, client lmstfyAPI, job *queue.Job) {
	done := metrics.TrackJobInFlight()
	defer done()

	ref := jobRef{source: "lmstfy_job_id", id: job.ID}
	if !processBody(ctx, app, ref, string(job.Body)) {
		return
	}
	if err := client.Ack(ctx, job.ID); err != nil {
		fields := ref.fields("", "")
		fields["error"] = err.Error()
		telemetry.Error("worker.consultation.delete_failed", fields)
	}
}
