package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"skincare-backend/internal/bootstrap"
	"skincare-backend/internal/queue"
	"skincare-backend/internal/shared/config"
	"skincare-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	p := &pool{sem: make(chan struct{}, max(1, cfg.WorkerConcurrency))}

	switch cfg.QueueBackend {
	case "sqs":
		client, err := newSQSAPI(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("load aws config: %v", err)
		}
		log.Printf("worker started backend=sqs queue=%s concurrency=%d visibility=%s",
			cfg.SQSQueueURL, cfg.WorkerConcurrency, cfg.WorkerVisibilityTimeout)
		pollSQS(ctx, app, client, cfg.SQSQueueURL, cfg.WorkerVisibilityTimeout, p)
	case "lmstfy":
		client, ok := app.Queue.(*queue.LmstfyClient)
		if !ok {
			log.Fatal("lmstfy queue client not configured")
		}
		log.Printf("worker started backend=lmstfy queue=%s concurrency=%d ttr=%s",
			client.Queue(), cfg.WorkerConcurrency, cfg.WorkerVisibilityTimeout)
		pollLmstfy(ctx, app, client, cfg.WorkerVisibilityTimeout, p)
	default:
		log.Fatal("QUEUE_BACKEND must be sqs or lmstfy to run the worker")
	}

	p.drain(cfg.WorkerShutdownTimeout)
}

// pool bounds concurrent jobs and tracks them for shutdown.
type pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// submit blocks for a free slot. It reports false if ctx ends first.
func (p *pool) submit(ctx context.Context, job func()) bool {
	select {
	case <-ctx.Done():
		return false
	case p.sem <- struct{}{}:
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		job()
	}()
	return true
}

func (p *pool) drain(timeout time.Duration) {
	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", timeout)
	waitDone := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(timeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}
