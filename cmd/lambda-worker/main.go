package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"skincare-backend/internal/bootstrap"
	"skincare-backend/internal/shared/config"
	"skincare-backend/internal/shared/metrics"
	"skincare-backend/internal/shared/telemetry"
	"skincare-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		if err := handleRecord(ctx, app, record); err != nil {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

// handleRecord returns an error only for records that should be redelivered.
// Unrecoverable payloads are logged and dropped from the batch.
func handleRecord(ctx context.Context, app *bootstrap.App, record events.SQSMessage) error {
	metrics.IncJobsReceived()
	done := metrics.TrackJobInFlight()
	defer done()

	err := workerproc.HandleMessage(ctx, app, record.Body)
	switch {
	case err == nil:
		metrics.IncJobsCompleted()
		return nil
	case workerproc.Unrecoverable(err):
		meta := workerproc.ComputeMeta(record.Body)
		telemetry.Error("worker.consultation.decode_failed", map[string]any{
			"sqs_message_id": record.MessageId,
			"body_len":       meta.BodyLen,
			"body_sha256":    meta.BodySHA,
			"error":          err.Error(),
		})
		metrics.IncJobsDeletedUnrecoverable()
		return nil
	default:
		fields := map[string]any{
			"sqs_message_id": record.MessageId,
			"error":          err.Error(),
		}
		var procErr workerproc.ErrProcess
		if errors.As(err, &procErr) {
			fields["consultation_id"] = procErr.ConsultationID
			fields["request_id"] = procErr.RequestID
			fields["attempt"] = procErr.Attempt
		}
		telemetry.Error("worker.consultation.failed", fields)
		metrics.IncJobsFailed()
		return err
	}
}

func main() {
	lambda.Start(handler)
}
