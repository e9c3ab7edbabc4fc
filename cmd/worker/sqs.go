package main

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"skincare-backend/internal/bootstrap"
	"skincare-backend/internal/shared/metrics"
	"skincare-backend/internal/shared/telemetry"
)

const defaultSQSRegion = "us-east-1"

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func newSQSAPI(ctx context.Context, region string) (sqsAPI, error) {
	if strings.TrimSpace(region) == "" {
		region = defaultSQSRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(awsCfg), nil
}

func pollSQS(ctx context.Context, app *bootstrap.App, client sqsAPI, queueURL string, visibility time.Duration, p *pool) {
	for ctx.Err() == nil {
		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibility / time.Second),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			telemetry.Error("worker.sqs.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			metrics.IncJobsReceived()
			m := msg
			if !p.submit(ctx, func() { handleSQSMessage(ctx, app, client, queueURL, m) }) {
				return
			}
		}
	}
}

// handleSQSMessage deletes the message when it was handled or can never be
// handled. Other failures leave it for redelivery after the visibility timeout.
func handleSQSMessage(ctx context.Context, app *bootstrap.App, client sqsAPI, queueURL string, msg sqstypes.Message) {
	done := metrics.TrackJobInFlight()
	defer done()

	ref := jobRef{
		source:  "sqs_message_id",
		id:      aws.ToString(msg.MessageId),
		receive: receiveCount(msg),
	}
	if processBody(ctx, app, ref, aws.ToString(msg.Body)) {
		deleteSQSMessage(ctx, client, queueURL, msg, ref)
	}
}

func deleteSQSMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, ref jobRef) {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := ref.fields("", "")
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.consultation.delete_failed", fields)
		return
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := ref.fields("", "")
		fields["error"] = err.Error()
		telemetry.Error("worker.consultation.delete_failed", fields)
	}
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}
