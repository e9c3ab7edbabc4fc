package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"skincare-backend/internal/bootstrap"
	"skincare-backend/internal/queue"
)

type stubProcessor struct {
	failFor map[string]error
}

func (s stubProcessor) ProcessConsultation(ctx context.Context, consultationID string, attempt int) error {
	return s.failFor[consultationID]
}

func record(t *testing.T, id, consultationID string) events.SQSMessage {
	t.Helper()
	body, err := queue.EncodeMessage(queue.NewMessage(consultationID, "req", 1))
	require.NoError(t, err)
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestHandleRecordReportsOnlyRetryableFailures(t *testing.T) {
	app := &bootstrap.App{ConsultationProcessor: stubProcessor{failFor: map[string]error{
		"c-bad": errors.New("db down"),
	}}}

	require.NoError(t, handleRecord(context.Background(), app, record(t, "m1", "c-ok")))
	require.Error(t, handleRecord(context.Background(), app, record(t, "m2", "c-bad")))
	require.NoError(t, handleRecord(context.Background(), app, events.SQSMessage{MessageId: "m3", Body: "{bad"}))
}
