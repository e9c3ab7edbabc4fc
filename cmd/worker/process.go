package main

import (
	"context"
	"errors"
	"strings"

	"skincare-backend/internal/bootstrap"
	"skincare-backend/internal/shared/metrics"
	"skincare-backend/internal/shared/telemetry"
	"skincare-backend/internal/workerproc"
)

// jobRef identifies a delivery in logs.
type jobRef struct {
	source  string
	id      string
	receive int
}

func (r jobRef) fields(consultationID, requestID string) map[string]any {
	fields := map[string]any{
		"consultation_id": consultationID,
		r.source:          r.id,
	}
	if r.receive > 0 {
		fields["receive_count"] = r.receive
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// processBody runs one delivery and reports whether it should be removed
// from the queue.
func processBody(ctx context.Context, app *bootstrap.App, ref jobRef, body string) bool {
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := ref.fields("", "")
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		var missing workerproc.ErrMissingConsultationID
		switch {
		case errors.As(err, &missing):
			if missing.RequestID != "" {
				fields["request_id"] = missing.RequestID
			}
			telemetry.Error("worker.consultation.missing_id", fields)
		default:
			fields["error"] = err.Error()
			telemetry.Error("worker.consultation.decode_failed", fields)
		}
		metrics.IncJobsDeletedUnrecoverable()
		return workerproc.Unrecoverable(err)
	}

	fields := ref.fields(decoded.ConsultationID, decoded.RequestID)
	fields["attempt"] = decoded.Attempt
	if len(decoded.Failures) > 0 {
		fields["failures"] = decoded.Failures
	}
	telemetry.Info("worker.consultation.received", fields)

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, app, body); err != nil {
		failed := ref.fields(decoded.ConsultationID, decoded.RequestID)
		failed["attempt"] = decoded.Attempt
		failed["error"] = err.Error()
		telemetry.Error("worker.consultation.failed", failed)
		metrics.IncJobsFailed()
		return false
	}

	telemetry.Info("worker.consultation.completed", fields)
	metrics.IncJobsCompleted()
	return true
}
