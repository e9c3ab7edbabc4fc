package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"skincare-backend/internal/bootstrap"
	"skincare-backend/internal/consultations"
	"skincare-backend/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingConsultationID indicates a message without a consultation id.
type ErrMissingConsultationID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingConsultationID) Error() string { return "missing consultation id" }

// ErrProcess indicates processing failed after successful parsing. The
// message should be left for redelivery.
type ErrProcess struct {
	ConsultationID string
	RequestID      string
	Attempt        int
	Err            error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process consultation"
	}
	return "process consultation: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message can never be
// processed and should be deleted rather than redelivered.
func Unrecoverable(err error) bool {
	switch err.(type) {
	case ErrEmptyBody, ErrDecode, ErrMissingConsultationID:
		return true
	}
	return false
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.ConsultationID) == "" {
		return msg, meta, ErrMissingConsultationID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload. A
// delivery that races an attempt already running elsewhere is treated as
// handled; the running attempt schedules any follow-up itself.
func HandleMessage(ctx context.Context, app *bootstrap.App, body string) error {
	if app == nil || app.ConsultationProcessor == nil {
		return errors.New("consultation service not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(msg.ConsultationID) == "" {
		return ErrMissingConsultationID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	ctxWithRequest := consultations.WithRequestID(ctx, msg.RequestID)
	err := app.ConsultationProcessor.ProcessConsultation(ctxWithRequest, msg.ConsultationID, msg.Attempt)
	switch {
	case err == nil, errors.Is(err, consultations.ErrRunInProgress):
		return nil
	default:
		return ErrProcess{ConsultationID: msg.ConsultationID, RequestID: msg.RequestID, Attempt: msg.Attempt, Err: err}
	}
}
