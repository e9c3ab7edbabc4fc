package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the current payload version.
const MessageVersion = 1

// Message asks a worker to run one attempt of a consultation.
type Message struct {
	ConsultationID string         `json:"consultationId"`
	RequestID      string         `json:"requestId"`
	Attempt        int            `json:"attempt"`
	// Failures snapshots the per-class failure counts that led to this
	// attempt. The stored consultation stays authoritative.
	Failures       map[string]int `json:"failures,omitempty"`
	EnqueuedAt     string         `json:"enqueuedAt"`
	Version        int            `json:"version"`
}

// NewMessage builds a message stamped with the current time.
func NewMessage(consultationID, requestID string, attempt int) Message {
	return Message{
		ConsultationID: consultationID,
		RequestID:      requestID,
		Attempt:        attempt,
		EnqueuedAt:     time.Now().UTC().Format(time.RFC3339),
		Version:        MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message. Payloads written
// before attempts were tracked decode as the first attempt.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Attempt <= 0 {
		msg.Attempt = 1
	}
	return msg, nil
}
