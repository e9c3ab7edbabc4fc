package consultations

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRedisNotifierPublishesStatusEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, client := newRedis(t)

	sub := client.Subscribe(ctx, DefaultStatusChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notifier := NewRedisNotifier(client, "")
	require.NoError(t, notifier.Publish(ctx, StatusEvent{
		ConsultationID: "c-1",
		Status:         StatusFailed,
		ErrorMessage:   "Vision analysis failed: timeout",
	}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultStatusChannel, msg.Channel)

	var evt StatusEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &evt))
	require.Equal(t, "c-1", evt.ConsultationID)
	require.Equal(t, StatusFailed, evt.Status)
	require.Equal(t, "Vision analysis failed: timeout", evt.ErrorMessage)
	require.NotEmpty(t, evt.Timestamp)
}
