package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventPublisher_PublishImportEvent(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "imports")
	require.NoError(t, err)

	publisher := NewWatermillEventPublisher(pubSub, "imports", nil)
	event := NewImportFinishedEvent(ImportFinishedEvent{
		SessionID:  "session-1",
		Owner:      "planner-7",
		TableType:  "jobs",
		Status:     "aborted",
		TotalRows:  50,
		Processed:  10,
		Successful: 10,
	})
	require.NoError(t, publisher.PublishImportEvent(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventImportAborted), msg.Metadata.Get("event_type"))
		assert.Equal(t, eventSource, msg.Metadata.Get("source"))

		var decoded struct {
			Type EventType           `json:"type"`
			Data ImportFinishedEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, EventImportAborted, decoded.Type)
		assert.Equal(t, 10, decoded.Data.Processed)
		assert.Equal(t, "session-1", decoded.Data.SessionID)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestNewImportFinishedEvent_Type(t *testing.T) {
	tests := []struct {
		status string
		want   EventType
	}{
		{"complete", EventImportCompleted},
		{"failed", EventImportFailed},
		{"aborted", EventImportAborted},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			event := NewImportFinishedEvent(ImportFinishedEvent{Status: tt.status})
			assert.Equal(t, tt.want, event.Type)
			assert.NotEmpty(t, event.ID)
			assert.Equal(t, eventVersion, event.Version)
		})
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(nil)

	require.NoError(t, mock.PublishImportEvent(context.Background(), NewImportStartedEvent(ImportStartedEvent{SessionID: "s"})))
	events := mock.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventImportStarted, events[0].Type)

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())
	assert.NoError(t, mock.Close())
}
