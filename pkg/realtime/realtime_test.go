package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []string
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, channel, event string, _ interface{}) error {
	r.events = append(r.events, channel+"/"+event)
	return r.err
}

type fakeTrigger struct {
	channel, event string
	data           interface{}
}

func (f *fakeTrigger) Trigger(channel string, eventName string, data interface{}) error {
	f.channel, f.event, f.data = channel, eventName, data
	return nil
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "user-42", UserChannel("42"))
	assert.Equal(t, "room-ABC123", RoomChannel("ABC123"))
}

func TestMultiPublishesToAll(t *testing.T) {
	a := &recordingPublisher{}
	b := &recordingPublisher{err: errors.New("down")}
	c := &recordingPublisher{}

	err := Multi{a, nil, b, c}.Publish(context.Background(), "user-1", EventNotification, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, []string{"user-1/notification"}, a.events)
	assert.Equal(t, []string{"user-1/notification"}, c.events)
}

func TestPusherPublisher(t *testing.T) {
	trigger := &fakeTrigger{}
	p := &PusherPublisher{client: trigger}

	payload := map[string]string{"hello": "world"}
	require.NoError(t, p.Publish(context.Background(), "room-X", EventCodeUpdate, payload))

	assert.Equal(t, "room-X", trigger.channel)
	assert.Equal(t, "codeUpdate", trigger.event)
	assert.Equal(t, payload, trigger.data)
}

func TestRelayMessage(t *testing.T) {
	local := &recordingPublisher{}

	err := relayMessage(context.Background(), local, []byte(`{"notification":{"id":"n1"}}`),
		map[string]string{"channel": "user-1", "event": EventNotification})
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1/" + EventNotification}, local.events)

	assert.Error(t, relayMessage(context.Background(), local, []byte(`{}`), map[string]string{"event": "x"}))
	assert.Error(t, relayMessage(context.Background(), local, []byte(`not json`), map[string]string{"channel": "c", "event": "e"}))
	assert.Len(t, local.events, 1)
}
