package webpush

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	webpushgo "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSend(status int, capture *[]byte, opts **webpushgo.Options) sendFunc {
	return func(_ context.Context, message []byte, _ *webpushgo.Subscription, o *webpushgo.Options) (*http.Response, error) {
		if capture != nil {
			*capture = message
		}
		if opts != nil {
			*opts = o
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
}

func TestSendMarshalsPayloadAndSignsWithVAPID(t *testing.T) {
	var body []byte
	var opts *webpushgo.Options
	s := NewSender("pub", "priv", "mailto:ops@example.com")
	s.send = stubSend(http.StatusCreated, &body, &opts)

	err := s.Send(context.Background(), Subscription{Endpoint: "https://push.example/1", P256dh: "k", Auth: "a"},
		Payload{Title: "Reminder", Body: "Due soon", URL: "/tasks"})
	require.NoError(t, err)

	var got Payload
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Reminder", got.Title)
	assert.Equal(t, "/tasks", got.URL)
	assert.Equal(t, "pub", opts.VAPIDPublicKey)
	assert.Equal(t, "mailto:ops@example.com", opts.Subscriber)
}

func TestSendReportsGoneSubscriptions(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		s := NewSender("pub", "priv", "mailto:ops@example.com")
		s.send = stubSend(status, nil, nil)

		err := s.Send(context.Background(), Subscription{Endpoint: "https://push.example/1"}, Payload{})
		assert.ErrorIs(t, err, ErrSubscriptionGone)
	}
}

func TestSendOtherFailures(t *testing.T) {
	s := NewSender("pub", "priv", "mailto:ops@example.com")
	s.send = stubSend(http.StatusTooManyRequests, nil, nil)

	err := s.Send(context.Background(), Subscription{Endpoint: "https://push.example/1"}, Payload{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSubscriptionGone)
}
