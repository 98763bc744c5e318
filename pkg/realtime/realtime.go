package realtime

import (
	"context"
	"errors"
)

const (
	EventNotification        = "notification"
	EventJoinRoom            = "join-room"
	EventLeaveRoom           = "leave-room"
	EventCodeUpdate          = "codeUpdate"
	EventLanguageChange      = "languageChange"
	EventCollaboratorsUpdate = "collaboratorsUpdate"
)

// Publisher pushes an event onto a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

func UserChannel(userID string) string {
	return "user-" + userID
}

func RoomChannel(roomCode string) string {
	return "room-" + roomCode
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, channel, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event. Used when no realtime backend is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, interface{}) error { return nil }
