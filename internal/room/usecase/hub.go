package usecase

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"sync"
	"time"

	"codentor-backend/pkg/apperror"
	"codentor-backend/pkg/logger"
	"codentor-backend/pkg/realtime"
)

// presenceTTL drops collaborators who stopped sending anything.
const presenceTTL = 2 * time.Minute

var roomCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

var (
	ErrInvalidRoomCode = apperror.Validation("room code must be 3-64 letters, digits, '-' or '_'")
	ErrEventNotAllowed = apperror.Validation("only codeUpdate and languageChange can be relayed")
	ErrNotInRoom       = apperror.Forbidden("join the room before sending events")
)

type Collaborator struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
	lastSeen time.Time
}

// Hub tracks who is in each collaborative room and relays editor events over
// the room channel. Presence lives in process memory.
type Hub struct {
	mu        sync.Mutex
	rooms     map[string]map[string]*Collaborator
	publisher realtime.Publisher
	now       func() time.Time
}

func NewHub(publisher realtime.Publisher) *Hub {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	return &Hub{
		rooms:     make(map[string]map[string]*Collaborator),
		publisher: publisher,
		now:       time.Now,
	}
}

func (h *Hub) Join(ctx context.Context, code, userID, name string) ([]Collaborator, error) {
	if !roomCodePattern.MatchString(code) {
		return nil, ErrInvalidRoomCode
	}

	h.mu.Lock()
	now := h.now()
	room, ok := h.rooms[code]
	if !ok {
		room = make(map[string]*Collaborator)
		h.rooms[code] = room
	}
	if c, ok := room[userID]; ok {
		c.lastSeen = now
		if name != "" {
			c.Name = name
		}
	} else {
		room[userID] = &Collaborator{UserID: userID, Name: name, JoinedAt: now, lastSeen: now}
	}
	list := h.snapshotLocked(code)
	h.mu.Unlock()

	h.publish(ctx, code, realtime.EventJoinRoom, map[string]interface{}{"userId": userID, "name": name})
	h.publish(ctx, code, realtime.EventCollaboratorsUpdate, map[string]interface{}{"collaborators": list})
	return list, nil
}

func (h *Hub) Leave(ctx context.Context, code, userID string) ([]Collaborator, error) {
	if !roomCodePattern.MatchString(code) {
		return nil, ErrInvalidRoomCode
	}

	h.mu.Lock()
	room, ok := h.rooms[code]
	if !ok {
		h.mu.Unlock()
		return []Collaborator{}, nil
	}
	_, present := room[userID]
	delete(room, userID)
	list := h.snapshotLocked(code)
	h.mu.Unlock()

	if present {
		h.publish(ctx, code, realtime.EventLeaveRoom, map[string]interface{}{"userId": userID})
		h.publish(ctx, code, realtime.EventCollaboratorsUpdate, map[string]interface{}{"collaborators": list})
	}
	return list, nil
}

// Relay forwards an editor event from a member to everyone in the room.
func (h *Hub) Relay(ctx context.Context, code, userID, event string, data json.RawMessage) error {
	if !roomCodePattern.MatchString(code) {
		return ErrInvalidRoomCode
	}
	if event != realtime.EventCodeUpdate && event != realtime.EventLanguageChange {
		return ErrEventNotAllowed
	}

	h.mu.Lock()
	c, ok := h.rooms[code][userID]
	if ok {
		c.lastSeen = h.now()
	}
	h.mu.Unlock()
	if !ok {
		return ErrNotInRoom
	}

	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return h.publisher.Publish(ctx, realtime.RoomChannel(code), event, map[string]interface{}{
		"senderId": userID,
		"data":     data,
	})
}

// Touch refreshes a member's presence and reports whether they are still in
// the room. Open room streams call it on every keep-alive.
func (h *Hub) Touch(code, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.rooms[code][userID]
	if !ok || c.lastSeen.Before(h.now().Add(-presenceTTL)) {
		return false
	}
	c.lastSeen = h.now()
	return true
}

func (h *Hub) Collaborators(code string) ([]Collaborator, error) {
	if !roomCodePattern.MatchString(code) {
		return nil, ErrInvalidRoomCode
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked(code), nil
}

// snapshotLocked prunes stale members and returns the rest by join time.
func (h *Hub) snapshotLocked(code string) []Collaborator {
	room := h.rooms[code]
	cutoff := h.now().Add(-presenceTTL)

	list := make([]Collaborator, 0, len(room))
	for id, c := range room {
		if c.lastSeen.Before(cutoff) {
			delete(room, id)
			continue
		}
		list = append(list, *c)
	}
	if len(room) == 0 {
		delete(h.rooms, code)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].UserID < list[j].UserID
		}
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list
}

func (h *Hub) publish(ctx context.Context, code, event string, payload interface{}) {
	if err := h.publisher.Publish(ctx, realtime.RoomChannel(code), event, payload); err != nil {
		logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{"room": code, "event": event}).
			Warn("[Room] Failed to publish room event")
	}
}
