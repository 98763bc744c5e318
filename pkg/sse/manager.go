package sse

import (
	"context"
	"io"
	"sync"
	"time"

	"codentor-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Message is one event delivered to a subscriber.
type Message struct {
	Event string
	Data  interface{}
}

type client struct {
	ch chan Message
}

// Manager fans realtime events out to browsers connected over Server-Sent
// Events. It satisfies realtime.Publisher, keyed by the same channel names
// (user-{id}, room-{code}) used for Pusher.
type Manager struct {
	mu        sync.RWMutex
	channels  map[string]map[*client]struct{}
	buffer    int
	keepAlive time.Duration
}

func NewManager() *Manager {
	return &Manager{
		channels:  make(map[string]map[*client]struct{}),
		buffer:    16,
		keepAlive: 25 * time.Second,
	}
}

// Subscribe registers a listener on channel. The returned func unsubscribes
// and closes the message channel.
func (m *Manager) Subscribe(channel string) (<-chan Message, func()) {
	cl := &client{ch: make(chan Message, m.buffer)}

	m.mu.Lock()
	if m.channels[channel] == nil {
		m.channels[channel] = make(map[*client]struct{})
	}
	m.channels[channel][cl] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return cl.ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.channels[channel], cl)
			if len(m.channels[channel]) == 0 {
				delete(m.channels, channel)
			}
			m.mu.Unlock()
			close(cl.ch)
		})
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (m *Manager) Publish(_ context.Context, channel, event string, payload interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for cl := range m.channels[channel] {
		select {
		case cl.ch <- Message{Event: event, Data: payload}:
		default:
			logger.WithComponent("SSE").WithField("channel", channel).Warn("[SSE] Subscriber buffer full, dropping event")
		}
	}
	return nil
}

func (m *Manager) SubscriberCount(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels[channel])
}

// ServeHTTP streams channel events to the client until it disconnects.
func (m *Manager) ServeHTTP(c *gin.Context, channel string) {
	m.Stream(c, channel, nil)
}

// Stream is ServeHTTP with a hook run on every keep-alive ping, for callers
// that track liveness of the connected client.
func (m *Manager) Stream(c *gin.Context, channel string, onKeepAlive func()) {
	messages, unsubscribe := m.Subscribe(channel)
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ticker := time.NewTicker(m.keepAlive)
	defer ticker.Stop()

	c.SSEvent("connected", gin.H{"channel": channel})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent(msg.Event, msg.Data)
			return true
		case <-ticker.C:
			if onKeepAlive != nil {
				onKeepAlive()
			}
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
